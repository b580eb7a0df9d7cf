package rest

import (
	"net/http"
	"path/filepath"

	"github.com/Gunvolt24/resto_sync/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter — API заказов, синхронизации и служебные маршруты.
// staticDir — каталог клиентских страниц (пусто — не раздаём).
func NewRouter(h *Handler, staticDir, serviceName string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	if serviceName != "" {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpx.RequestID())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/stats", h.getStats)

	orders := api.Group("/restaurants/:rid/orders")
	orders.GET("", h.listOrders)
	orders.POST("", h.placeOrder)
	orders.POST("/:oid/status", h.updateStatus)

	api.GET("/sync/pending", h.pendingOps)
	api.POST("/sync", h.syncNow)
	api.POST("/connectivity", h.setConnectivity)

	if staticDir != "" {
		r.Static("/static", staticDir)
		r.StaticFile("/", filepath.Join(staticDir, "index.html"))
	}

	return r
}
