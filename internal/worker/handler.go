package worker

import (
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/httpx"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Handler struct {
	w   *Worker
	log ports.Logger
}

func NewHandler(w *Worker, log ports.Logger) *Handler {
	return &Handler{w: w, log: log}
}

// NewRouter — служебные маршруты воркера; всё прочее проксируется.
func NewRouter(h *Handler, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if serviceName != "" {
		r.Use(otelgin.Middleware(serviceName + "-worker"))
	}
	r.Use(httpx.RequestID())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/_worker/state", h.state)
	r.POST("/_worker/message", h.message)
	r.GET("/_worker/events", h.events)
	r.NoRoute(h.proxy)

	return r
}

type messageRequest struct {
	Type string `json:"type" binding:"required"`
}

func (h *Handler) message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	if err := h.w.HandleMessage(c.Request.Context(), req.Type); err != nil {
		status := http.StatusInternalServerError
		if apperr.CodeOf(err) == apperr.CodeInvalidArgument {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.w.State()})
}

func (h *Handler) state(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":      h.w.State(),
		"partitions": h.w.Partitions(),
		"stats":      h.w.Stats(),
	})
}

// events — SSE-поток сообщений воркера открытой странице.
func (h *Handler) events(c *gin.Context) {
	ch, unsubscribe := h.w.Events().Subscribe(0)
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		}
	})
}

func (h *Handler) proxy(c *gin.Context) {
	req := NewRequest(c.Request, h.w.Origin())

	// стрим и запросы с телом идут насквозь без буферизации
	if h.w.State() != StateActivated || h.w.Classify(req) == StrategyPassthrough {
		h.passthrough(c, req.URL)
		return
	}

	resp, err := h.w.Fetch(c.Request.Context(), req)
	if err != nil {
		h.log.Warnf(c.Request.Context(), "worker fetch %s: %v", req.URL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}
	resp.Serve(c.Writer)
}

func (h *Handler) passthrough(c *gin.Context, target *url.URL) {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL = target
			pr.Out.Host = target.Host
		},
		Transport:     h.w.Client().Transport,
		FlushInterval: -1,
		ErrorHandler: func(rw http.ResponseWriter, r *http.Request, err error) {
			h.log.Warnf(r.Context(), "worker passthrough %s: %v", target, err)
			rw.WriteHeader(http.StatusBadGateway)
		},
	}
	c.Header("X-Worker-Source", SourcePassthrough)
	metrics.WorkerResponses.WithLabelValues(string(StrategyPassthrough), SourcePassthrough).Inc()
	rp.ServeHTTP(c.Writer, c.Request)
}
