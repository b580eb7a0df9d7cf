package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/httpx"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// StatsSource — откуда брать сводку для /api/stats.
type StatsSource interface {
	Stats() domain.Stats
}

type Handler struct {
	orders  ports.OrderService
	sync    ports.SyncManager
	monitor ports.ConnectionMonitor
	stats   StatsSource
	log     ports.Logger
	timeout time.Duration
}

// NewHandler — timeout ограничивает обработку одного запроса (0 — без ограничения).
func NewHandler(orders ports.OrderService, sync ports.SyncManager, monitor ports.ConnectionMonitor, stats StatsSource, log ports.Logger, timeout time.Duration) *Handler {
	return &Handler{orders: orders, sync: sync, monitor: monitor, stats: stats, log: log, timeout: timeout}
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *Handler) health(c *gin.Context) {
	st := h.monitor.State()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connection": st.Status(), "quality": st.Quality})
}

func (h *Handler) getStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, domain.Stats{Connection: h.monitor.State()})
		return
	}
	c.JSON(http.StatusOK, h.stats.Stats())
}

func (h *Handler) listOrders(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	rid := c.Param("rid")
	orders, err := h.orders.GetOrders(ctx, rid)
	if err != nil {
		h.log.Warnf(ctx, "GetOrders failed restaurant=%s err=%v", rid, err)
		httpx.WriteError(c, err)
		return
	}

	page := httpx.ParsePage(c, defaultLimit, maxLimit)
	c.JSON(http.StatusOK, httpx.Paginate(c, orders, page))
}

func (h *Handler) placeOrder(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var order domain.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		httpx.WriteError(c, apperr.Wrap(err, apperr.CodeInvalidArgument, "invalid order body"))
		return
	}
	rid := c.Param("rid")
	if order.RestaurantID != "" && order.RestaurantID != rid {
		httpx.WriteError(c, apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "restaurant_id does not match path"))
		return
	}
	order.RestaurantID = rid

	saved, err := h.orders.PlaceOrder(ctx, &order)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"order": saved, "queued": false})
	case errors.Is(err, apperr.ErrQueued) && saved != nil:
		c.JSON(http.StatusAccepted, gin.H{"order": saved, "queued": true, "reason": err.Error()})
	default:
		h.log.Warnf(ctx, "PlaceOrder failed restaurant=%s err=%v", rid, err)
		httpx.WriteError(c, err)
	}
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, apperr.Wrap(err, apperr.CodeInvalidArgument, "status is required"))
		return
	}
	rid, oid := c.Param("rid"), c.Param("oid")
	err := h.orders.UpdateOrderStatus(ctx, rid, oid, req.Status)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, apperr.ErrQueued):
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "reason": err.Error()})
	default:
		h.log.Warnf(ctx, "UpdateOrderStatus failed %s/%s err=%v", rid, oid, err)
		httpx.WriteError(c, err)
	}
}

func (h *Handler) pendingOps(c *gin.Context) {
	ops := h.sync.Pending()
	if ops == nil {
		ops = []domain.PendingOperation{}
	}
	c.JSON(http.StatusOK, ops)
}

func (h *Handler) syncNow(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	report, err := h.sync.SyncAll(ctx)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// setConnectivity — сигнал платформы online/offline.
func (h *Handler) setConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, apperr.Wrap(err, apperr.CodeInvalidArgument, "online flag is required"))
		return
	}
	h.monitor.SetOnline(*req.Online)
	c.JSON(http.StatusOK, h.monitor.State())
}
