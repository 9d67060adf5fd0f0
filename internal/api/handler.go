package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/service"
	"backoffice/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is the order service as seen by HTTP handlers
type OrderAPI interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error)
	ListPendingOrders(ctx context.Context, tenantID string) ([]models.Order, error)
	DecideOrder(ctx context.Context, tenantID string, orderID int64, adminID string, approve bool) (*models.Order, error)
}

type InventoryAPI interface {
	CreateInventoryRequest(ctx context.Context, req *service.RestockRequest) (*models.InventoryRequest, error)
	ListInventoryRequests(ctx context.Context, tenantID string) ([]models.InventoryRequest, error)
}

// SequenceAPI is read-only; only order creation advances a counter
type SequenceAPI interface {
	CurrentSequence(ctx context.Context, tenantID string) (int64, error)
	Backend() string
}

// PresenceAPI lists users connected to the notification channel
type PresenceAPI interface {
	OnlineUsers(ctx context.Context, tenantID string) (map[string]string, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderAPI
	inventory InventoryAPI
	sequences SequenceAPI
	presence  PresenceAPI
	websocket gin.HandlerFunc
	checks    map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. presence and websocket may be nil.
func NewHandler(orders OrderAPI, inventory InventoryAPI, sequences SequenceAPI, presence PresenceAPI, websocket gin.HandlerFunc) *Handler {
	return &Handler{
		orders:    orders,
		inventory: inventory,
		sequences: sequences,
		presence:  presence,
		websocket: websocket,
		checks:    make(map[string]Pinger),
		logger:    util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency for /ready
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.websocket != nil {
		router.GET("/ws", h.websocket)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/approve", h.decideOrder(true))
		v1.POST("/orders/:id/reject", h.decideOrder(false))

		v1.POST("/inventory-requests", h.createInventoryRequest)

		tenants := v1.Group("/tenants/:tenant")
		tenants.GET("/orders/pending", h.listPendingOrders)
		tenants.GET("/inventory-requests", h.listInventoryRequests)
		tenants.GET("/sequence", h.currentSequence)
		tenants.GET("/presence", h.listPresence)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.fail(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

type decisionRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	AdminID  string `json:"admin_id" binding:"required"`
}

func (h *Handler) decideOrder(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := orderIDParam(c)
		if !ok {
			return
		}

		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}

		order, err := h.orders.DecideOrder(c.Request.Context(), req.TenantID, orderID, req.AdminID, approve)
		if err != nil {
			h.fail(c, "Failed to decide order", err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func (h *Handler) listPendingOrders(c *gin.Context) {
	orders, err := h.orders.ListPendingOrders(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.fail(c, "Failed to list orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) createInventoryRequest(c *gin.Context) {
	var req service.RestockRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	record, err := h.inventory.CreateInventoryRequest(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "Failed to create inventory request", err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *Handler) listInventoryRequests(c *gin.Context) {
	requests, err := h.inventory.ListInventoryRequests(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.fail(c, "Failed to list inventory requests", err)
		return
	}
	if requests == nil {
		requests = []models.InventoryRequest{}
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *Handler) currentSequence(c *gin.Context) {
	seq, err := h.sequences.CurrentSequence(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.fail(c, "Failed to read sequence", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id": c.Param("tenant"),
		"seq":       seq,
		"backend":   h.sequences.Backend(),
	})
}

func (h *Handler) listPresence(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Presence tracking is disabled"})
		return
	}

	users, err := h.presence.OnlineUsers(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.fail(c, "Failed to read presence", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return 0, false
	}
	return orderID, true
}

// fail maps service errors onto status codes
func (h *Handler) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidTenant), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrOrderAlreadyDecided):
		return http.StatusConflict
	case errors.Is(err, service.ErrSequenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
