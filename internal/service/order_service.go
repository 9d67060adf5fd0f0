package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/store"
	"backoffice/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService creates numbered orders and applies admin decisions
type OrderService struct {
	orders        OrderRepository
	sequences     Sequencer
	publisher     NotificationPublisher
	logger        *zap.Logger
	maxAttempts   int
	retryInterval time.Duration
}

// NewOrderService creates a new order service. maxAttempts bounds how many
// times one order creation is tried end to end.
func NewOrderService(
	orders OrderRepository,
	sequences Sequencer,
	publisher NotificationPublisher,
	maxAttempts int,
) *OrderService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &OrderService{
		orders:        orders,
		sequences:     sequences,
		publisher:     publisher,
		logger:        util.GetLogger(),
		maxAttempts:   maxAttempts,
		retryInterval: 50 * time.Millisecond,
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	TenantID       string             `json:"tenant_id" binding:"required"`
	CustomerName   string             `json:"customer_name" binding:"required"`
	CustomerPhone  string             `json:"customer_phone"`
	Source         string             `json:"source" binding:"required,oneof=web pos"`
	TableNo        string             `json:"table_no"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	MenuItem  string          `json:"menu_item" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	Status      string `json:"status"`
}

func (r *CreateOrderRequest) validate() error {
	switch {
	case strings.TrimSpace(r.TenantID) == "":
		return ErrInvalidTenant
	case strings.TrimSpace(r.CustomerName) == "":
		return fmt.Errorf("%w: customer_name is required", ErrInvalidRequest)
	case r.Source != models.OrderSourceWeb && r.Source != models.OrderSourcePOS:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, r.Source)
	case len(r.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}

	for _, item := range r.Items {
		if strings.TrimSpace(item.MenuItem) == "" {
			return fmt.Errorf("%w: menu_item is required", ErrInvalidRequest)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit_price must not be negative", ErrInvalidRequest)
		}
		// prices are stored as NUMERIC(14, 2)
		if !item.UnitPrice.Equal(item.UnitPrice.Truncate(2)) {
			return fmt.Errorf("%w: unit_price %s has more than 2 decimal places", ErrInvalidRequest, item.UnitPrice)
		}
	}
	return nil
}

// CreateOrder numbers and stores a new order. A failed attempt is retried
// whole, taking a fresh number; a number is never invented locally.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	var (
		order    *models.Order
		items    []models.OrderItem
		existing *models.Order
	)

	attempt := 0
	operation := func() error {
		attempt++

		// also catches a concurrent request with the same key winning the previous attempt
		found, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}
		if found != nil {
			existing = found
			return nil
		}

		order = s.newOrder(req)
		items = newOrderItems(req.Items)
		return s.createOnce(ctx, order, items)
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Order creation attempt failed, retrying",
			zap.String("tenant_id", req.TenantID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, s.retryPolicy(ctx), notify); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return &CreateOrderResponse{
			OrderID:     existing.ID,
			OrderNumber: existing.OrderNumber,
			Status:      existing.Status,
		}, nil
	}

	util.OrdersCreatedTotal.WithLabelValues(order.Source).Inc()
	s.logger.Info("Order created",
		zap.String("tenant_id", order.TenantID),
		zap.Int64("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber))

	if order.Source == models.OrderSourceWeb {
		s.publishWebOrder(ctx, order, items)
	}

	return &CreateOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	}, nil
}

// createOnce takes one number and inserts the order with it
func (s *OrderService) createOnce(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	seq, err := s.sequences.NextSequence(ctx, order.TenantID)
	if err != nil {
		if errors.Is(err, ErrInvalidTenant) {
			return backoff.Permanent(err)
		}
		return err
	}
	order.OrderNumber = seq

	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		// the number is consumed; it will not be handed out again
		util.OrderNumbersBurnedTotal.Inc()
		s.logger.Warn("Order insert failed, order number burned",
			zap.String("tenant_id", order.TenantID),
			zap.Int64("order_number", seq),
			zap.Error(err))
		return fmt.Errorf("failed to store order: %w", err)
	}
	return nil
}

func (s *OrderService) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxAttempts-1)), ctx)
}

func (s *OrderService) newOrder(req *CreateOrderRequest) *models.Order {
	return &models.Order{
		TenantID:       req.TenantID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Source:         req.Source,
		TableNo:        req.TableNo,
		TotalAmount:    calculateTotal(req.Items),
		Status:         models.OrderStatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}
}

func newOrderItems(reqs []OrderItemRequest) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, models.OrderItem{
			MenuItem:  r.MenuItem,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return items
}

// calculateTotal calculates the total amount for an order
func calculateTotal(items []OrderItemRequest) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSequenceUnavailable):
		return "sequence_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "db_error"
	}
}

func (s *OrderService) publishWebOrder(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			MenuItem:  item.MenuItem,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.WebOrderReceivedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeWebOrderReceived,
			TenantID:  order.TenantID,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		TableNo:       order.TableNo,
		TotalAmount:   order.TotalAmount,
		Items:         data,
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish web_order_received event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// GetOrder retrieves an order and its items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListPendingOrders returns orders still awaiting a decision. Clients use it
// to reconcile alerts missed while disconnected.
func (s *OrderService) ListPendingOrders(ctx context.Context, tenantID string) ([]models.Order, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	return s.orders.ListOrdersByStatus(ctx, tenantID, models.OrderStatusPending)
}

// DecideOrder approves or rejects a pending order. Repeating the decision
// already recorded succeeds without side effects, so a client may retry
// after a lost acknowledgement.
func (s *OrderService) DecideOrder(ctx context.Context, tenantID string, orderID int64, adminID string, approve bool) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DecideOrder")
	defer span.End()

	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	if orderID <= 0 || strings.TrimSpace(adminID) == "" {
		return nil, fmt.Errorf("%w: order id and admin id are required", ErrInvalidRequest)
	}

	status, eventType := models.OrderStatusRejected, models.EventTypeRejectOrder
	if approve {
		status, eventType = models.OrderStatusApproved, models.EventTypeApproveOrder
	}

	order, changed, err := s.orders.DecideOrder(ctx, tenantID, orderID, status, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if !changed {
		if order.Status == status {
			return order, nil
		}
		return order, fmt.Errorf("%w: order %d is %s", ErrOrderAlreadyDecided, orderID, order.Status)
	}

	util.OrderDecisionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order decided",
		zap.String("tenant_id", tenantID),
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.String("admin_id", adminID))

	event := &models.OrderDecisionEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			TenantID:  tenantID,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		AdminID:     adminID,
		Status:      status,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish decision event",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	return order, nil
}
