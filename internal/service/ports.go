package service

import (
	"context"

	"backoffice/internal/models"
)

// SequenceBackend is a store with a native atomic increment keyed by tenant
type SequenceBackend interface {
	NextSequence(ctx context.Context, tenantID string) (int64, error)
	CurrentSequence(ctx context.Context, tenantID string) (int64, error)
}

// Sequencer hands out order numbers
type Sequencer interface {
	NextSequence(ctx context.Context, tenantID string) (int64, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrdersByStatus(ctx context.Context, tenantID, status string) ([]models.Order, error)
	DecideOrder(ctx context.Context, tenantID string, orderID int64, status, decidedBy string) (*models.Order, bool, error)
}

type InventoryRepository interface {
	CreateInventoryRequest(ctx context.Context, req *models.InventoryRequest) error
	ListInventoryRequests(ctx context.Context, tenantID string) ([]models.InventoryRequest, error)
}

// NotificationPublisher pushes events towards connected back-office clients
type NotificationPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}
