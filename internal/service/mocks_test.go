package service

import (
	"context"

	"backoffice/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	args := m.Called(ctx, order, items)
	return args.Error(0)
}

func (m *mockOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrderRepo) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	args := m.Called(ctx, key)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrderRepo) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]models.OrderItem)
	return items, args.Error(1)
}

func (m *mockOrderRepo) ListOrdersByStatus(ctx context.Context, tenantID, status string) ([]models.Order, error) {
	args := m.Called(ctx, tenantID, status)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockOrderRepo) DecideOrder(ctx context.Context, tenantID string, orderID int64, status, decidedBy string) (*models.Order, bool, error) {
	args := m.Called(ctx, tenantID, orderID, status, decidedBy)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Bool(1), args.Error(2)
}

type mockSequencer struct {
	mock.Mock
}

func (m *mockSequencer) NextSequence(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockInventoryRepo struct {
	mock.Mock
}

func (m *mockInventoryRepo) CreateInventoryRequest(ctx context.Context, req *models.InventoryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockInventoryRepo) ListInventoryRequests(ctx context.Context, tenantID string) ([]models.InventoryRequest, error) {
	args := m.Called(ctx, tenantID)
	reqs, _ := args.Get(0).([]models.InventoryRequest)
	return reqs, args.Error(1)
}
