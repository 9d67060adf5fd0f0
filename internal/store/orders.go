package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backoffice/internal/models"
)

// CreateOrder inserts an order and its items in one transaction.
// order.OrderNumber must already be assigned.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (tenant_id, order_number, customer_name, customer_phone, source,
			table_no, total_amount, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, order, query,
		order.TenantID, order.OrderNumber, order.CustomerName, order.CustomerPhone, order.Source,
		order.TableNo, order.TotalAmount, order.Status, order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, menu_item, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			items[i].OrderID, items[i].MenuItem, items[i].Quantity, items[i].UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil when absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// ListOrdersByStatus lists a tenant's orders in a status, oldest first
func (s *Store) ListOrdersByStatus(ctx context.Context, tenantID, status string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE tenant_id = $1 AND status = $2 ORDER BY order_number", tenantID, status)
	return orders, err
}

// DecideOrder moves a pending order to status. When the order is no longer
// pending it returns the current row with changed=false.
func (s *Store) DecideOrder(ctx context.Context, tenantID string, orderID int64, status, decidedBy string) (*models.Order, bool, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, decided_by = $2, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4 AND status = $5
		RETURNING *`,
		status, decidedBy, orderID, tenantID, models.OrderStatusPending)
	if err == nil {
		return &order, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND tenant_id = $2", orderID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}
	return &order, false, nil
}
