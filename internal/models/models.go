package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCounter is the per-tenant sequence document backing order numbers
type OrderCounter struct {
	UserID    string    `db:"user_id" bson:"user_id" json:"user_id"`
	Seq       int64     `db:"seq" bson:"seq" json:"seq"`
	UpdatedAt time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// Order represents a customer order placed with a tenant
type Order struct {
	ID             int64           `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	OrderNumber    int64           `db:"order_number" json:"order_number"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone,omitempty"`
	Source         string          `db:"source" json:"source"`
	TableNo        string          `db:"table_no" json:"table_no,omitempty"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status         string          `db:"status" json:"status"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	DecidedBy      string          `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents a line of an order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	MenuItem  string          `db:"menu_item" json:"menu_item"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// InventoryRequest is a restock request raised by staff
type InventoryRequest struct {
	ID          int64           `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	ItemName    string          `db:"item_name" json:"item_name"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Unit        string          `db:"unit" json:"unit"`
	Note        string          `db:"note" json:"note,omitempty"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending  = "pending"
	OrderStatusApproved = "approved"
	OrderStatusRejected = "rejected"
)

// Order sources
const (
	OrderSourceWeb = "web"
	OrderSourcePOS = "pos"
)

// Inventory request statuses
const (
	InventoryRequestOpen = "open"
)

// Back-office roles allowed on the notification channel
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// ValidRole reports whether role may register on the notification channel.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager
}
