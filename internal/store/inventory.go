package store

import (
	"context"

	"backoffice/internal/models"
)

// CreateInventoryRequest inserts a restock request
func (s *Store) CreateInventoryRequest(ctx context.Context, req *models.InventoryRequest) error {
	query := `
		INSERT INTO inventory_requests (tenant_id, requested_by, item_name, quantity, unit, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, req, query,
		req.TenantID, req.RequestedBy, req.ItemName, req.Quantity, req.Unit, req.Note, req.Status)
}

// ListInventoryRequests lists a tenant's requests, newest first
func (s *Store) ListInventoryRequests(ctx context.Context, tenantID string) ([]models.InventoryRequest, error) {
	reqs := []models.InventoryRequest{}
	err := s.db.SelectContext(ctx, &reqs,
		"SELECT * FROM inventory_requests WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID)
	return reqs, err
}
