package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService records restock requests and alerts admins about them
type InventoryService struct {
	repo      InventoryRepository
	publisher NotificationPublisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(repo InventoryRepository, publisher NotificationPublisher) *InventoryService {
	return &InventoryService{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// RestockRequest is the input for raising an inventory request
type RestockRequest struct {
	TenantID    string          `json:"tenant_id" binding:"required"`
	RequestedBy string          `json:"requested_by" binding:"required"`
	ItemName    string          `json:"item_name" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Note        string          `json:"note"`
}

// CreateInventoryRequest stores the request and publishes new_inventory_request
func (s *InventoryService) CreateInventoryRequest(ctx context.Context, req *RestockRequest) (*models.InventoryRequest, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateInventoryRequest")
	defer span.End()

	switch {
	case strings.TrimSpace(req.TenantID) == "":
		return nil, ErrInvalidTenant
	case strings.TrimSpace(req.RequestedBy) == "", strings.TrimSpace(req.ItemName) == "":
		return nil, fmt.Errorf("%w: requested_by and item_name are required", ErrInvalidRequest)
	case !req.Quantity.IsPositive():
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}

	record := &models.InventoryRequest{
		TenantID:    req.TenantID,
		RequestedBy: req.RequestedBy,
		ItemName:    req.ItemName,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Note:        req.Note,
		Status:      models.InventoryRequestOpen,
	}
	if err := s.repo.CreateInventoryRequest(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create inventory request: %w", err)
	}

	util.InventoryRequestsTotal.Inc()

	event := &models.InventoryRequestEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeNewInventoryRequest,
			TenantID:  record.TenantID,
			Timestamp: time.Now(),
		},
		RequestID:   record.ID,
		ItemName:    record.ItemName,
		Quantity:    record.Quantity,
		Unit:        record.Unit,
		RequestedBy: record.RequestedBy,
		Note:        record.Note,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish new_inventory_request event",
			zap.Int64("request_id", record.ID),
			zap.Error(err))
	}

	return record, nil
}

// ListInventoryRequests returns a tenant's requests, newest first
func (s *InventoryService) ListInventoryRequests(ctx context.Context, tenantID string) ([]models.InventoryRequest, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	return s.repo.ListInventoryRequests(ctx, tenantID)
}
