package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/util"

	"go.uber.org/zap"
)

// SequenceService hands out per-tenant order numbers. The increment is
// delegated to the backend's atomic primitive; nothing here reads then writes.
type SequenceService struct {
	backend SequenceBackend
	name    string
	logger  *zap.Logger
}

// NewSequenceService creates a sequence service over backend; name labels metrics
func NewSequenceService(backend SequenceBackend, name string) *SequenceService {
	return &SequenceService{
		backend: backend,
		name:    name,
		logger:  util.GetLogger(),
	}
}

// Backend returns the configured backend name
func (s *SequenceService) Backend() string {
	return s.name
}

// NextSequence returns a value >= 1 strictly greater than any earlier value for tenantID.
// Storage failures come back as ErrSequenceUnavailable; callers must retry, not guess.
func (s *SequenceService) NextSequence(ctx context.Context, tenantID string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "SequenceService.NextSequence")
	defer span.End()

	if strings.TrimSpace(tenantID) == "" {
		return 0, ErrInvalidTenant
	}

	start := time.Now()
	seq, err := s.backend.NextSequence(ctx, tenantID)
	util.SequenceLatency.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	if err != nil {
		util.SequenceFailuresTotal.WithLabelValues(s.name).Inc()
		s.logger.Error("Sequence increment failed",
			zap.String("tenant_id", tenantID),
			zap.String("backend", s.name),
			zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrSequenceUnavailable, err)
	}
	if seq < 1 {
		util.SequenceFailuresTotal.WithLabelValues(s.name).Inc()
		return 0, fmt.Errorf("%w: backend returned %d", ErrSequenceUnavailable, seq)
	}

	util.SequencesIssuedTotal.WithLabelValues(s.name).Inc()
	return seq, nil
}

// CurrentSequence returns the last issued value for tenantID, 0 if none
func (s *SequenceService) CurrentSequence(ctx context.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, ErrInvalidTenant
	}

	seq, err := s.backend.CurrentSequence(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSequenceUnavailable, err)
	}
	return seq, nil
}
