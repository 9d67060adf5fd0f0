package store

import (
	"context"
	"database/sql"
	"errors"
)

// NextSequence atomically increments the tenant counter and returns the new value.
// The upsert runs as a single statement, so concurrent callers serialize on the row lock.
func (s *Store) NextSequence(ctx context.Context, tenantID string) (int64, error) {
	query := `
		INSERT INTO order_counters (user_id, seq)
		VALUES ($1, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET seq = order_counters.seq + 1, updated_at = NOW()
		RETURNING seq`

	var seq int64
	if err := s.db.GetContext(ctx, &seq, query, tenantID); err != nil {
		return 0, err
	}
	return seq, nil
}

// CurrentSequence returns the last issued value, 0 when the tenant has no counter yet
func (s *Store) CurrentSequence(ctx context.Context, tenantID string) (int64, error) {
	var seq int64
	err := s.db.GetContext(ctx, &seq, "SELECT seq FROM order_counters WHERE user_id = $1", tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}
