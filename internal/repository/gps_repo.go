package repository

import (
	"context"
	"time"

	"rutero-field/internal/domain"
)

// GpsRepository append-only GPS sample storage. Samples are never
// mutated; they are only inserted and aggregated.
type GpsRepository interface {
	// Insert appends one sample.
	Insert(ctx context.Context, s *domain.GpsSample) error

	// InsertBatch appends up to the configured batch limit of samples
	// inside a single transaction, so a partial network failure never
	// leaves a half-written batch.
	InsertBatch(ctx context.Context, samples []*domain.GpsSample) error

	// ListRange returns the agent's samples with recorded_at inside
	// [from, to], ordered by recorded_at ascending.
	ListRange(ctx context.Context, agentID string, from, to time.Time) ([]domain.GpsSample, error)

	// Latest returns the agent's newest sample, or (nil, nil).
	Latest(ctx context.Context, agentID string) (*domain.GpsSample, error)
}
