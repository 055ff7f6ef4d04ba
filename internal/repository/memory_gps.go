package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"rutero-field/internal/domain"
)

// MemoryGpsRepo in-memory GpsRepository for tests and DB-less runs.
type MemoryGpsRepo struct {
	mu      sync.Mutex
	samples map[string][]domain.GpsSample // agentID -> samples
}

// NewMemoryGpsRepo creates an in-memory GPS repository.
func NewMemoryGpsRepo() *MemoryGpsRepo {
	return &MemoryGpsRepo{samples: map[string][]domain.GpsSample{}}
}

var _ GpsRepository = (*MemoryGpsRepo)(nil)

func (r *MemoryGpsRepo) Insert(_ context.Context, s *domain.GpsSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[s.AgentID] = append(r.samples[s.AgentID], *s)
	return nil
}

func (r *MemoryGpsRepo) InsertBatch(_ context.Context, samples []*domain.GpsSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.samples[s.AgentID] = append(r.samples[s.AgentID], *s)
	}
	return nil
}

func (r *MemoryGpsRepo) ListRange(_ context.Context, agentID string, from, to time.Time) ([]domain.GpsSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.GpsSample
	for _, s := range r.samples[agentID] {
		if !s.RecordedAt.Before(from) && !s.RecordedAt.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (r *MemoryGpsRepo) Latest(_ context.Context, agentID string) (*domain.GpsSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *domain.GpsSample
	for i := range r.samples[agentID] {
		s := r.samples[agentID][i]
		if newest == nil || s.RecordedAt.After(newest.RecordedAt) {
			out := s
			newest = &out
		}
	}
	return newest, nil
}
