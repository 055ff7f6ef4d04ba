package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"
)

// MemorySessionsRepo in-memory SessionsRepository for tests and
// DB-less runs. The mutex plays the role of the storage transaction:
// every operation is atomic with respect to the others.
type MemorySessionsRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.WorkingSession // sessionID -> session
	gps      *MemoryGpsRepo
	visits   *MemoryVisitsRepo
}

// NewMemorySessionsRepo creates an in-memory session repository.
// gps and visits feed the close-time aggregation, mirroring how the
// Postgres implementation reads those tables inside its transaction.
func NewMemorySessionsRepo(gps *MemoryGpsRepo, visits *MemoryVisitsRepo) *MemorySessionsRepo {
	return &MemorySessionsRepo{
		sessions: map[string]domain.WorkingSession{},
		gps:      gps,
		visits:   visits,
	}
}

var _ SessionsRepository = (*MemorySessionsRepo)(nil)

func (r *MemorySessionsRepo) openSessionLocked(agentID string) *domain.WorkingSession {
	for _, s := range r.sessions {
		if s.AgentID == agentID && s.Status.Open() {
			out := s
			return &out
		}
	}
	return nil
}

func (r *MemorySessionsRepo) GetOpenSession(_ context.Context, agentID string) (*domain.WorkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openSessionLocked(agentID), nil
}

func (r *MemorySessionsRepo) GetSession(_ context.Context, sessionID string) (*domain.WorkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (r *MemorySessionsRepo) CreateSession(_ context.Context, s *domain.WorkingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.openSessionLocked(s.AgentID); existing != nil {
		return &domain.SessionAlreadyActiveError{
			SessionID: existing.ID,
			Status:    existing.Status,
			StartedAt: existing.StartedAt,
		}
	}

	r.sessions[s.ID] = *s
	return nil
}

func (r *MemorySessionsRepo) SetStatus(_ context.Context, sessionID string, from, to domain.SessionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	r.sessions[sessionID] = s
	return true, nil
}

func (r *MemorySessionsRepo) EndSession(ctx context.Context, agentID string, end SessionEnd) (*domain.WorkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active *domain.WorkingSession
	for id := range r.sessions {
		s := r.sessions[id]
		if s.AgentID == agentID && s.Status == domain.SessionActive {
			active = &s
			break
		}
	}
	if active == nil {
		return nil, domain.ErrNoActiveSession
	}

	distanceKm := 0.0
	if end.Reduce != nil && r.gps != nil {
		samples, err := r.gps.ListRange(ctx, agentID, active.StartedAt, end.At)
		if err != nil {
			return nil, err
		}
		distanceKm = math.Round(end.Reduce(samples)*100) / 100
	}

	pdvsVisited := 0
	if r.visits != nil {
		n, err := r.visits.CountVisitsInWindow(ctx, agentID, active.StartedAt, end.At)
		if err != nil {
			return nil, err
		}
		pdvsVisited = n
	}

	endedAt := end.At
	active.Status = domain.SessionCompleted
	active.EndedAt = &endedAt
	active.EndCoordinate = end.Coordinate
	active.TotalDistanceKm = distanceKm
	active.TotalPdvsVisited = pdvsVisited
	active.TotalDurationMinutes = clock.MinutesBetween(active.StartedAt, end.At)
	if end.Notes != "" {
		active.Notes = end.Notes
	}

	r.sessions[active.ID] = *active
	out := *active
	return &out, nil
}

func (r *MemorySessionsRepo) ListCompletedSessions(_ context.Context, from, to time.Time) ([]domain.WorkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.WorkingSession
	for _, s := range r.sessions {
		if s.Status == domain.SessionCompleted &&
			!s.StartedAt.Before(from) && s.StartedAt.Before(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}
