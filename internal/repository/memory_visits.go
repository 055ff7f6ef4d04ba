package repository

import (
	"context"
	"sync"
	"time"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"
)

// MemoryVisitsRepo in-memory VisitsRepository for tests and DB-less
// runs. Enforces the same invariants the partial unique indexes guard
// in Postgres.
type MemoryVisitsRepo struct {
	mu     sync.Mutex
	visits map[string]domain.Visit // visitID -> visit
	forms  *MemoryFormsRepo        // wired back by NewMemoryFormsRepo
}

// NewMemoryVisitsRepo creates an in-memory visit repository.
func NewMemoryVisitsRepo() *MemoryVisitsRepo {
	return &MemoryVisitsRepo{visits: map[string]domain.Visit{}}
}

var _ VisitsRepository = (*MemoryVisitsRepo)(nil)

func (r *MemoryVisitsRepo) inProgressLocked(agentID string) *domain.Visit {
	for _, v := range r.visits {
		if v.AgentID == agentID && v.Status == domain.VisitInProgress {
			out := v
			return &out
		}
	}
	return nil
}

func (r *MemoryVisitsRepo) GetInProgressVisit(_ context.Context, agentID string) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inProgressLocked(agentID), nil
}

func (r *MemoryVisitsRepo) GetVisit(_ context.Context, visitID string) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[visitID]
	if !ok {
		return nil, nil
	}
	out := v
	return &out, nil
}

func (r *MemoryVisitsRepo) FindCompletedVisit(_ context.Context, agentID, pdvID string, dayStart, dayEnd time.Time) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *domain.Visit
	for _, v := range r.visits {
		if v.AgentID != agentID || v.PdvID != pdvID || v.Status != domain.VisitCompleted {
			continue
		}
		if v.CheckInAt.Before(dayStart) || !v.CheckInAt.Before(dayEnd) {
			continue
		}
		if newest == nil || v.CheckInAt.After(newest.CheckInAt) {
			out := v
			newest = &out
		}
	}
	return newest, nil
}

func (r *MemoryVisitsRepo) CreateVisit(_ context.Context, v *domain.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blocking := r.inProgressLocked(v.AgentID); blocking != nil {
		return &domain.ConcurrentVisitError{
			VisitID: blocking.ID,
			PdvID:   blocking.PdvID,
			PdvName: blocking.PdvName,
		}
	}

	r.visits[v.ID] = *v
	return nil
}

func (r *MemoryVisitsRepo) CompleteVisit(_ context.Context, agentID, visitID string, upd CheckOutUpdate) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completeLocked(agentID, visitID, upd)
}

func (r *MemoryVisitsRepo) completeLocked(agentID, visitID string, upd CheckOutUpdate) (*domain.Visit, error) {
	v, ok := r.visits[visitID]
	if !ok || v.AgentID != agentID {
		return nil, domain.ErrVisitNotFound
	}
	if v.Status != domain.VisitInProgress {
		return nil, domain.ErrVisitNotActive
	}

	// Daily-uniqueness backstop, as uq_visits_one_completed_per_day.
	if v.IsValid {
		day := v.CheckInAt.Format("2006-01-02")
		for _, other := range r.visits {
			if other.ID != v.ID && other.AgentID == agentID && other.PdvID == v.PdvID &&
				other.Status == domain.VisitCompleted && other.IsValid &&
				other.CheckInAt.Format("2006-01-02") == day {
				return nil, &domain.AlreadyVisitedTodayError{
					VisitID:   other.ID,
					CheckInAt: other.CheckInAt,
				}
			}
		}
	}

	checkOutAt := upd.At
	v.CheckOutAt = &checkOutAt
	v.Status = domain.VisitCompleted
	v.DurationMinutes = clock.MinutesBetween(v.CheckInAt, upd.At)
	if upd.Notes != "" {
		v.Data.CheckOutNotes = upd.Notes
	}
	if upd.Coordinate != nil {
		v.Data.CheckOutCoordinate = upd.Coordinate
	}
	if upd.Device != nil {
		v.Data.Device = upd.Device
	}

	r.visits[visitID] = v
	out := v
	return &out, nil
}

func (r *MemoryVisitsRepo) DeleteInProgressVisit(_ context.Context, agentID, visitID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[visitID]
	if !ok || v.AgentID != agentID {
		return domain.ErrVisitNotFound
	}
	if v.Status != domain.VisitInProgress {
		return domain.ErrVisitNotActive
	}

	if r.forms != nil {
		r.forms.deleteByVisit(visitID)
	}
	delete(r.visits, visitID)
	return nil
}

func (r *MemoryVisitsRepo) CountVisitsInWindow(_ context.Context, agentID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, v := range r.visits {
		if v.AgentID == agentID && !v.CheckInAt.Before(from) && !v.CheckInAt.After(to) {
			n++
		}
	}
	return n, nil
}
