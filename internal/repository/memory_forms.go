package repository

import (
	"context"
	"sync"

	"rutero-field/internal/domain"

	"github.com/google/uuid"
)

// MemoryFormsRepo in-memory FormsRepository for tests and DB-less runs.
type MemoryFormsRepo struct {
	mu        sync.Mutex
	fields    map[string]domain.FormField
	responses map[string]map[string]domain.FormResponse // visitID -> fieldID -> response
	visits    *MemoryVisitsRepo
}

// NewMemoryFormsRepo creates an in-memory forms repository bound to the
// visits repository, and wires the visit-delete evidence cleanup back
// into it.
func NewMemoryFormsRepo(visits *MemoryVisitsRepo) *MemoryFormsRepo {
	r := &MemoryFormsRepo{
		fields:    map[string]domain.FormField{},
		responses: map[string]map[string]domain.FormResponse{},
		visits:    visits,
	}
	visits.forms = r
	return r
}

var _ FormsRepository = (*MemoryFormsRepo)(nil)

// AddField registers a field definition. Test seeding.
func (r *MemoryFormsRepo) AddField(f domain.FormField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[f.ID] = f
}

// ResponsesByVisit returns the stored responses for a visit. Test use.
func (r *MemoryFormsRepo) ResponsesByVisit(visitID string) []domain.FormResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.FormResponse
	for _, resp := range r.responses[visitID] {
		out = append(out, resp)
	}
	return out
}

func (r *MemoryFormsRepo) deleteByVisit(visitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.responses, visitID)
}

func (r *MemoryFormsRepo) GetFieldsByIDs(_ context.Context, fieldIDs []string) (map[string]domain.FormField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.FormField, len(fieldIDs))
	for _, id := range fieldIDs {
		if f, ok := r.fields[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (r *MemoryFormsRepo) SaveResponsesAndComplete(_ context.Context, agentID, visitID string, answers []domain.FieldAnswer, upd CheckOutUpdate) (*domain.Visit, error) {
	// Complete first under the visits lock; it performs the ownership
	// and status checks, so nothing is stored when they fail.
	r.visits.mu.Lock()
	completed, err := r.visits.completeLocked(agentID, visitID, upd)
	r.visits.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byField, ok := r.responses[visitID]
	if !ok {
		byField = map[string]domain.FormResponse{}
		r.responses[visitID] = byField
	}
	for _, a := range answers {
		byField[a.FieldID] = domain.FormResponse{
			ID:        uuid.NewString(),
			VisitID:   visitID,
			FieldID:   a.FieldID,
			Payload:   a.Payload,
			CreatedAt: upd.At,
		}
	}

	return completed, nil
}
