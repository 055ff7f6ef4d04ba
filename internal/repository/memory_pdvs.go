package repository

import (
	"context"
	"sync"

	"rutero-field/internal/domain"
)

// MemoryPdvsRepo in-memory PdvsRepository for tests and DB-less runs.
type MemoryPdvsRepo struct {
	mu        sync.RWMutex
	pdvs      map[string]domain.Pdv
	geofences map[string]domain.Geofence // pdvID -> active geofence
}

// NewMemoryPdvsRepo creates an in-memory PDV repository.
func NewMemoryPdvsRepo() *MemoryPdvsRepo {
	return &MemoryPdvsRepo{
		pdvs:      map[string]domain.Pdv{},
		geofences: map[string]domain.Geofence{},
	}
}

var _ PdvsRepository = (*MemoryPdvsRepo)(nil)

// AddPdv registers a PDV. Test seeding.
func (r *MemoryPdvsRepo) AddPdv(p domain.Pdv) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pdvs[p.ID] = p
}

// AddGeofence registers a PDV's active geofence. Test seeding.
func (r *MemoryPdvsRepo) AddGeofence(g domain.Geofence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.geofences[g.PdvID] = g
}

func (r *MemoryPdvsRepo) GetPdv(_ context.Context, pdvID string) (*domain.Pdv, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pdvs[pdvID]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (r *MemoryPdvsRepo) GetActiveGeofence(_ context.Context, pdvID string) (*domain.Geofence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.geofences[pdvID]
	if !ok || !g.Active {
		return nil, nil
	}
	out := g
	return &out, nil
}
