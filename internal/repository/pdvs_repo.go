package repository

import (
	"context"

	"rutero-field/internal/domain"
)

// PdvsRepository read-side access to the PDV directory. CRUD on PDVs
// and their route/circuit/zonal hierarchy belongs to the management
// layer; the engine only reads identity, position and the active fence.
type PdvsRepository interface {
	// GetPdv returns a PDV by id, or (nil, nil) when unknown.
	GetPdv(ctx context.Context, pdvID string) (*domain.Pdv, error)

	// GetActiveGeofence returns the PDV's single active geofence, or
	// (nil, nil) when none is configured.
	GetActiveGeofence(ctx context.Context, pdvID string) (*domain.Geofence, error)
}
