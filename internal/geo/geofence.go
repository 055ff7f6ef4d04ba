package geo

import (
	"rutero-field/internal/domain"
)

// Validation result of checking a candidate coordinate against a
// PDV's effective geofence.
type Validation struct {
	WithinFence bool
	DistanceM   float64
	RadiusM     float64
}

// Resolver decides whether a coordinate lies inside a PDV's fence.
// When the PDV has no active geofence configured, the fence is the
// default radius centered on the PDV itself, so check-in validity
// never silently no-ops.
type Resolver struct {
	defaultRadiusM float64
}

// NewResolver creates a resolver with the fallback radius (meters).
func NewResolver(defaultRadiusM float64) *Resolver {
	return &Resolver{defaultRadiusM: defaultRadiusM}
}

// Resolve checks the candidate point against the PDV's active geofence,
// or the default fence when none is configured. The boundary is
// inclusive: a point exactly on the radius is within the fence.
// Returns domain.ErrPdvMissingCoordinates when the PDV was never
// geocoded.
func (r *Resolver) Resolve(pdv *domain.Pdv, fence *domain.Geofence, candidate domain.Coordinate) (Validation, error) {
	if pdv.Coordinate == nil {
		return Validation{}, domain.ErrPdvMissingCoordinates
	}

	center := *pdv.Coordinate
	radius := r.defaultRadiusM
	if fence != nil && fence.Active {
		center = fence.Center
		radius = fence.RadiusM
	}

	distance := DistanceMeters(candidate.Latitude, candidate.Longitude, center.Latitude, center.Longitude)

	return Validation{
		WithinFence: distance <= radius,
		DistanceM:   distance,
		RadiusM:     radius,
	}, nil
}
