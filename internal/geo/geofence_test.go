package geo

import (
	"testing"

	"rutero-field/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExplicitFence_BoundaryInclusive(t *testing.T) {
	center := domain.Coordinate{Latitude: -12.0464, Longitude: -77.0428}
	pdv := &domain.Pdv{ID: "pdv-1", Name: "Bodega Norte", Coordinate: &center}
	fence := &domain.Geofence{
		ID:      "gf-1",
		PdvID:   "pdv-1",
		Center:  center,
		RadiusM: 100,
		Active:  true,
	}

	resolver := NewResolver(150)

	// Walk north until the candidate sits just at / just past 100 m.
	// 0.0009 degrees of latitude ≈ 100.1 m; 0.000898 ≈ 99.9 m.
	inside := domain.Coordinate{Latitude: center.Latitude + 0.000898, Longitude: center.Longitude}
	outside := domain.Coordinate{Latitude: center.Latitude + 0.00091, Longitude: center.Longitude}

	v, err := resolver.Resolve(pdv, fence, inside)
	require.NoError(t, err)
	assert.True(t, v.WithinFence)
	assert.Equal(t, 100.0, v.RadiusM)
	assert.InDelta(t, 100, v.DistanceM, 1)

	v, err = resolver.Resolve(pdv, fence, outside)
	require.NoError(t, err)
	assert.False(t, v.WithinFence)
}

func TestResolve_ExactlyOnBoundary(t *testing.T) {
	center := domain.Coordinate{Latitude: 0, Longitude: 0}
	pdv := &domain.Pdv{ID: "pdv-1", Coordinate: &center}
	candidate := domain.Coordinate{Latitude: 0.0001, Longitude: 0}

	d := DistanceMeters(candidate.Latitude, candidate.Longitude, 0, 0)
	fence := &domain.Geofence{Center: center, RadiusM: d, Active: true}

	v, err := NewResolver(150).Resolve(pdv, fence, candidate)
	require.NoError(t, err)
	assert.True(t, v.WithinFence, "distance == radius must be within the fence")
}

func TestResolve_FallbackToDefaultRadius(t *testing.T) {
	center := domain.Coordinate{Latitude: -12.00, Longitude: -77.00}
	pdv := &domain.Pdv{ID: "pdv-2", Name: "Kiosco Sur", Coordinate: &center}

	resolver := NewResolver(150)

	// No fence configured: default radius centered on the PDV.
	v, err := resolver.Resolve(pdv, nil, center)
	require.NoError(t, err)
	assert.True(t, v.WithinFence)
	assert.Equal(t, 150.0, v.RadiusM)
	assert.Zero(t, v.DistanceM)

	// An inactive fence is ignored the same way.
	inactive := &domain.Geofence{Center: center, RadiusM: 10, Active: false}
	far := domain.Coordinate{Latitude: center.Latitude + 0.001, Longitude: center.Longitude}
	v, err = resolver.Resolve(pdv, inactive, far)
	require.NoError(t, err)
	assert.Equal(t, 150.0, v.RadiusM)
	assert.True(t, v.WithinFence) // ~111 m, inside the 150 m default
}

func TestResolve_PdvWithoutCoordinates(t *testing.T) {
	pdv := &domain.Pdv{ID: "pdv-3", Name: "Sin Geo"}

	_, err := NewResolver(150).Resolve(pdv, nil, domain.Coordinate{})
	assert.ErrorIs(t, err, domain.ErrPdvMissingCoordinates)
}
