package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rutero-field/internal/domain"
)

// PostgresPdvsRepository PDV directory read-side implementation
type PostgresPdvsRepository struct {
	db *sql.DB
}

// NewPostgresPdvsRepository creates a PDV repository.
func NewPostgresPdvsRepository(db *sql.DB) *PostgresPdvsRepository {
	return &PostgresPdvsRepository{db: db}
}

var _ PdvsRepository = (*PostgresPdvsRepository)(nil)

// GetPdv returns a PDV by id with its (possibly missing) coordinate.
func (r *PostgresPdvsRepository) GetPdv(ctx context.Context, pdvID string) (*domain.Pdv, error) {
	query := `SELECT pdv_id::text, pdv_name, latitude, longitude FROM pdvs WHERE pdv_id = $1`

	var p domain.Pdv
	var lat, lon sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, pdvID).Scan(&p.ID, &p.Name, &lat, &lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pdv: %w", err)
	}

	if lat.Valid && lon.Valid {
		p.Coordinate = &domain.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return &p, nil
}

// GetActiveGeofence returns the PDV's active geofence, if any.
func (r *PostgresPdvsRepository) GetActiveGeofence(ctx context.Context, pdvID string) (*domain.Geofence, error) {
	query := `
		SELECT geofence_id::text, pdv_id::text, latitude, longitude, radius_m, is_active, trigger_type
		FROM geofences
		WHERE pdv_id = $1 AND is_active`

	var g domain.Geofence
	err := r.db.QueryRowContext(ctx, query, pdvID).Scan(
		&g.ID, &g.PdvID, &g.Center.Latitude, &g.Center.Longitude,
		&g.RadiusM, &g.Active, &g.TriggerType,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active geofence: %w", err)
	}
	return &g, nil
}
