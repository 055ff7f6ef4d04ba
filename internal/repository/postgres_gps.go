package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rutero-field/internal/domain"

	"go.uber.org/zap"
)

// PostgresGpsRepository GPS sample repository implementation
type PostgresGpsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresGpsRepository creates a GPS sample repository.
func NewPostgresGpsRepository(db *sql.DB, logger *zap.Logger) *PostgresGpsRepository {
	return &PostgresGpsRepository{db: db, logger: logger}
}

var _ GpsRepository = (*PostgresGpsRepository)(nil)

const gpsInsertQuery = `
	INSERT INTO gps_samples (
		sample_id, agent_id, recorded_at, latitude, longitude,
		accuracy_m, speed_kmh, heading, battery_pct, is_mock
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const gpsSelectColumns = `
	sample_id::text, agent_id::text, recorded_at, latitude, longitude,
	accuracy_m, speed_kmh, heading, battery_pct, is_mock`

func scanGpsSample(row rowScanner) (*domain.GpsSample, error) {
	var s domain.GpsSample
	err := row.Scan(
		&s.ID, &s.AgentID, &s.RecordedAt,
		&s.Coordinate.Latitude, &s.Coordinate.Longitude,
		&s.AccuracyM, &s.SpeedKmh, &s.Heading, &s.BatteryPct, &s.IsMock,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert appends one sample.
func (r *PostgresGpsRepository) Insert(ctx context.Context, s *domain.GpsSample) error {
	_, err := r.db.ExecContext(ctx, gpsInsertQuery,
		s.ID, s.AgentID, s.RecordedAt,
		s.Coordinate.Latitude, s.Coordinate.Longitude,
		s.AccuracyM, s.SpeedKmh, s.Heading, s.BatteryPct, s.IsMock,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gps sample: %w", err)
	}
	return nil
}

// InsertBatch appends a batch of samples inside one transaction.
func (r *PostgresGpsRepository) InsertBatch(ctx context.Context, samples []*domain.GpsSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, gpsInsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare gps insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.AgentID, s.RecordedAt,
			s.Coordinate.Latitude, s.Coordinate.Longitude,
			s.AccuracyM, s.SpeedKmh, s.Heading, s.BatteryPct, s.IsMock,
		); err != nil {
			return fmt.Errorf("failed to insert gps sample in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit gps batch: %w", err)
	}

	r.logger.Debug("GPS batch inserted",
		zap.String("agent_id", samples[0].AgentID),
		zap.Int("count", len(samples)))

	return nil
}

// ListRange returns the agent's samples inside [from, to] ordered by
// recorded_at.
func (r *PostgresGpsRepository) ListRange(ctx context.Context, agentID string, from, to time.Time) ([]domain.GpsSample, error) {
	query := `SELECT ` + gpsSelectColumns + `
		FROM gps_samples
		WHERE agent_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at`

	rows, err := r.db.QueryContext(ctx, query, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query gps samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.GpsSample
	for rows.Next() {
		s, err := scanGpsSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gps sample: %w", err)
		}
		samples = append(samples, *s)
	}
	return samples, rows.Err()
}

// Latest returns the agent's newest sample.
func (r *PostgresGpsRepository) Latest(ctx context.Context, agentID string) (*domain.GpsSample, error) {
	query := `SELECT ` + gpsSelectColumns + `
		FROM gps_samples
		WHERE agent_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	s, err := scanGpsSample(r.db.QueryRowContext(ctx, query, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest gps sample: %w", err)
	}
	return s, nil
}
