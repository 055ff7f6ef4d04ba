package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"

	"go.uber.org/zap"
)

// PostgresSessionsRepository working-session repository implementation
type PostgresSessionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSessionsRepository creates a working-session repository.
func NewPostgresSessionsRepository(db *sql.DB, logger *zap.Logger) *PostgresSessionsRepository {
	return &PostgresSessionsRepository{db: db, logger: logger}
}

var _ SessionsRepository = (*PostgresSessionsRepository)(nil)

const sessionColumns = `
	session_id::text, agent_id::text, started_at, ended_at,
	start_latitude, start_longitude, end_latitude, end_longitude,
	status, total_distance_km, total_pdvs_visited, total_duration_minutes, notes`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.WorkingSession, error) {
	var s domain.WorkingSession
	var endedAt sql.NullTime
	var endLat, endLon sql.NullFloat64

	err := row.Scan(
		&s.ID, &s.AgentID, &s.StartedAt, &endedAt,
		&s.StartCoordinate.Latitude, &s.StartCoordinate.Longitude,
		&endLat, &endLon,
		&s.Status, &s.TotalDistanceKm, &s.TotalPdvsVisited, &s.TotalDurationMinutes, &s.Notes,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if endLat.Valid && endLon.Valid {
		s.EndCoordinate = &domain.Coordinate{Latitude: endLat.Float64, Longitude: endLon.Float64}
	}
	return &s, nil
}

// GetOpenSession returns the agent's active or paused session.
func (r *PostgresSessionsRepository) GetOpenSession(ctx context.Context, agentID string) (*domain.WorkingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM working_sessions
		WHERE agent_id = $1 AND status IN ('active', 'paused')`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open session: %w", err)
	}
	return s, nil
}

// GetSession returns a session by id.
func (r *PostgresSessionsRepository) GetSession(ctx context.Context, sessionID string) (*domain.WorkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM working_sessions WHERE session_id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// CreateSession inserts a new active session. A concurrent insert that
// loses the race against uq_sessions_one_open_per_agent is reported as
// *domain.SessionAlreadyActiveError, same as the existence check.
func (r *PostgresSessionsRepository) CreateSession(ctx context.Context, s *domain.WorkingSession) error {
	query := `
		INSERT INTO working_sessions (
			session_id, agent_id, started_at,
			start_latitude, start_longitude, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.AgentID, s.StartedAt,
		s.StartCoordinate.Latitude, s.StartCoordinate.Longitude,
		string(s.Status), s.Notes,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_sessions_one_open_per_agent") {
			if existing, qerr := r.GetOpenSession(ctx, s.AgentID); qerr == nil && existing != nil {
				return &domain.SessionAlreadyActiveError{
					SessionID: existing.ID,
					Status:    existing.Status,
					StartedAt: existing.StartedAt,
				}
			}
			return &domain.SessionAlreadyActiveError{StartedAt: s.StartedAt}
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// SetStatus flips the session status from -> to. Returns false when the
// session was not in the source status (already flipped, or closed).
func (r *PostgresSessionsRepository) SetStatus(ctx context.Context, sessionID string, from, to domain.SessionStatus) (bool, error) {
	query := `UPDATE working_sessions SET status = $3 WHERE session_id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, sessionID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// EndSession closes the agent's active session under its row lock and
// derives the close-time aggregates. Reading the GPS trail and visit
// count inside the same transaction keeps the aggregates consistent
// with whatever was committed up to this instant; samples committed
// later belong chronologically after the session ended.
func (r *PostgresSessionsRepository) EndSession(ctx context.Context, agentID string, end SessionEnd) (*domain.WorkingSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockQuery := `SELECT ` + sessionColumns + `
		FROM working_sessions
		WHERE agent_id = $1 AND status = 'active'
		FOR UPDATE`

	s, err := scanSession(tx.QueryRowContext(ctx, lockQuery, agentID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock active session: %w", err)
	}

	samples, err := r.trailInTx(ctx, tx, agentID, s.StartedAt, end.At)
	if err != nil {
		return nil, err
	}

	distanceKm := 0.0
	if end.Reduce != nil {
		distanceKm = math.Round(end.Reduce(samples)*100) / 100
	}

	var pdvsVisited int
	countQuery := `SELECT COUNT(*) FROM visits WHERE agent_id = $1 AND check_in_at BETWEEN $2 AND $3`
	if err := tx.QueryRowContext(ctx, countQuery, agentID, s.StartedAt, end.At).Scan(&pdvsVisited); err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}

	durationMin := clock.MinutesBetween(s.StartedAt, end.At)

	updateQuery := `
		UPDATE working_sessions SET
			status = 'completed', ended_at = $2,
			end_latitude = $3, end_longitude = $4,
			total_distance_km = $5, total_pdvs_visited = $6, total_duration_minutes = $7,
			notes = CASE WHEN $8 = '' THEN notes ELSE $8 END
		WHERE session_id = $1`

	var endLat, endLon interface{}
	if end.Coordinate != nil {
		endLat, endLon = end.Coordinate.Latitude, end.Coordinate.Longitude
	}
	if _, err := tx.ExecContext(ctx, updateQuery,
		s.ID, end.At, endLat, endLon,
		distanceKm, pdvsVisited, durationMin, end.Notes,
	); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session close: %w", err)
	}

	endedAt := end.At
	s.Status = domain.SessionCompleted
	s.EndedAt = &endedAt
	s.EndCoordinate = end.Coordinate
	s.TotalDistanceKm = distanceKm
	s.TotalPdvsVisited = pdvsVisited
	s.TotalDurationMinutes = durationMin
	if end.Notes != "" {
		s.Notes = end.Notes
	}

	r.logger.Info("Working session closed",
		zap.String("session_id", s.ID),
		zap.String("agent_id", agentID),
		zap.Float64("total_distance_km", distanceKm),
		zap.Int("total_pdvs_visited", pdvsVisited),
		zap.Int("total_duration_minutes", durationMin))

	return s, nil
}

func (r *PostgresSessionsRepository) trailInTx(ctx context.Context, tx *sql.Tx, agentID string, from, to time.Time) ([]domain.GpsSample, error) {
	query := `
		SELECT sample_id::text, agent_id::text, recorded_at, latitude, longitude
		FROM gps_samples
		WHERE agent_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at`

	rows, err := tx.QueryContext(ctx, query, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query gps trail: %w", err)
	}
	defer rows.Close()

	var samples []domain.GpsSample
	for rows.Next() {
		var s domain.GpsSample
		if err := rows.Scan(&s.ID, &s.AgentID, &s.RecordedAt,
			&s.Coordinate.Latitude, &s.Coordinate.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan gps sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// ListCompletedSessions returns completed sessions started in [from, to).
func (r *PostgresSessionsRepository) ListCompletedSessions(ctx context.Context, from, to time.Time) ([]domain.WorkingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM working_sessions
		WHERE status = 'completed' AND started_at >= $1 AND started_at < $2
		ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.WorkingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
