package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"

	"go.uber.org/zap"
)

// PostgresVisitsRepository visit repository implementation
type PostgresVisitsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresVisitsRepository creates a visit repository.
func NewPostgresVisitsRepository(db *sql.DB, logger *zap.Logger) *PostgresVisitsRepository {
	return &PostgresVisitsRepository{db: db, logger: logger}
}

var _ VisitsRepository = (*PostgresVisitsRepository)(nil)

const visitColumns = `
	v.visit_id::text, v.agent_id::text, v.pdv_id::text, COALESCE(p.pdv_name, ''),
	v.check_in_at, v.check_out_at, v.check_in_latitude, v.check_in_longitude,
	v.distance_to_pdv_m, v.is_valid, v.used_mock_location,
	v.visit_status, v.duration_minutes, v.visit_data`

const visitFrom = `
	FROM visits v
	LEFT JOIN pdvs p ON v.pdv_id = p.pdv_id`

func scanVisit(row rowScanner) (*domain.Visit, error) {
	var v domain.Visit
	var checkOutAt sql.NullTime
	var dataRaw []byte

	err := row.Scan(
		&v.ID, &v.AgentID, &v.PdvID, &v.PdvName,
		&v.CheckInAt, &checkOutAt,
		&v.CheckInCoordinate.Latitude, &v.CheckInCoordinate.Longitude,
		&v.DistanceToPdvM, &v.IsValid, &v.UsedMockLocation,
		&v.Status, &v.DurationMinutes, &dataRaw,
	)
	if err != nil {
		return nil, err
	}

	if checkOutAt.Valid {
		t := checkOutAt.Time
		v.CheckOutAt = &t
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &v.Data); err != nil {
			return nil, fmt.Errorf("failed to decode visit_data: %w", err)
		}
	}
	return &v, nil
}

// GetInProgressVisit returns the agent's in-progress visit, PDV name
// joined for client display.
func (r *PostgresVisitsRepository) GetInProgressVisit(ctx context.Context, agentID string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + visitFrom + `
		WHERE v.agent_id = $1 AND v.visit_status = 'in_progress'`

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query in-progress visit: %w", err)
	}
	return v, nil
}

// GetVisit returns a visit by id.
func (r *PostgresVisitsRepository) GetVisit(ctx context.Context, visitID string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + visitFrom + ` WHERE v.visit_id = $1`

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, visitID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query visit: %w", err)
	}
	return v, nil
}

// FindCompletedVisit returns the agent's completed visit to the PDV
// inside the business-day window.
func (r *PostgresVisitsRepository) FindCompletedVisit(ctx context.Context, agentID, pdvID string, dayStart, dayEnd time.Time) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + visitFrom + `
		WHERE v.agent_id = $1 AND v.pdv_id = $2
		  AND v.visit_status = 'completed'
		  AND v.check_in_at >= $3 AND v.check_in_at < $4
		ORDER BY v.check_in_at DESC
		LIMIT 1`

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, agentID, pdvID, dayStart, dayEnd))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query completed visit: %w", err)
	}
	return v, nil
}

// CreateVisit inserts a visit in status in_progress. Lost races against
// the partial unique indexes surface as the same typed errors the
// existence checks produce.
func (r *PostgresVisitsRepository) CreateVisit(ctx context.Context, v *domain.Visit) error {
	dataRaw, err := json.Marshal(v.Data)
	if err != nil {
		return fmt.Errorf("failed to encode visit_data: %w", err)
	}

	query := `
		INSERT INTO visits (
			visit_id, agent_id, pdv_id, check_in_at,
			check_in_latitude, check_in_longitude,
			distance_to_pdv_m, is_valid, used_mock_location,
			visit_status, visit_date, visit_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	// CheckInAt arrives in the business timezone, so its date is the
	// business day the daily-uniqueness index keys on.
	_, err = r.db.ExecContext(ctx, query,
		v.ID, v.AgentID, v.PdvID, v.CheckInAt,
		v.CheckInCoordinate.Latitude, v.CheckInCoordinate.Longitude,
		v.DistanceToPdvM, v.IsValid, v.UsedMockLocation,
		string(v.Status), v.CheckInAt.Format("2006-01-02"), dataRaw,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_visits_one_in_progress_per_agent") {
			if blocking, qerr := r.GetInProgressVisit(ctx, v.AgentID); qerr == nil && blocking != nil {
				return &domain.ConcurrentVisitError{
					VisitID: blocking.ID,
					PdvID:   blocking.PdvID,
					PdvName: blocking.PdvName,
				}
			}
			return &domain.ConcurrentVisitError{PdvID: v.PdvID}
		}
		return fmt.Errorf("failed to insert visit: %w", err)
	}
	return nil
}

// CompleteVisit locks the visit row, verifies it still belongs to the
// agent and is in progress, merges the check-out payload and completes
// it. Two concurrent check-outs serialize on the lock; the loser sees
// domain.ErrVisitNotActive.
func (r *PostgresVisitsRepository) CompleteVisit(ctx context.Context, agentID, visitID string, upd CheckOutUpdate) (*domain.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := r.lockVisit(ctx, tx, agentID, visitID)
	if err != nil {
		return nil, err
	}

	completed, err := r.completeInTx(ctx, tx, v, upd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit check-out: %w", err)
	}

	r.logger.Info("Visit completed",
		zap.String("visit_id", v.ID),
		zap.String("agent_id", agentID),
		zap.Int("duration_minutes", completed.DurationMinutes),
		zap.Bool("is_valid", completed.IsValid))

	return completed, nil
}

// lockVisit acquires the row lock and checks ownership and status.
func (r *PostgresVisitsRepository) lockVisit(ctx context.Context, tx *sql.Tx, agentID, visitID string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + visitFrom + `
		WHERE v.visit_id = $1
		FOR UPDATE OF v`

	v, err := scanVisit(tx.QueryRowContext(ctx, query, visitID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock visit: %w", err)
	}
	if v.AgentID != agentID {
		return nil, domain.ErrVisitNotFound
	}
	if v.Status != domain.VisitInProgress {
		return nil, domain.ErrVisitNotActive
	}
	return v, nil
}

// completeInTx applies the check-out mutation to an already locked,
// verified visit. Shared with the form-response recorder so a
// submission completes the visit in its own transaction.
func (r *PostgresVisitsRepository) completeInTx(ctx context.Context, tx *sql.Tx, v *domain.Visit, upd CheckOutUpdate) (*domain.Visit, error) {
	duration := clock.MinutesBetween(v.CheckInAt, upd.At)

	data := v.Data
	if upd.Notes != "" {
		data.CheckOutNotes = upd.Notes
	}
	if upd.Coordinate != nil {
		data.CheckOutCoordinate = upd.Coordinate
	}
	if upd.Device != nil {
		data.Device = upd.Device
	}
	dataRaw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode visit_data: %w", err)
	}

	query := `
		UPDATE visits SET
			visit_status = 'completed', check_out_at = $2,
			duration_minutes = $3, visit_data = $4
		WHERE visit_id = $1`

	if _, err := tx.ExecContext(ctx, query, v.ID, upd.At, duration, dataRaw); err != nil {
		if isUniqueViolation(err, "uq_visits_one_completed_per_day") {
			return nil, &domain.AlreadyVisitedTodayError{CheckInAt: v.CheckInAt}
		}
		return nil, fmt.Errorf("failed to complete visit: %w", err)
	}

	out := *v
	checkOutAt := upd.At
	out.CheckOutAt = &checkOutAt
	out.Status = domain.VisitCompleted
	out.DurationMinutes = duration
	out.Data = data
	return &out, nil
}

// DeleteInProgressVisit removes an abandoned visit together with any
// attached form responses. Completed visits cannot be deleted here.
func (r *PostgresVisitsRepository) DeleteInProgressVisit(ctx context.Context, agentID, visitID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.lockVisit(ctx, tx, agentID, visitID); err != nil {
		return err
	}

	// Responses cascade on delete; the explicit statement keeps the
	// evidence cleanup visible and works without the FK in place.
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_responses WHERE visit_id = $1`, visitID); err != nil {
		return fmt.Errorf("failed to delete visit responses: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM visits WHERE visit_id = $1`, visitID); err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visit delete: %w", err)
	}

	r.logger.Info("In-progress visit deleted",
		zap.String("visit_id", visitID),
		zap.String("agent_id", agentID))

	return nil
}

// CountVisitsInWindow counts the agent's visits checked in inside
// [from, to].
func (r *PostgresVisitsRepository) CountVisitsInWindow(ctx context.Context, agentID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM visits WHERE agent_id = $1 AND check_in_at BETWEEN $2 AND $3`

	var n int
	if err := r.db.QueryRowContext(ctx, query, agentID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return n, nil
}
