package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rutero-field/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresFormsRepository form field and response repository
type PostgresFormsRepository struct {
	db     *sql.DB
	visits *PostgresVisitsRepository
	logger *zap.Logger
}

// NewPostgresFormsRepository creates a forms repository. It shares the
// visits repository so a response submission can complete the owning
// visit inside its own transaction.
func NewPostgresFormsRepository(db *sql.DB, visits *PostgresVisitsRepository, logger *zap.Logger) *PostgresFormsRepository {
	return &PostgresFormsRepository{db: db, visits: visits, logger: logger}
}

var _ FormsRepository = (*PostgresFormsRepository)(nil)

// GetFieldsByIDs resolves field definitions keyed by id. Unknown ids
// are absent from the result.
func (r *PostgresFormsRepository) GetFieldsByIDs(ctx context.Context, fieldIDs []string) (map[string]domain.FormField, error) {
	if len(fieldIDs) == 0 {
		return map[string]domain.FormField{}, nil
	}

	query := `
		SELECT field_id::text, label, field_type, required,
		       min_value, max_value, options, allowed_extensions
		FROM form_fields
		WHERE field_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(fieldIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query form fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]domain.FormField, len(fieldIDs))
	for rows.Next() {
		var f domain.FormField
		var fieldType string
		var minV, maxV sql.NullFloat64
		var optionsRaw, extsRaw []byte

		if err := rows.Scan(&f.ID, &f.Label, &fieldType, &f.Required,
			&minV, &maxV, &optionsRaw, &extsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}

		f.Type = domain.FieldType(fieldType)
		if minV.Valid {
			v := minV.Float64
			f.MinValue = &v
		}
		if maxV.Valid {
			v := maxV.Float64
			f.MaxValue = &v
		}
		if len(optionsRaw) > 0 {
			if err := json.Unmarshal(optionsRaw, &f.Options); err != nil {
				return nil, fmt.Errorf("failed to decode field options: %w", err)
			}
		}
		if len(extsRaw) > 0 {
			if err := json.Unmarshal(extsRaw, &f.AllowedExtensions); err != nil {
				return nil, fmt.Errorf("failed to decode field extensions: %w", err)
			}
		}

		fields[f.ID] = f
	}
	return fields, rows.Err()
}

// SaveResponsesAndComplete upserts every answer and completes the
// owning visit in one transaction. Nothing persists when the lock or
// status check fails; the caller rejects invalid answers before ever
// reaching here.
func (r *PostgresFormsRepository) SaveResponsesAndComplete(ctx context.Context, agentID, visitID string, answers []domain.FieldAnswer, upd CheckOutUpdate) (*domain.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := r.visits.lockVisit(ctx, tx, agentID, visitID)
	if err != nil {
		return nil, err
	}

	upsert := `
		INSERT INTO form_responses (response_id, visit_id, field_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT uq_form_responses_visit_field
		DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`

	for _, a := range answers {
		payloadRaw, err := json.Marshal(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert,
			uuid.NewString(), visitID, a.FieldID, payloadRaw, upd.At,
		); err != nil {
			return nil, fmt.Errorf("failed to upsert form response: %w", err)
		}
	}

	completed, err := r.visits.completeInTx(ctx, tx, v, upd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit form submission: %w", err)
	}

	r.logger.Info("Form responses saved, visit completed",
		zap.String("visit_id", visitID),
		zap.String("agent_id", agentID),
		zap.Int("responses", len(answers)))

	return completed, nil
}
