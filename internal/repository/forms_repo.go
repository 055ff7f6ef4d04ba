package repository

import (
	"context"

	"rutero-field/internal/domain"
)

// FormsRepository form field definitions and response persistence.
type FormsRepository interface {
	// GetFieldsByIDs resolves field definitions, keyed by field id.
	// Unknown ids are simply absent from the result.
	GetFieldsByIDs(ctx context.Context, fieldIDs []string) (map[string]domain.FormField, error)

	// SaveResponsesAndComplete upserts every answer keyed by
	// (visit, field) and transitions the owning visit to completed,
	// all inside one transaction: either everything persists and the
	// visit completes, or nothing does. The visit must belong to the
	// agent and still be in_progress (domain.ErrVisitNotFound /
	// domain.ErrVisitNotActive otherwise).
	SaveResponsesAndComplete(ctx context.Context, agentID, visitID string, answers []domain.FieldAnswer, upd CheckOutUpdate) (*domain.Visit, error)
}
