package repository

import (
	"context"
	"time"

	"rutero-field/internal/domain"
)

// CheckOutUpdate parameters applied when completing a visit.
type CheckOutUpdate struct {
	At         time.Time
	Coordinate *domain.Coordinate
	Notes      string
	Device     *domain.VisitDeviceInfo
}

// VisitsRepository visit persistence.
//
// CompleteVisit and DeleteInProgressVisit take a row lock on the visit
// before mutating it, so two concurrent check-outs for the same visit
// serialize and the loser observes domain.ErrVisitNotActive.
type VisitsRepository interface {
	// GetInProgressVisit returns the agent's visit in status
	// in_progress with the PDV name joined, or (nil, nil).
	GetInProgressVisit(ctx context.Context, agentID string) (*domain.Visit, error)

	// GetVisit returns a visit by id, or (nil, nil).
	GetVisit(ctx context.Context, visitID string) (*domain.Visit, error)

	// FindCompletedVisit returns the agent's completed visit to the
	// PDV whose check-in falls inside [dayStart, dayEnd), or (nil, nil).
	FindCompletedVisit(ctx context.Context, agentID, pdvID string, dayStart, dayEnd time.Time) (*domain.Visit, error)

	// CreateVisit inserts a new visit in status in_progress. A lost
	// race against the partial unique indexes surfaces as the same
	// typed error the precondition checks produce
	// (*domain.ConcurrentVisitError / *domain.AlreadyVisitedTodayError).
	CreateVisit(ctx context.Context, v *domain.Visit) error

	// CompleteVisit locks the visit row, verifies ownership and
	// in_progress status, merges the check-out payload and marks the
	// visit completed. The only transition into completed.
	CompleteVisit(ctx context.Context, agentID, visitID string, upd CheckOutUpdate) (*domain.Visit, error)

	// DeleteInProgressVisit removes an abandoned visit and its
	// attached form responses. Completed visits are immutable history.
	DeleteInProgressVisit(ctx context.Context, agentID, visitID string) error

	// CountVisitsInWindow counts the agent's visits whose check-in
	// falls inside [from, to].
	CountVisitsInWindow(ctx context.Context, agentID string, from, to time.Time) (int, error)
}
