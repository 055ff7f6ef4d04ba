package repository

import (
	"context"
	"time"

	"rutero-field/internal/domain"
)

// DistanceReducer reduces a time-ordered GPS trail to total kilometers.
// Injected by the service layer so the storage layer stays free of
// geodesy; called inside the session-end transaction so the trail is
// consistent with whatever was committed at that instant.
type DistanceReducer func(samples []domain.GpsSample) float64

// SessionEnd parameters for closing a session.
type SessionEnd struct {
	At         time.Time
	Coordinate *domain.Coordinate
	Notes      string
	Reduce     DistanceReducer
}

// SessionsRepository working-session persistence.
//
// CreateSession must hold the one-open-session-per-agent invariant: a
// concurrent insert losing the unique-index race surfaces as the same
// *domain.SessionAlreadyActiveError the existence check produces.
type SessionsRepository interface {
	// GetOpenSession returns the agent's session in status
	// active/paused, or (nil, nil) when there is none.
	GetOpenSession(ctx context.Context, agentID string) (*domain.WorkingSession, error)

	// GetSession returns a session by id, or (nil, nil).
	GetSession(ctx context.Context, sessionID string) (*domain.WorkingSession, error)

	// CreateSession inserts a new session in status active.
	CreateSession(ctx context.Context, s *domain.WorkingSession) error

	// SetStatus flips status from -> to on one session. Returns false
	// when the session is no longer in the source status.
	SetStatus(ctx context.Context, sessionID string, from, to domain.SessionStatus) (bool, error)

	// EndSession locks the agent's active session row, derives the
	// close-time aggregates (distance over the agent's GPS trail since
	// the session started, PDVs visited in the window, duration) and
	// marks it completed. Returns domain.ErrNoActiveSession when the
	// agent has no active session.
	EndSession(ctx context.Context, agentID string, end SessionEnd) (*domain.WorkingSession, error)

	// ListCompletedSessions returns completed sessions whose start
	// falls inside [from, to), ordered by start time. Report feed.
	ListCompletedSessions(ctx context.Context, from, to time.Time) ([]domain.WorkingSession, error)
}
