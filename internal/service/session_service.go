package service

import (
	"context"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"
	"rutero-field/internal/events"
	"rutero-field/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStartRequest parameters for opening a working session.
type SessionStartRequest struct {
	AgentID    string
	Coordinate domain.Coordinate
	Notes      string
}

// SessionEndRequest parameters for closing a working session.
type SessionEndRequest struct {
	AgentID    string
	Coordinate *domain.Coordinate
	Notes      string
}

// SessionService working-session state machine: start, pause, resume,
// end with close-time aggregation.
type SessionService struct {
	sessions repository.SessionsRepository
	clk      clock.Clock
	events   *events.Publisher
	logger   *zap.Logger
}

func NewSessionService(
	sessions repository.SessionsRepository,
	clk clock.Clock,
	publisher *events.Publisher,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		clk:      clk,
		events:   publisher,
		logger:   logger,
	}
}

// Start opens a session for the agent. At most one open session per
// agent: a second start reports the blocking session instead of
// creating another.
func (s *SessionService) Start(ctx context.Context, req SessionStartRequest) (*domain.WorkingSession, error) {
	if !req.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	open, err := s.sessions.GetOpenSession(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, &domain.SessionAlreadyActiveError{
			SessionID: open.ID,
			Status:    open.Status,
			StartedAt: open.StartedAt,
		}
	}

	now := s.clk.Now()
	session := &domain.WorkingSession{
		ID:              uuid.NewString(),
		AgentID:         req.AgentID,
		Status:          domain.SessionActive,
		StartedAt:       now,
		StartCoordinate: req.Coordinate,
		Notes:           req.Notes,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Working session started",
		zap.String("session_id", session.ID),
		zap.String("agent_id", req.AgentID))

	s.events.Publish(ctx, events.Event{
		Type:       events.SessionStarted,
		AgentID:    req.AgentID,
		EntityID:   session.ID,
		OccurredAt: now,
	})

	return session, nil
}

// Pause moves the agent's active session to paused.
func (s *SessionService) Pause(ctx context.Context, agentID string) (*domain.WorkingSession, error) {
	session, err := s.transition(ctx, agentID, domain.SessionActive, domain.SessionPaused, domain.ErrNoActiveSession)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.SessionPaused,
		AgentID:    agentID,
		EntityID:   session.ID,
		OccurredAt: s.clk.Now(),
	})
	return session, nil
}

// Resume moves the agent's paused session back to active.
func (s *SessionService) Resume(ctx context.Context, agentID string) (*domain.WorkingSession, error) {
	session, err := s.transition(ctx, agentID, domain.SessionPaused, domain.SessionActive, domain.ErrNoPausedSession)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.SessionResumed,
		AgentID:    agentID,
		EntityID:   session.ID,
		OccurredAt: s.clk.Now(),
	})
	return session, nil
}

// transition performs a compare-and-set status change on the agent's
// open session. The CAS makes a concurrent duplicate request lose
// cleanly: the state is already gone from `from`, so the repository
// reports no rows and the caller sees missing.
func (s *SessionService) transition(ctx context.Context, agentID string, from, to domain.SessionStatus, missing error) (*domain.WorkingSession, error) {
	session, err := s.sessions.GetOpenSession(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != from {
		return nil, missing
	}

	ok, err := s.sessions.SetStatus(ctx, session.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missing
	}
	session.Status = to

	s.logger.Info("Working session transitioned",
		zap.String("session_id", session.ID),
		zap.String("agent_id", agentID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return session, nil
}

// End closes the agent's active session and freezes its aggregates:
// trail distance from the session's GPS samples, visit count inside
// the session window and wall-clock duration. The aggregation runs
// inside the repository transaction so a sample or visit landing
// mid-close cannot split the totals. A paused session must be resumed
// before it can end.
func (s *SessionService) End(ctx context.Context, req SessionEndRequest) (*domain.WorkingSession, error) {
	if req.Coordinate != nil && !req.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	now := s.clk.Now()
	session, err := s.sessions.EndSession(ctx, req.AgentID, repository.SessionEnd{
		At:         now,
		Coordinate: req.Coordinate,
		Notes:      req.Notes,
		Reduce:     TrailDistanceKm,
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.SessionEnded,
		AgentID:    req.AgentID,
		EntityID:   session.ID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"total_distance_km":      session.TotalDistanceKm,
			"total_pdvs_visited":     session.TotalPdvsVisited,
			"total_duration_minutes": session.TotalDurationMinutes,
		},
	})

	return session, nil
}

// Current returns the agent's open session, nil when none.
func (s *SessionService) Current(ctx context.Context, agentID string) (*domain.WorkingSession, error) {
	return s.sessions.GetOpenSession(ctx, agentID)
}
