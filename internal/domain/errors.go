package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Precondition violations the engine reports to clients. Each carries
// the context the mobile UI needs to explain the rejection without a
// follow-up query. An operation that returns one of these had no side
// effect.
var (
	ErrNoActiveSession       = errors.New("agent has no active working session")
	ErrNoPausedSession       = errors.New("agent has no paused working session")
	ErrVisitNotFound         = errors.New("visit not found")
	ErrVisitNotActive        = errors.New("visit is not in progress")
	ErrPdvMissingCoordinates = errors.New("pdv has no registered coordinates")
	ErrPdvNotFound           = errors.New("pdv not found")
	ErrInvalidCoordinate     = errors.New("coordinate outside valid latitude/longitude bounds")
	ErrAgentNotAuthorized    = errors.New("agent lacks the required field role")
)

// SessionAlreadyActiveError the agent already owns an open session.
type SessionAlreadyActiveError struct {
	SessionID string
	Status    SessionStatus
	StartedAt time.Time
}

func (e *SessionAlreadyActiveError) Error() string {
	return fmt.Sprintf("agent already has a %s working session %s started at %s",
		e.Status, e.SessionID, e.StartedAt.Format(time.RFC3339))
}

// AlreadyVisitedTodayError the agent already completed a visit to this
// PDV during the current business day.
type AlreadyVisitedTodayError struct {
	VisitID   string
	CheckInAt time.Time
}

func (e *AlreadyVisitedTodayError) Error() string {
	return fmt.Sprintf("pdv already visited today (visit %s, checked in at %s)",
		e.VisitID, e.CheckInAt.Format(time.RFC3339))
}

// ConcurrentVisitError another visit is still in progress for this
// agent; PdvName identifies the blocking PDV for client display.
type ConcurrentVisitError struct {
	VisitID string
	PdvID   string
	PdvName string
}

func (e *ConcurrentVisitError) Error() string {
	return fmt.Sprintf("agent has a visit in progress at %q (visit %s)", e.PdvName, e.VisitID)
}

// BatchTooLargeError a GPS batch exceeded the configured ceiling.
type BatchTooLargeError struct {
	Count int
	Limit int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("gps batch of %d samples exceeds the limit of %d", e.Count, e.Limit)
}

// FieldValidationError one invalid form field.
type FieldValidationError struct {
	FieldID string
	Label   string
	Reason  string
}

func (e FieldValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Label, e.Reason)
}

// FormValidationError aggregate of every invalid field in a
// submission. Failures are collected, not short-circuited, so clients
// on poor connectivity learn everything in one round-trip.
type FormValidationError struct {
	Fields []FieldValidationError
}

func (e *FormValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("invalid form fields: %s", strings.Join(msgs, "; "))
}
