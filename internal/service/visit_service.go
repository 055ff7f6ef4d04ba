package service

import (
	"context"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"
	"rutero-field/internal/events"
	"rutero-field/internal/geo"
	"rutero-field/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoleChecker agent-directory collaborator surface consumed by the
// engine. Implemented by directory.Client; nil disables the check.
type RoleChecker interface {
	RoleCheck(agentID string, roles []string) (bool, error)
}

// CheckInRequest parameters for a PDV check-in.
type CheckInRequest struct {
	AgentID          string
	PdvID            string
	Coordinate       domain.Coordinate
	UsedMockLocation bool
	Notes            string
	Device           *domain.VisitDeviceInfo
}

// CheckOutRequest parameters for a visit check-out.
type CheckOutRequest struct {
	AgentID    string
	VisitID    string
	Coordinate *domain.Coordinate
	Notes      string
	Device     *domain.VisitDeviceInfo
}

// VisitService visit state machine: check-in, check-out, delete.
type VisitService struct {
	sessions repository.SessionsRepository
	visits   repository.VisitsRepository
	pdvs     repository.PdvsRepository
	resolver *geo.Resolver
	clk      clock.Clock
	events   *events.Publisher
	roles    RoleChecker
	role     string
	logger   *zap.Logger
}

// NewVisitService creates the visit service. publisher and roles may be
// nil (eventing and the directory check are then disabled).
func NewVisitService(
	sessions repository.SessionsRepository,
	visits repository.VisitsRepository,
	pdvs repository.PdvsRepository,
	resolver *geo.Resolver,
	clk clock.Clock,
	publisher *events.Publisher,
	roles RoleChecker,
	requiredRole string,
	logger *zap.Logger,
) *VisitService {
	return &VisitService{
		sessions: sessions,
		visits:   visits,
		pdvs:     pdvs,
		resolver: resolver,
		clk:      clk,
		events:   publisher,
		roles:    roles,
		role:     requiredRole,
		logger:   logger,
	}
}

// CheckIn opens a visit against a PDV. Preconditions are checked in
// order; the first failure wins and nothing is written. A check-in
// outside the geofence is recorded with IsValid=false instead of being
// rejected, so supervisors can audit attempted-but-invalid visits.
func (s *VisitService) CheckIn(ctx context.Context, req CheckInRequest) (*domain.Visit, error) {
	if !req.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	if s.roles != nil {
		allowed, err := s.roles.RoleCheck(req.AgentID, []string{s.role})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, domain.ErrAgentNotAuthorized
		}
	}

	now := s.clk.Now()

	// (a) an active working session.
	session, err := s.sessions.GetOpenSession(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != domain.SessionActive {
		return nil, domain.ErrNoActiveSession
	}

	// (b) no completed visit to this PDV during the business day.
	dayStart, dayEnd := clock.DayBounds(s.clk, now)
	prior, err := s.visits.FindCompletedVisit(ctx, req.AgentID, req.PdvID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return nil, &domain.AlreadyVisitedTodayError{VisitID: prior.ID, CheckInAt: prior.CheckInAt}
	}

	// (c) no other visit in progress.
	blocking, err := s.visits.GetInProgressVisit(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if blocking != nil {
		return nil, &domain.ConcurrentVisitError{
			VisitID: blocking.ID,
			PdvID:   blocking.PdvID,
			PdvName: blocking.PdvName,
		}
	}

	// (d) a geocoded PDV.
	pdv, err := s.pdvs.GetPdv(ctx, req.PdvID)
	if err != nil {
		return nil, err
	}
	if pdv == nil {
		return nil, domain.ErrPdvNotFound
	}
	if pdv.Coordinate == nil {
		return nil, domain.ErrPdvMissingCoordinates
	}

	fence, err := s.pdvs.GetActiveGeofence(ctx, req.PdvID)
	if err != nil {
		return nil, err
	}
	validation, err := s.resolver.Resolve(pdv, fence, req.Coordinate)
	if err != nil {
		return nil, err
	}

	distanceToPdv := geo.DistanceMeters(
		req.Coordinate.Latitude, req.Coordinate.Longitude,
		pdv.Coordinate.Latitude, pdv.Coordinate.Longitude,
	)

	visit := &domain.Visit{
		ID:                uuid.NewString(),
		AgentID:           req.AgentID,
		PdvID:             pdv.ID,
		PdvName:           pdv.Name,
		CheckInAt:         now,
		CheckInCoordinate: req.Coordinate,
		DistanceToPdvM:    distanceToPdv,
		IsValid:           validation.WithinFence,
		UsedMockLocation:  req.UsedMockLocation,
		Status:            domain.VisitInProgress,
		Data: domain.VisitData{
			Notes:  req.Notes,
			Device: req.Device,
			Geofence: &domain.GeofenceValidation{
				WithinFence: validation.WithinFence,
				DistanceM:   validation.DistanceM,
				RadiusM:     validation.RadiusM,
			},
		},
	}

	if err := s.visits.CreateVisit(ctx, visit); err != nil {
		return nil, err
	}

	s.logger.Info("Visit checked in",
		zap.String("visit_id", visit.ID),
		zap.String("agent_id", req.AgentID),
		zap.String("pdv_id", pdv.ID),
		zap.Bool("is_valid", visit.IsValid),
		zap.Float64("distance_to_pdv_m", distanceToPdv))

	s.events.Publish(ctx, events.Event{
		Type:       events.VisitCheckedIn,
		AgentID:    req.AgentID,
		EntityID:   visit.ID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"pdv_id":   pdv.ID,
			"is_valid": visit.IsValid,
		},
	})

	return visit, nil
}

// CheckOut completes an in-progress visit. The row lock in the
// repository serializes concurrent attempts; the loser observes
// domain.ErrVisitNotActive and the first check-out's timestamps stand.
func (s *VisitService) CheckOut(ctx context.Context, req CheckOutRequest) (*domain.Visit, error) {
	if req.Coordinate != nil && !req.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	now := s.clk.Now()
	visit, err := s.visits.CompleteVisit(ctx, req.AgentID, req.VisitID, repository.CheckOutUpdate{
		At:         now,
		Coordinate: req.Coordinate,
		Notes:      req.Notes,
		Device:     req.Device,
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.VisitCompleted,
		AgentID:    req.AgentID,
		EntityID:   visit.ID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"pdv_id":           visit.PdvID,
			"duration_minutes": visit.DurationMinutes,
			"is_valid":         visit.IsValid,
		},
	})

	return visit, nil
}

// DeleteInProgressVisit discards an abandoned visit and its evidence.
// Completed visits are immutable history and stay.
func (s *VisitService) DeleteInProgressVisit(ctx context.Context, agentID, visitID string) error {
	if err := s.visits.DeleteInProgressVisit(ctx, agentID, visitID); err != nil {
		return err
	}

	s.logger.Info("Visit deleted",
		zap.String("visit_id", visitID),
		zap.String("agent_id", agentID))

	s.events.Publish(ctx, events.Event{
		Type:       events.VisitDeleted,
		AgentID:    agentID,
		EntityID:   visitID,
		OccurredAt: s.clk.Now(),
	})

	return nil
}

// CurrentVisit returns the agent's in-progress visit, nil when none.
func (s *VisitService) CurrentVisit(ctx context.Context, agentID string) (*domain.Visit, error) {
	return s.visits.GetInProgressVisit(ctx, agentID)
}
