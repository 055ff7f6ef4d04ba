package service

import (
	"context"

	"rutero-field/internal/clock"
	"rutero-field/internal/domain"
	"rutero-field/internal/events"
	"rutero-field/internal/forms"
	"rutero-field/internal/repository"

	"go.uber.org/zap"
)

// FormSubmitRequest a visit's form answers plus the check-out payload
// that completes the visit in the same transaction.
type FormSubmitRequest struct {
	AgentID    string
	VisitID    string
	Answers    []domain.FieldAnswer
	Coordinate *domain.Coordinate
	Notes      string
	Device     *domain.VisitDeviceInfo
}

// FormService form response recorder. Submission validates every
// answer, then persists the responses and completes the owning visit
// atomically.
type FormService struct {
	forms  repository.FormsRepository
	clk    clock.Clock
	events *events.Publisher
	logger *zap.Logger
}

func NewFormService(formsRepo repository.FormsRepository, clk clock.Clock, publisher *events.Publisher, logger *zap.Logger) *FormService {
	return &FormService{
		forms:  formsRepo,
		clk:    clk,
		events: publisher,
		logger: logger,
	}
}

// Submit validates the answers against their field definitions and, if
// every one passes, stores the responses and checks the visit out. Any
// validation failure aborts with the full failure list and zero rows
// written: the visit stays in_progress so the agent can fix and retry.
func (s *FormService) Submit(ctx context.Context, req FormSubmitRequest) (*domain.Visit, error) {
	if req.Coordinate != nil && !req.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	fieldIDs := make([]string, 0, len(req.Answers))
	for _, a := range req.Answers {
		fieldIDs = append(fieldIDs, a.FieldID)
	}
	fields, err := s.forms.GetFieldsByIDs(ctx, fieldIDs)
	if err != nil {
		return nil, err
	}

	if failures := forms.ValidateAll(fields, req.Answers); len(failures) > 0 {
		s.logger.Info("Form submission rejected",
			zap.String("visit_id", req.VisitID),
			zap.String("agent_id", req.AgentID),
			zap.Int("failures", len(failures)))
		return nil, &domain.FormValidationError{Fields: failures}
	}

	// Empty optional answers passed validation but carry nothing worth
	// storing.
	keep := make([]domain.FieldAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		if a.Payload.Empty() {
			continue
		}
		keep = append(keep, a)
	}

	now := s.clk.Now()
	visit, err := s.forms.SaveResponsesAndComplete(ctx, req.AgentID, req.VisitID, keep, repository.CheckOutUpdate{
		At:         now,
		Coordinate: req.Coordinate,
		Notes:      req.Notes,
		Device:     req.Device,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Form responses recorded",
		zap.String("visit_id", visit.ID),
		zap.String("agent_id", req.AgentID),
		zap.Int("answers", len(keep)))

	s.events.Publish(ctx, events.Event{
		Type:       events.VisitCompleted,
		AgentID:    req.AgentID,
		EntityID:   visit.ID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"pdv_id":           visit.PdvID,
			"duration_minutes": visit.DurationMinutes,
			"answers":          len(keep),
		},
	})

	return visit, nil
}
