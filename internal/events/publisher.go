// Package events publishes visit/session lifecycle events to a Redis
// Stream for downstream consumers (supervision dashboards, alerting).
// Publishing is best-effort: the engine never fails an operation
// because the stream is unavailable.
package events

import (
	"context"
	"time"

	redisx "rutero-field/internal/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event types emitted by the engine.
const (
	SessionStarted = "session.started"
	SessionPaused  = "session.paused"
	SessionResumed = "session.resumed"
	SessionEnded   = "session.ended"
	VisitCheckedIn = "visit.checked_in"
	VisitCompleted = "visit.completed"
	VisitDeleted   = "visit.deleted"
)

// Event one lifecycle event on the stream.
type Event struct {
	Type       string                 `json:"type"`
	AgentID    string                 `json:"agent_id"`
	EntityID   string                 `json:"entity_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Publisher Redis Streams event publisher.
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewPublisher creates a publisher for the configured stream.
func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// Publish emits one event; failures are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.client == nil {
		return
	}

	id, err := redisx.PublishJSONToStream(ctx, p.client, p.stream, ev)
	if err != nil {
		p.logger.Warn("Failed to publish lifecycle event",
			zap.String("type", ev.Type),
			zap.String("agent_id", ev.AgentID),
			zap.Error(err))
		return
	}

	p.logger.Debug("Lifecycle event published",
		zap.String("type", ev.Type),
		zap.String("stream_id", id))
}
