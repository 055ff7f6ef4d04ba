// Package consumer feeds the GPS trail aggregator from the MQTT ingest
// topic. Mobile clients publish their buffered samples to
// agents/<agent_id>/gps; the consumer decodes each message into a batch
// and hands it to the track service.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rutero-field/internal/domain"
	"rutero-field/internal/mqtt"
	"rutero-field/internal/service"

	"go.uber.org/zap"
)

// gpsMessage wire format of one ingest message. A single-sample client
// publishes a one-element array.
type gpsMessage struct {
	Samples []gpsSample `json:"samples"`
}

type gpsSample struct {
	RecordedAt time.Time `json:"recorded_at"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m"`
	SpeedKmh   float64   `json:"speed_kmh"`
	Heading    float64   `json:"heading"`
	BatteryPct int       `json:"battery_pct"`
	IsMock     bool      `json:"is_mock"`
}

// GpsConsumer MQTT subscriber for agent GPS batches.
type GpsConsumer struct {
	client *mqtt.Client
	track  *service.TrackService
	topic  string
	qos    byte
	logger *zap.Logger
}

func NewGpsConsumer(client *mqtt.Client, track *service.TrackService, topic string, qos byte, logger *zap.Logger) *GpsConsumer {
	return &GpsConsumer{
		client: client,
		track:  track,
		topic:  topic,
		qos:    qos,
		logger: logger,
	}
}

// Start subscribes to the ingest topic.
func (c *GpsConsumer) Start() error {
	if err := c.client.Subscribe(c.topic, c.qos, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to gps topic: %w", err)
	}
	c.logger.Info("GPS consumer started", zap.String("topic", c.topic))
	return nil
}

// Stop unsubscribes from the ingest topic.
func (c *GpsConsumer) Stop() {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		c.logger.Warn("Failed to unsubscribe from gps topic", zap.Error(err))
	}
}

// HandleMessage processes one ingest message. Rejected batches (over
// the ceiling, bad coordinates, malformed payloads) are logged and
// dropped; QoS redelivery of a bad message would only reject again.
func (c *GpsConsumer) HandleMessage(topic string, payload []byte) error {
	agentID, err := agentFromTopic(topic)
	if err != nil {
		return err
	}

	var msg gpsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode gps message: %w", err)
	}
	if len(msg.Samples) == 0 {
		return nil
	}

	batch := make([]service.TrackSample, 0, len(msg.Samples))
	for _, s := range msg.Samples {
		batch = append(batch, service.TrackSample{
			RecordedAt: s.RecordedAt,
			Coordinate: domain.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude},
			AccuracyM:  s.AccuracyM,
			SpeedKmh:   s.SpeedKmh,
			Heading:    s.Heading,
			BatteryPct: s.BatteryPct,
			IsMock:     s.IsMock,
		})
	}

	if _, err := c.track.IngestBatch(context.Background(), agentID, batch); err != nil {
		return fmt.Errorf("failed to ingest gps batch for agent %s: %w", agentID, err)
	}

	c.logger.Debug("GPS message ingested",
		zap.String("agent_id", agentID),
		zap.Int("samples", len(batch)))

	return nil
}

// agentFromTopic extracts the agent id from agents/<agent_id>/gps.
func agentFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "agents" || parts[2] != "gps" || parts[1] == "" {
		return "", fmt.Errorf("unexpected gps topic %q", topic)
	}
	return parts[1], nil
}
