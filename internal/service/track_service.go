package service

import (
	"context"
	"math"
	"time"

	"rutero-field/internal/cache"
	"rutero-field/internal/domain"
	"rutero-field/internal/geo"
	"rutero-field/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrailDistanceKm reduces a time-ordered GPS trail to kilometers by
// summing haversine distances over consecutive pairs. Fewer than two
// samples is zero distance.
func TrailDistanceKm(samples []domain.GpsSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	var meters float64
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Coordinate, samples[i].Coordinate
		meters += geo.DistanceMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}
	return meters / 1000.0
}

// TrackSample one inbound location report, before the engine assigns
// it an id.
type TrackSample struct {
	RecordedAt time.Time
	Coordinate domain.Coordinate
	AccuracyM  float64
	SpeedKmh   float64
	Heading    float64
	BatteryPct int
	IsMock     bool
}

// TrackService GPS trail aggregator: append-only ingestion, live
// position and post-hoc distance queries.
type TrackService struct {
	gps        repository.GpsRepository
	cache      *cache.LivePositionCache
	batchLimit int
	logger     *zap.Logger
}

// NewTrackService creates the track service. cache may be nil; live
// position then falls back to the newest stored sample.
func NewTrackService(gps repository.GpsRepository, posCache *cache.LivePositionCache, batchLimit int, logger *zap.Logger) *TrackService {
	return &TrackService{
		gps:        gps,
		cache:      posCache,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Ingest appends one sample to the agent's trail.
func (s *TrackService) Ingest(ctx context.Context, agentID string, in TrackSample) (*domain.GpsSample, error) {
	if !in.Coordinate.InBounds() {
		return nil, domain.ErrInvalidCoordinate
	}

	sample := toSample(agentID, in)
	if err := s.gps.Insert(ctx, sample); err != nil {
		return nil, err
	}

	s.refreshLivePosition(ctx, sample)
	return sample, nil
}

// IngestBatch appends up to the configured ceiling of samples in one
// transaction. The whole batch is validated before anything is written:
// an oversized batch or an out-of-bounds coordinate rejects the batch
// with zero rows inserted.
func (s *TrackService) IngestBatch(ctx context.Context, agentID string, in []TrackSample) ([]*domain.GpsSample, error) {
	if len(in) > s.batchLimit {
		return nil, &domain.BatchTooLargeError{Count: len(in), Limit: s.batchLimit}
	}
	for _, ts := range in {
		if !ts.Coordinate.InBounds() {
			return nil, domain.ErrInvalidCoordinate
		}
	}

	samples := make([]*domain.GpsSample, 0, len(in))
	var newest *domain.GpsSample
	for _, ts := range in {
		sample := toSample(agentID, ts)
		samples = append(samples, sample)
		if newest == nil || sample.RecordedAt.After(newest.RecordedAt) {
			newest = sample
		}
	}

	if err := s.gps.InsertBatch(ctx, samples); err != nil {
		return nil, err
	}

	s.logger.Debug("Ingested gps batch",
		zap.String("agent_id", agentID),
		zap.Int("count", len(samples)))

	if newest != nil {
		s.refreshLivePosition(ctx, newest)
	}
	return samples, nil
}

// TrailDistance returns the kilometers covered by the agent's trail
// inside [from, to], rounded to two decimals.
func (s *TrackService) TrailDistance(ctx context.Context, agentID string, from, to time.Time) (float64, error) {
	samples, err := s.gps.ListRange(ctx, agentID, from, to)
	if err != nil {
		return 0, err
	}
	return math.Round(TrailDistanceKm(samples)*100) / 100, nil
}

// CurrentPosition returns the agent's last known position: the cache
// entry when fresh, otherwise the newest stored sample. (nil, nil)
// when the agent has never reported.
func (s *TrackService) CurrentPosition(ctx context.Context, agentID string) (*cache.LivePosition, error) {
	if s.cache != nil {
		pos, err := s.cache.Get(ctx, agentID)
		if err != nil {
			s.logger.Warn("Live position cache read failed",
				zap.String("agent_id", agentID),
				zap.Error(err))
		} else if pos != nil {
			return pos, nil
		}
	}

	sample, err := s.gps.Latest(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, nil
	}
	return &cache.LivePosition{
		AgentID:    sample.AgentID,
		Coordinate: sample.Coordinate,
		RecordedAt: sample.RecordedAt,
		SpeedKmh:   sample.SpeedKmh,
		Heading:    sample.Heading,
		BatteryPct: sample.BatteryPct,
		IsMock:     sample.IsMock,
	}, nil
}

// refreshLivePosition best-effort cache update; ingestion never fails
// because Redis is down.
func (s *TrackService) refreshLivePosition(ctx context.Context, sample *domain.GpsSample) {
	if s.cache == nil {
		return
	}
	err := s.cache.Update(ctx, &cache.LivePosition{
		AgentID:    sample.AgentID,
		Coordinate: sample.Coordinate,
		RecordedAt: sample.RecordedAt,
		SpeedKmh:   sample.SpeedKmh,
		Heading:    sample.Heading,
		BatteryPct: sample.BatteryPct,
		IsMock:     sample.IsMock,
	})
	if err != nil {
		s.logger.Warn("Live position cache update failed",
			zap.String("agent_id", sample.AgentID),
			zap.Error(err))
	}
}

func toSample(agentID string, in TrackSample) *domain.GpsSample {
	return &domain.GpsSample{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		RecordedAt: in.RecordedAt,
		Coordinate: in.Coordinate,
		AccuracyM:  in.AccuracyM,
		SpeedKmh:   in.SpeedKmh,
		Heading:    in.Heading,
		BatteryPct: in.BatteryPct,
		IsMock:     in.IsMock,
	}
}
