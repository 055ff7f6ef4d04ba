package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rutero-field/internal/cache"
	"rutero-field/internal/clock"
	"rutero-field/internal/config"
	"rutero-field/internal/database"
	"rutero-field/internal/directory"
	"rutero-field/internal/events"
	"rutero-field/internal/geo"
	"rutero-field/internal/mqtt"
	redisx "rutero-field/internal/redis"
	"rutero-field/internal/repository"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EngineService wires storage, transports and the domain services into
// one runnable unit. The MQTT ingest subscription is attached by the
// caller (see cmd/rutero-field) so the engine stays usable without a
// broker.
type EngineService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *goredis.Client
	mqttClient  *mqtt.Client

	Sessions *SessionService
	Visits   *VisitService
	Track    *TrackService
	Forms    *FormService

	SessionsRepo repository.SessionsRepository
}

// NewEngineService connects to Postgres, Redis and (when configured)
// the MQTT broker, and builds the service graph.
func NewEngineService(cfg *config.Config, logger *zap.Logger) (*EngineService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redisx.NewRedisClient(&cfg.Redis)
	if err := redisx.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	clk, err := clock.NewSystemClock(cfg.Engine.Timezone)
	if err != nil {
		database.Close(db)
		redisx.Close(redisClient)
		return nil, fmt.Errorf("failed to load business timezone: %w", err)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			database.Close(db)
			redisx.Close(redisClient)
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
	}

	sessionsRepo := repository.NewPostgresSessionsRepository(db, logger)
	visitsRepo := repository.NewPostgresVisitsRepository(db, logger)
	gpsRepo := repository.NewPostgresGpsRepository(db, logger)
	pdvsRepo := repository.NewPostgresPdvsRepository(db)
	formsRepo := repository.NewPostgresFormsRepository(db, visitsRepo, logger)

	publisher := events.NewPublisher(redisClient, cfg.Engine.EventStream, logger)
	posCache := cache.NewLivePositionCache(redisClient,
		time.Duration(cfg.Engine.LivePositionTTL)*time.Second, logger)
	resolver := geo.NewResolver(cfg.Engine.DefaultGeofenceRadiusM)

	var roles RoleChecker
	if cfg.Directory.BaseURL != "" {
		roles = directory.NewClient(&cfg.Directory, logger)
	}

	return &EngineService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,

		Sessions: NewSessionService(sessionsRepo, clk, publisher, logger),
		Visits: NewVisitService(sessionsRepo, visitsRepo, pdvsRepo, resolver, clk,
			publisher, roles, cfg.Directory.RequiredRole, logger),
		Track: NewTrackService(gpsRepo, posCache, cfg.Engine.GpsBatchLimit, logger),
		Forms: NewFormService(formsRepo, clk, publisher, logger),

		SessionsRepo: sessionsRepo,
	}, nil
}

// MQTTClient returns the connected broker client, nil when no broker
// is configured.
func (s *EngineService) MQTTClient() *mqtt.Client {
	return s.mqttClient
}

// Start logs readiness. Connections are established in the
// constructor; nothing long-running lives inside the engine itself.
func (s *EngineService) Start(ctx context.Context) error {
	s.logger.Info("Field engine started",
		zap.String("timezone", s.config.Engine.Timezone),
		zap.Float64("default_geofence_radius_m", s.config.Engine.DefaultGeofenceRadiusM),
		zap.Int("gps_batch_limit", s.config.Engine.GpsBatchLimit),
		zap.Bool("mqtt_enabled", s.mqttClient != nil),
		zap.Bool("directory_enabled", s.config.Directory.BaseURL != ""))
	return nil
}

// Stop releases broker, cache and database connections.
func (s *EngineService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping field engine")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := redisx.Close(s.redisClient); err != nil {
		s.logger.Warn("Failed to close redis client", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
	}

	s.logger.Info("Field engine stopped")
	return nil
}
