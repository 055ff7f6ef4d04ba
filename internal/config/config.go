package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT broker settings for the GPS ingest transport
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // subscription pattern, e.g. "agents/+/gps"
	QoS      byte
}

// DirectoryConfig agent-directory collaborator (external HTTP service).
// The role check is skipped entirely when BaseURL is empty.
type DirectoryConfig struct {
	BaseURL        string
	TimeoutSeconds int
	RequiredRole   string
}

// EngineConfig field-engine policy knobs
type EngineConfig struct {
	// Fallback geofence radius (meters) applied when a PDV has no
	// explicitly configured active geofence.
	DefaultGeofenceRadiusM float64

	// Hard ceiling on a single GPS batch insert.
	GpsBatchLimit int

	// Business timezone for calendar-day comparisons ("today" checks).
	Timezone string

	// TTL (seconds) of the live agent position cache entry.
	LivePositionTTL int

	// Redis Stream that receives visit/session lifecycle events.
	EventStream string
}

// Config rutero-field service configuration
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Directory DirectoryConfig
	Engine    EngineConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "ruterofield")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "rutero-field-1")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_GPS_TOPIC", "agents/+/gps")
	cfg.MQTT.QoS = 1

	cfg.Directory.BaseURL = getEnv("DIRECTORY_BASE_URL", "")
	cfg.Directory.TimeoutSeconds = getEnvInt("DIRECTORY_TIMEOUT", 10)
	cfg.Directory.RequiredRole = getEnv("DIRECTORY_REQUIRED_ROLE", "field_agent")

	cfg.Engine.DefaultGeofenceRadiusM = getEnvFloat("GEOFENCE_DEFAULT_RADIUS_M", 150)
	cfg.Engine.GpsBatchLimit = getEnvInt("GPS_BATCH_LIMIT", 100)
	cfg.Engine.Timezone = getEnv("BUSINESS_TIMEZONE", "America/Lima")
	cfg.Engine.LivePositionTTL = getEnvInt("LIVE_POSITION_TTL", 300)
	cfg.Engine.EventStream = getEnv("FIELD_EVENT_STREAM", "field:events")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Engine.GpsBatchLimit <= 0 {
		return nil, fmt.Errorf("invalid GPS_BATCH_LIMIT: must be positive")
	}
	if cfg.Engine.DefaultGeofenceRadiusM <= 0 {
		return nil, fmt.Errorf("invalid GEOFENCE_DEFAULT_RADIUS_M: must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
