package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

type Config struct {
	Port        string     `validate:"required,numeric"`
	Environment string     `validate:"required,oneof=development staging production test"`
	LogLevel    slog.Level `validate:"-"`

	DatabaseURL string `validate:"required"`
	DB          DBConfig

	RedisURL string

	Events  EventsConfig
	Casdoor CasdoorConfig

	OTelEnabled bool

	// Empty allows every origin
	CORSAllowedOrigins []string

	Learning LearningConfig
}

type DBConfig struct {
	MaxOpenConns    int           `validate:"min=1"`
	MaxIdleConns    int           `validate:"min=0"`
	ConnMaxLifetime time.Duration `validate:"min=0"`
}

type EventsConfig struct {
	// Empty brokers publish in-process only
	KafkaBrokers []string
	TopicPrefix  string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type LearningConfig struct {
	AdvancedThreshold int           `validate:"min=1,max=100"`
	SessionCacheTTL   time.Duration `validate:"min=0"`
	// Refresh the tier table in the background; zero disables it
	TierRefreshInterval time.Duration `validate:"min=0"`
}

// LoadConfig reads the environment, loading .env first when present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DB: DBConfig{
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		RedisURL: getEnv("REDIS_URL", ""),
		Events: EventsConfig{
			KafkaBrokers: getEnvList("KAFKA_BROKERS"),
			TopicPrefix:  getEnv("EVENTS_TOPIC_PREFIX", "learning-path"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         loadCert(getEnv("CASDOOR_CERT", ""), getEnv("CASDOOR_CERT_FILE", "")),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		Learning: LearningConfig{
			AdvancedThreshold:   getEnvInt("ADVANCED_THRESHOLD", 90),
			SessionCacheTTL:     getEnvDuration("SESSION_CACHE_TTL", 30*time.Second),
			TierRefreshInterval: getEnvDuration("TIER_REFRESH_INTERVAL", 5*time.Minute),
		},
	}

	if err := validator.New().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadCert prefers the inline certificate, then the file
func loadCert(inline, path string) string {
	if inline != "" {
		return strings.ReplaceAll(inline, `\n`, "\n")
	}
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
