package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/learning")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ADVANCED_THRESHOLD", "85")
	t.Setenv("SESSION_CACHE_TTL", "45s")
	t.Setenv("CASDOOR_CERT", `-----BEGIN-----\nabc\n-----END-----`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.Environment != "development" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Learning.AdvancedThreshold != 85 || cfg.Learning.SessionCacheTTL != 45*time.Second {
		t.Errorf("Learning = %+v", cfg.Learning)
	}
	if cfg.Casdoor.Cert != "-----BEGIN-----\nabc\n-----END-----" {
		t.Errorf("Cert = %q", cfg.Casdoor.Cert)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"bad environment", map[string]string{"DATABASE_URL": "x", "ENVIRONMENT": "moon"}},
		{"threshold out of range", map[string]string{"DATABASE_URL": "x", "ADVANCED_THRESHOLD": "150"}},
		{"non numeric port", map[string]string{"DATABASE_URL": "x", "PORT": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
