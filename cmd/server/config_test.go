package main

import (
	"errors"
	"testing"
	"time"

	marketplace "github.com/huykn/course-marketplace"
	"github.com/huykn/course-marketplace/ratelimit"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("POD_ID", "pod-7")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "8081")
	t.Setenv("FRONTEND_HOST", "https://example.com")
	t.Setenv("RATE_LIMIT_MAX", "50")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("RATE_LIMIT_POLICY", "fail-local")
	t.Setenv("SESSION_TTL", "24h")

	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}
	if cfg.Core.PodID != "pod-7" || cfg.Core.RedisAddr != "redis:6380" || cfg.Core.RedisDB != 2 {
		t.Fatalf("Unexpected redis config %+v", cfg.Core)
	}
	if !cfg.Core.TestMode || cfg.Port != "8081" || cfg.FrontendHost != "https://example.com" {
		t.Fatalf("Unexpected server config %+v", cfg)
	}
	if cfg.Core.RateLimit.Max != 50 || cfg.Core.RateLimit.Window != time.Minute || cfg.Core.RateLimit.Policy != ratelimit.FailLocal {
		t.Fatalf("Unexpected rate limit config %+v", cfg.Core.RateLimit)
	}
	if cfg.Core.Session.TTL != 24*time.Hour {
		t.Fatalf("Expected session TTL 24h, got %v", cfg.Core.Session.TTL)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct{ key, value string }{
		{"REDIS_DB", "one"},
		{"RATE_LIMIT_MAX", "many"},
		{"RATE_LIMIT_WINDOW", "soon"},
		{"RATE_LIMIT_POLICY", "maybe"},
		{"SESSION_TTL", "forever"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := fromEnv(); err == nil {
				t.Fatalf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("PORT", "8081")

	cfg, err := loadConfig([]string{"-port", "9000", "-redis", "cache:6379", "-pod", "flag-pod", "-seed", "3"}, nil)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Port != "9000" || cfg.Core.RedisAddr != "cache:6379" || cfg.Core.PodID != "flag-pod" || cfg.Seed != 3 {
		t.Fatalf("Flags should override the environment, got %+v", cfg)
	}

	_, err = loadConfig([]string{"-pod", ""}, nil)
	if !errors.Is(err, marketplace.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}
