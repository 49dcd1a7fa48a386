package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	marketplace "github.com/huykn/course-marketplace"
	"github.com/huykn/course-marketplace/ratelimit"
)

// serverConfig is the complete configuration of the server binary.
type serverConfig struct {
	Core            marketplace.Config
	Port            string
	FrontendHost    string
	Seed            int
	ShutdownTimeout time.Duration
	JSONLogs        bool
}

// fromEnv loads configuration from environment variables.
func fromEnv() (serverConfig, error) {
	cfg := serverConfig{
		Core:            marketplace.DefaultConfig(),
		Port:            "4000",
		FrontendHost:    "http://localhost:3000",
		Seed:            5,
		ShutdownTimeout: 10 * time.Second,
		JSONLogs:        true,
	}

	if hostname, err := os.Hostname(); err == nil {
		cfg.Core.PodID = hostname
	}
	if podID := os.Getenv("POD_ID"); podID != "" {
		cfg.Core.PodID = podID
	}

	// Redis configuration
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Core.RedisAddr = addr
	}
	cfg.Core.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return cfg, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Core.RedisDB = n
	}

	cfg.Core.TestMode = os.Getenv("APP_ENV") == "test"
	cfg.Core.DebugMode = os.Getenv("DEBUG") == "true"

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if host := os.Getenv("FRONTEND_HOST"); host != "" {
		cfg.FrontendHost = host
	}

	// Admission control
	if limit := os.Getenv("RATE_LIMIT_MAX"); limit != "" {
		n, err := strconv.ParseInt(limit, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("RATE_LIMIT_MAX: %w", err)
		}
		cfg.Core.RateLimit.Max = n
	}
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return cfg, fmt.Errorf("RATE_LIMIT_WINDOW: %w", err)
		}
		cfg.Core.RateLimit.Window = d
	}
	if policy := os.Getenv("RATE_LIMIT_POLICY"); policy != "" {
		p, err := ratelimit.ParsePolicy(policy)
		if err != nil {
			return cfg, err
		}
		cfg.Core.RateLimit.Policy = p
	}
	cfg.Core.RateLimit.TrustForwardedFor = os.Getenv("TRUST_PROXY") == "true"

	// Sessions
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return cfg, fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.Core.Session.TTL = d
	}
	cfg.Core.Session.Secure = os.Getenv("APP_ENV") == "production"

	return cfg, nil
}

func newFlagSet(name string, output io.Writer, cfg *serverConfig) *flag.FlagSet {
	if output == nil {
		output = io.Discard
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "http port")
	fs.StringVar(&cfg.Core.RedisAddr, "redis", cfg.Core.RedisAddr, "redis address")
	fs.StringVar(&cfg.Core.PodID, "pod", cfg.Core.PodID, "pod id")
	fs.StringVar(&cfg.FrontendHost, "frontend", cfg.FrontendHost, "allowed CORS origin")
	fs.IntVar(&cfg.Seed, "seed", cfg.Seed, "number of demo instructors to seed")
	fs.BoolVar(&cfg.Core.TestMode, "test", cfg.Core.TestMode, "flush redis at startup")
	fs.BoolVar(&cfg.Core.DebugMode, "debug", cfg.Core.DebugMode, "debug logging")
	fs.BoolVar(&cfg.JSONLogs, "json", cfg.JSONLogs, "json log output")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown_timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	return fs
}

// loadConfig reads the environment, then applies command line flags.
func loadConfig(args []string, output io.Writer) (serverConfig, error) {
	cfg, err := fromEnv()
	if err != nil {
		return cfg, err
	}
	fs := newFlagSet("server", output, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := cfg.Core.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
