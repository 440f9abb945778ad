package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"jstsdebug/internal/cdp"
)

// Config holds the process-wide application configuration, loaded from
// the environment (optionally via a .env file) at startup. Sandbox
// provisioning knobs (Docker host, workspace root, image) live in
// sandbox.Config instead, since sandbox.DefaultConfig already reads them.
type Config struct {
	Port           string
	SessionTimeout time.Duration
	JWTSecret      string
	JWTSecretOld   string
	Environment    string
	MetricsPath    string
}

// Load reads .env (if present, checking the working directory and its
// parent so `go run ./cmd/jstsdebug` works from either the repo root or
// cmd/jstsdebug itself) and builds a Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	timeout := cdp.DefaultTimeout
	if raw := os.Getenv("JSTSDEBUG_SESSION_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("JSTSDEBUG_SESSION_TIMEOUT_SECONDS: %w", err)
		}
		timeout = time.Duration(seconds * float64(time.Second))
	}

	jwtSecret, err := ValidateJWTSecret()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           envOr("JSTSDEBUG_PORT", "8080"),
		SessionTimeout: timeout,
		JWTSecret:      jwtSecret,
		JWTSecretOld:   os.Getenv("JSTSDEBUG_JWT_SECRET_OLD"),
		Environment:    GetEnvironment(),
		MetricsPath:    envOr("JSTSDEBUG_METRICS_PATH", "/metrics"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
