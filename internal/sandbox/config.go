// Package sandbox implements the sandbox provisioner (spec component E):
// it builds a per-project Docker image carrying the user's entry script,
// starts a container with the Node inspector listening, and discovers the
// resulting CDP WebSocket URL. It is a boundary interface — spec.md treats
// image construction beyond this contract as out of scope.
package sandbox

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config configures a Provisioner. DefaultConfig fills it from JSTSDEBUG_*
// environment variables, falling back to built-in defaults.
type Config struct {
	DockerHost       string
	WorkspaceRoot    string
	Image            string
	ContainerPort    int
	NetworkEnabled   bool
	PullImages       bool
	DiscoveryWarmup  time.Duration
	DiscoveryRetries int
	DiscoveryBackoff time.Duration
	BuildTimeout     time.Duration
}

// DefaultConfig returns a production-biased configuration, reading
// JSTSDEBUG_* overrides from the environment.
func DefaultConfig() Config {
	workspaceRoot := envOr("JSTSDEBUG_WORKSPACE_ROOT", filepath.Join(os.TempDir(), "jstsdebug-workspace"))
	return Config{
		DockerHost:       envOr("JSTSDEBUG_DOCKER_HOST", "unix:///var/run/docker.sock"),
		WorkspaceRoot:    workspaceRoot,
		Image:            envOr("JSTSDEBUG_SANDBOX_IMAGE", "node:20-slim"),
		ContainerPort:    envIntOr("JSTSDEBUG_INSPECTOR_PORT", 9229),
		NetworkEnabled:   envBoolOr("JSTSDEBUG_SANDBOX_NETWORK", false),
		PullImages:       envBoolOr("JSTSDEBUG_SANDBOX_PULL", false),
		DiscoveryWarmup:  1500 * time.Millisecond,
		DiscoveryRetries: 5,
		DiscoveryBackoff: time.Second,
		BuildTimeout:     2 * time.Minute,
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
