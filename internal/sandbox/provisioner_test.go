package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestProvisionerAgainstLiveDocker exercises the real build/start/discover
// flow. It requires a reachable Docker daemon and is skipped otherwise —
// CI environments without one should not fail this suite.
func TestProvisionerAgainstLiveDocker(t *testing.T) {
	projectPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "package.json"), []byte(`{"name":"fixture-project"}`), 0o644))

	cfg := DefaultConfig()
	p, err := NewProvisioner(cfg, projectPath, nil)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := p.docker.Ping(ctx); err != nil {
		t.Skipf("docker daemon unreachable: %v", err)
	}

	debuggee, err := p.Provision(ctx, "console.log('hello from jstsdebug')\n", nil, nil)
	require.NoError(t, err)
	defer debuggee.Close(context.Background())

	require.NotEmpty(t, debuggee.ContainerID)
	require.Contains(t, debuggee.WebSocketURL, "ws://")
}

// TestNewProvisionerRejectsProjectPathWithoutPackageJSON confirms the
// startup validation fails fast — matching the original implementation's
// ProjectNotFoundError/missing-package-name behavior — instead of
// deferring the failure to the first create_session call.
func TestNewProvisionerRejectsProjectPathWithoutPackageJSON(t *testing.T) {
	_, err := NewProvisioner(DefaultConfig(), t.TempDir(), nil)
	require.Error(t, err)
}

func TestNewProvisionerRejectsNonexistentProjectPath(t *testing.T) {
	_, err := NewProvisioner(DefaultConfig(), "/no/such/project/path", nil)
	require.Error(t, err)
}
