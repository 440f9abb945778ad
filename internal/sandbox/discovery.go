package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/nat"
)

// debuggerTab is the subset of Chrome's /json/list response this package
// cares about.
type debuggerTab struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// discover waits for the container's inspector warm-up, then polls its
// published port's /json/list endpoint for the debuggee's CDP WebSocket
// URL — matching the original implementation's exact timing: a single
// warm-up sleep followed by up to DiscoveryRetries attempts spaced
// DiscoveryBackoff apart.
func (p *Provisioner) discover(ctx context.Context, containerID string) (string, error) {
	hostPort, err := p.hostPort(ctx, containerID)
	if err != nil {
		return "", err
	}

	select {
	case <-time.After(p.cfg.DiscoveryWarmup):
	case <-ctx.Done():
		return "", &ProvisionError{Stage: "discover", Err: ctx.Err()}
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.DiscoveryRetries; attempt++ {
		url, err := fetchFirstDebuggerURL(ctx, hostPort)
		if err == nil {
			return url, nil
		}
		lastErr = err
		select {
		case <-time.After(p.cfg.DiscoveryBackoff):
		case <-ctx.Done():
			return "", &ProvisionError{Stage: "discover", Err: ctx.Err()}
		}
	}
	return "", &ProvisionError{Stage: "discover", Err: fmt.Errorf("debugger endpoint never became reachable: %w", lastErr)}
}

func (p *Provisioner) hostPort(ctx context.Context, containerID string) (string, error) {
	inspect, err := p.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", &ProvisionError{Stage: "container-inspect", Err: err}
	}
	port := nat.Port(strconv.Itoa(p.cfg.ContainerPort) + "/tcp")
	bindings, ok := inspect.NetworkSettings.Ports[port]
	if !ok || len(bindings) == 0 {
		return "", &ProvisionError{Stage: "container-inspect", Err: fmt.Errorf("no host binding published for %s", port)}
	}
	return bindings[0].HostPort, nil
}

func fetchFirstDebuggerURL(ctx context.Context, hostPort string) (string, error) {
	reqURL := fmt.Sprintf("http://127.0.0.1:%s/json/list", hostPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, reqURL)
	}

	var tabs []debuggerTab
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		return "", err
	}
	if len(tabs) == 0 || tabs[0].WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no debugger tabs reported yet")
	}
	return tabs[0].WebSocketDebuggerURL, nil
}
