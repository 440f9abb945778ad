package sandbox

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/nat"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProvisionError wraps a failure at any stage of bringing up a debuggee:
// image build, container start, or debugger discovery.
type ProvisionError struct {
	Stage string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("sandbox: %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner is the sandbox provisioner (spec component E): bound once at
// startup to the host-side project path named on the CLI (spec.md §6), it
// produces running, debugger-attached containers for that project's entry
// scripts and the WebSocket URL of each one's CDP endpoint.
type Provisioner struct {
	cfg         Config
	projectPath string
	packageName string
	docker      *client.Client
	log         *zap.Logger
}

// NewProvisioner constructs a Provisioner backed by the Docker daemon
// named in cfg.DockerHost. The client negotiates the API version instead
// of pinning one, so this works against whatever daemon version is present.
//
// projectPath must name an existing directory containing a package.json
// with a "name" field — the same requirement the original implementation's
// create_session enforces (ProjectNotFoundError) and the same lookup
// get_package_name performs, since every debuggee mounts the project under
// /app/<package-name>/.
func NewProvisioner(cfg Config, projectPath string, log *zap.Logger) (*Provisioner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	info, err := os.Stat(projectPath)
	if err != nil || !info.IsDir() {
		return nil, &ProvisionError{Stage: "project-path", Err: fmt.Errorf("project path %q does not exist or is not a directory", projectPath)}
	}
	packageName, err := readPackageName(projectPath)
	if err != nil {
		return nil, &ProvisionError{Stage: "package-name", Err: err}
	}

	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(cfg.DockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, &ProvisionError{Stage: "docker-client", Err: err}
	}
	return &Provisioner{cfg: cfg, projectPath: projectPath, packageName: packageName, docker: cli, log: log}, nil
}

// PackageName returns the project's package.json name, the directory name
// every debuggee mounts the project under (/app/<package-name>/).
func (p *Provisioner) PackageName() string {
	return p.packageName
}

// Debuggee is a running, debugger-attached container and the CDP endpoint
// the session engine should dial.
type Debuggee struct {
	ContainerID  string
	WebSocketURL string

	docker *client.Client
	log    *zap.Logger
}

// Close stops and removes the container. It tolerates the container
// already being gone (it may have exited on its own).
func (d *Debuggee) Close(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	timeout := 5
	_ = d.docker.ContainerStop(stopCtx, d.ContainerID, container.StopOptions{Timeout: &timeout})
	if err := d.docker.ContainerRemove(context.Background(), d.ContainerID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		d.log.Warn("sandbox: container remove failed", zap.String("container_id", d.ContainerID), zap.Error(err))
		return err
	}
	return nil
}

// Provision builds (or reuses) the session's image, starts a container
// running tsx/node with the inspector waiting, and discovers the
// resulting CDP WebSocket URL. The project path is fixed for the lifetime
// of the Provisioner (bound once at startup); only the entry code and
// per-session scaffolding overrides vary per call.
func (p *Provisioner) Provision(ctx context.Context, code string, packageJSONOverride, tsconfigOverride map[string]any) (*Debuggee, error) {
	tag := imageTag(p.projectPath, code)

	if err := p.pullImageIfConfigured(ctx); err != nil {
		return nil, err
	}

	buildCtx, cancel := context.WithTimeout(ctx, p.cfg.BuildTimeout)
	defer cancel()
	if err := p.ensureImage(buildCtx, tag, code, packageJSONOverride, tsconfigOverride); err != nil {
		return nil, err
	}

	containerID, err := p.startContainer(ctx, tag)
	if err != nil {
		return nil, err
	}

	wsURL, err := p.discover(ctx, containerID)
	if err != nil {
		_ = p.docker.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
		return nil, err
	}

	return &Debuggee{
		ContainerID:  containerID,
		WebSocketURL: wsURL,
		docker:       p.docker,
		log:          p.log,
	}, nil
}

func (p *Provisioner) startContainer(ctx context.Context, tag string) (string, error) {
	inspectorPort := strconv.Itoa(p.cfg.ContainerPort)
	exposedPort := nat.Port(inspectorPort + "/tcp")

	command := []string{
		"npx", "tsx",
		fmt.Sprintf("--inspect-wait=0.0.0.0:%s", inspectorPort),
		"--enable-source-maps",
		"--preserve-symlinks",
		entrypointPath,
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			exposedPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
		NetworkMode: "bridge",
		AutoRemove:  false,
	}
	if !p.cfg.NetworkEnabled {
		hostCfg.NetworkMode = "none"
	}

	created, err := p.docker.ContainerCreate(ctx, &container.Config{
		Image:        tag,
		Cmd:          command,
		WorkingDir:   "/app",
		ExposedPorts: nat.PortSet{exposedPort: struct{}{}},
		Labels:       map[string]string{"app": "jstsdebug"},
	}, hostCfg, nil, nil, "jstsdebug-"+uuid.NewString())
	if err != nil {
		return "", &ProvisionError{Stage: "container-create", Err: err}
	}

	if err := p.docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = p.docker.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
		return "", &ProvisionError{Stage: "container-start", Err: err}
	}

	return created.ID, nil
}
