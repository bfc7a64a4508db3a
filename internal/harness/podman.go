package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/containers/podman/v5/pkg/api/handlers"
	"github.com/containers/podman/v5/pkg/bindings"
	"github.com/containers/podman/v5/pkg/bindings/containers"
	"github.com/containers/podman/v5/pkg/bindings/images"
	"github.com/containers/podman/v5/pkg/specgen"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	nettypes "go.podman.io/common/libnetwork/types"
	"go.uber.org/zap"
)

// DefaultPodmanSocket is where a rootful Podman service listens.
const DefaultPodmanSocket = "unix:///run/podman/podman.sock"

const (
	// distMountPath is where the artifact directory appears inside every
	// environment. The runner execs the deploy binary from here.
	distMountPath = "/opt/aipscan-deploy-dist"
	binaryPath    = distMountPath + "/aipscan-deploy"

	// configMountPath is where the role configuration file appears inside
	// every environment.
	configMountPath = "/etc/aipscan-deploy/harness.yaml"
)

// NewPodmanFactory connects to the Podman service at socket and returns a
// factory producing container environments for the scenario. All
// environments share the one connection.
func NewPodmanFactory(ctx context.Context, socket string, sc *Scenario) (EnvFactory, error) {
	conn, err := bindings.NewConnection(ctx, socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to podman at %s: %w", socket, err)
	}

	artifact, err := filepath.Abs(sc.Artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact path: %w", err)
	}
	config, err := filepath.Abs(sc.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return func(p Platform) (Env, error) {
		return &PodmanEnv{
			conn:     conn,
			name:     fmt.Sprintf("aipscan-deploy-%s-%s", sc.Name, p.ID),
			platform: p,
			artifact: artifact,
			config:   config,
			log:      zap.S().Named("harness").With("platform", p.ID),
		}, nil
	}, nil
}

// PodmanEnv provisions one platform as a systemd container over the Podman
// REST API. The artifact directory and the role configuration are bind
// mounted read-only at fixed paths, so nothing has to be copied into the
// container before the deploy binary can run.
//
// The bindings connection carries its own context, which is why the
// per-call context is not consulted here.
type PodmanEnv struct {
	conn     context.Context
	name     string
	platform Platform
	artifact string
	config   string
	log      *zap.SugaredLogger
}

// Create pulls the platform image and starts the container. An environment
// left behind by a previous keep-env run is reused as is.
func (e *PodmanEnv) Create(_ context.Context) error {
	exists, err := containers.Exists(e.conn, e.name, nil)
	if err != nil {
		return fmt.Errorf("failed to check container %s: %w", e.name, err)
	}
	if exists {
		e.log.Infow("reusing existing container", "container", e.name)
		return nil
	}

	e.log.Infow("pulling platform image", "image", e.platform.Image)
	if _, err := images.Pull(e.conn, e.platform.Image, nil); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", e.platform.Image, err)
	}

	spec := specgen.NewSpecGenerator(e.platform.Image, false)
	spec.Name = e.name
	spec.Systemd = "always"
	spec.Labels = map[string]string{"managed-by": "aipscan-deploy-harness"}
	if e.platform.Privileged {
		privileged := true
		spec.Privileged = &privileged
	}
	if len(e.platform.Command) > 0 {
		spec.Command = e.platform.Command
	}
	spec.Mounts = []specs.Mount{
		{
			Destination: distMountPath,
			Source:      e.artifact,
			Type:        "bind",
			Options:     []string{"ro"},
		},
		{
			Destination: configMountPath,
			Source:      e.config,
			Type:        "bind",
			Options:     []string{"ro"},
		},
	}
	if e.platform.HostPort > 0 {
		spec.PortMappings = []nettypes.PortMapping{
			{
				HostPort:      uint16(e.platform.HostPort),
				ContainerPort: uint16(e.platform.ContainerPort),
			},
		}
	}

	if _, err := containers.CreateWithSpec(e.conn, spec, nil); err != nil {
		return fmt.Errorf("failed to create container %s: %w", e.name, err)
	}
	if err := containers.Start(e.conn, e.name, nil); err != nil {
		return fmt.Errorf("failed to start container %s: %w", e.name, err)
	}

	e.log.Infow("container started", "container", e.name, "image", e.platform.Image)
	return nil
}

// Exec runs a command inside the container and captures its output. A
// non-zero exit code is reported through the result, not as an error.
func (e *PodmanEnv) Exec(_ context.Context, cmd []string) (ExecResult, error) {
	cfg := new(handlers.ExecCreateConfig)
	cfg.Cmd = cmd
	cfg.AttachStdout = true
	cfg.AttachStderr = true

	sessionID, err := containers.ExecCreate(e.conn, e.name, cfg)
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to create exec session: %w", err)
	}

	var stdout, stderr bytes.Buffer
	opts := new(containers.ExecStartAndAttachOptions).
		WithAttachOutput(true).
		WithAttachError(true).
		WithOutputStream(nopWriteCloser{&stdout}).
		WithErrorStream(nopWriteCloser{&stderr})
	if err := containers.ExecStartAndAttach(e.conn, sessionID, opts); err != nil {
		return ExecResult{}, fmt.Errorf("failed to run %v: %w", cmd, err)
	}

	inspect, err := containers.ExecInspect(e.conn, sessionID, nil)
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to inspect exec session: %w", err)
	}

	return ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// Endpoint returns the base URL of the published service port.
func (e *PodmanEnv) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", e.platform.HostPort)
}

// Destroy stops and removes the container together with its volumes. A
// container that is already gone is not an error.
func (e *PodmanEnv) Destroy(_ context.Context) error {
	exists, err := containers.Exists(e.conn, e.name, nil)
	if err != nil {
		return fmt.Errorf("failed to check container %s: %w", e.name, err)
	}
	if !exists {
		return nil
	}

	stopOpts := new(containers.StopOptions).WithTimeout(10)
	if err := containers.Stop(e.conn, e.name, stopOpts); err != nil {
		e.log.Warnw("failed to stop container, removing by force", "container", e.name, "error", err)
	}

	rmOpts := new(containers.RemoveOptions).WithForce(true).WithVolumes(true)
	if _, err := containers.Remove(e.conn, e.name, rmOpts); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", e.name, err)
	}

	e.log.Infow("container removed", "container", e.name)
	return nil
}

// nopWriteCloser adapts a plain buffer to the WriteCloser the attach
// options expect.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
