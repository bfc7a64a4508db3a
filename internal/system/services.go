package system

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ServiceManager drives the init system.
type ServiceManager interface {
	DaemonReload(ctx context.Context) error
	// EnsureEnabled reports true when the unit had to be enabled.
	EnsureEnabled(ctx context.Context, unit string) (bool, error)
	// EnsureStarted reports true when the unit had to be started.
	EnsureStarted(ctx context.Context, unit string) (bool, error)
	Restart(ctx context.Context, unit string) error
	Reload(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

// SystemdManager manages units through systemctl.
type SystemdManager struct {
	runner CommandRunner
	log    *zap.SugaredLogger
}

func NewSystemdManager(runner CommandRunner) *SystemdManager {
	return &SystemdManager{
		runner: runner,
		log:    zap.S().Named("systemd"),
	}
}

func (m *SystemdManager) DaemonReload(ctx context.Context) error {
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"daemon-reload"}})
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("systemctl daemon-reload failed: %s", out.Text())
	}
	return nil
}

func (m *SystemdManager) EnsureEnabled(ctx context.Context, unit string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"is-enabled", unit}})
	if err != nil {
		return false, err
	}
	if out.Success() && strings.TrimSpace(out.Stdout) == "enabled" {
		return false, nil
	}

	m.log.Infow("enabling unit", "unit", unit)
	out, err = m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"enable", unit}})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("failed to enable %s: %s", unit, out.Text())
	}
	return true, nil
}

func (m *SystemdManager) EnsureStarted(ctx context.Context, unit string) (bool, error) {
	active, err := m.IsActive(ctx, unit)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	m.log.Infow("starting unit", "unit", unit)
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"start", unit}})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("failed to start %s: %s", unit, out.Text())
	}
	return true, nil
}

func (m *SystemdManager) Restart(ctx context.Context, unit string) error {
	m.log.Infow("restarting unit", "unit", unit)
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"restart", unit}})
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("failed to restart %s: %s", unit, out.Text())
	}
	return nil
}

func (m *SystemdManager) Reload(ctx context.Context, unit string) error {
	m.log.Infow("reloading unit", "unit", unit)
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"reload", unit}})
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("failed to reload %s: %s", unit, out.Text())
	}
	return nil
}

func (m *SystemdManager) IsActive(ctx context.Context, unit string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"is-active", unit}})
	if err != nil {
		return false, err
	}
	// is-active exits non-zero for inactive units; that is a state, not an error
	return out.Success() && strings.TrimSpace(out.Stdout) == "active", nil
}
