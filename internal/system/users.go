package system

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// UserManager manages the service account the application runs as.
type UserManager interface {
	EnsureGroup(ctx context.Context, name string) (bool, error)
	EnsureUser(ctx context.Context, name, group, home string) (bool, error)
}

// ExecUserManager manages accounts through the shadow utilities.
type ExecUserManager struct {
	runner CommandRunner
	log    *zap.SugaredLogger
}

func NewExecUserManager(runner CommandRunner) *ExecUserManager {
	return &ExecUserManager{
		runner: runner,
		log:    zap.S().Named("users"),
	}
}

func (m *ExecUserManager) EnsureGroup(ctx context.Context, name string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{Name: "getent", Args: []string{"group", name}})
	if err != nil {
		return false, err
	}
	if out.Success() {
		return false, nil
	}

	m.log.Infow("creating group", "group", name)
	out, err = m.runner.Run(ctx, Command{Name: "groupadd", Args: []string{"--system", name}})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("failed to create group %s: %s", name, out.Text())
	}
	return true, nil
}

func (m *ExecUserManager) EnsureUser(ctx context.Context, name, group, home string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{Name: "getent", Args: []string{"passwd", name}})
	if err != nil {
		return false, err
	}
	if out.Success() {
		return false, nil
	}

	m.log.Infow("creating user", "user", name, "group", group)
	out, err = m.runner.Run(ctx, Command{
		Name: "useradd",
		Args: []string{
			"--system",
			"--gid", group,
			"--home-dir", home,
			"--no-create-home",
			"--shell", "/usr/sbin/nologin",
			name,
		},
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("failed to create user %s: %s", name, out.Text())
	}
	return true, nil
}
