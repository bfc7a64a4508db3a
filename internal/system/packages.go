package system

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PackageManager installs OS packages.
type PackageManager interface {
	// EnsurePackages makes sure every named package is installed and reports
	// whether anything had to be installed.
	EnsurePackages(ctx context.Context, names []string) (bool, error)
}

// AptPackageManager manages packages through apt. The package index is
// refreshed only when something actually needs installing, so a converged
// host never runs apt-get at all.
type AptPackageManager struct {
	runner CommandRunner
	log    *zap.SugaredLogger
}

func NewAptPackageManager(runner CommandRunner) *AptPackageManager {
	return &AptPackageManager{
		runner: runner,
		log:    zap.S().Named("packages"),
	}
}

func (m *AptPackageManager) EnsurePackages(ctx context.Context, names []string) (bool, error) {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		installed, err := m.installed(ctx, name)
		if err != nil {
			return false, err
		}
		if !installed {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	m.log.Infow("installing packages", "packages", missing)

	out, err := m.runner.Run(ctx, Command{
		Name: "apt-get",
		Args: []string{"update"},
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("apt-get update failed: %s", out.Text())
	}

	args := append([]string{"install", "-y", "--no-install-recommends"}, missing...)
	out, err = m.runner.Run(ctx, Command{
		Name: "apt-get",
		Args: args,
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("apt-get install failed: %s", out.Text())
	}
	return true, nil
}

func (m *AptPackageManager) installed(ctx context.Context, name string) (bool, error) {
	out, err := m.runner.Run(ctx, Command{
		Name: "dpkg-query",
		Args: []string{"-W", "-f", "${Status}", name},
	})
	if err != nil {
		return false, err
	}
	return out.Success() && strings.Contains(out.Stdout, "install ok installed"), nil
}
