package services

import (
	"context"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/system"
	"github.com/rayzilt/aipscan-deploy/internal/tasks"
	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

// Converger executes one convergence pass under a tag selection. An error
// means the pass could not start (bad configuration, unresolved versions); a
// report with Failed set means a task failed mid-run.
type Converger interface {
	Converge(ctx context.Context, selection sets.Set[string]) (*models.RunReport, error)
}

// DepsFactory builds the system collaborators for one run from the freshly
// loaded configuration. Migration and registration commands carry
// configuration-derived environment, so the collaborators are as per-run as
// the graph itself.
type DepsFactory func(cfg *config.Configuration) (tasks.Deps, error)

// ProductionDeps wires the exec-backed collaborators that mutate a real
// host.
func ProductionDeps(cfg *config.Configuration) (tasks.Deps, error) {
	env, err := tasks.RuntimeEnv(cfg)
	if err != nil {
		return tasks.Deps{}, err
	}
	runner := system.NewExecRunner()
	return tasks.Deps{
		Packages:   system.NewAptPackageManager(runner),
		Services:   system.NewSystemdManager(runner),
		Uv:         system.NewExecUvManager(runner),
		Files:      system.NewOSFileManager(),
		Users:      system.NewExecUserManager(runner),
		Migrations: system.NewFlaskMigrationRunner(runner, cfg.App.InstallDir, cfg.App.VenvDir, env),
		Storage:    system.NewFlaskStorageRegistrar(runner, cfg.App.InstallDir, cfg.App.VenvDir, env),
	}, nil
}

// EngineConverger is the production pipeline: reload the configuration from
// disk, resolve component versions, build a fresh task graph and execute it.
// Reloading per run keeps the file on disk authoritative for every pass.
type EngineConverger struct {
	configPath string
	depsFor    DepsFactory
	resolver   *versions.Resolver
}

func NewEngineConverger(configPath string, depsFor DepsFactory, resolver *versions.Resolver) *EngineConverger {
	return &EngineConverger{
		configPath: configPath,
		depsFor:    depsFor,
		resolver:   resolver,
	}
}

func (c *EngineConverger) Converge(ctx context.Context, selection sets.Set[string]) (*models.RunReport, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vers, err := c.resolver.Resolve(ctx, versions.Pins{
		AIPscan: cfg.Versions.AIPscan,
		Uv:      cfg.Versions.Uv,
		Python:  cfg.Versions.Python,
	})
	if err != nil {
		return nil, err
	}

	deps, err := c.depsFor(cfg)
	if err != nil {
		return nil, err
	}
	graph, err := tasks.Build(cfg, vers, deps)
	if err != nil {
		return nil, err
	}

	engine := tasks.NewEngine(cfg.SecretValues())
	return engine.Execute(ctx, graph, selection), nil
}
