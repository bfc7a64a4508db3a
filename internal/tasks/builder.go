package tasks

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/render"
	"github.com/rayzilt/aipscan-deploy/internal/system"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

// Deps bundles the system collaborators a graph drives.
type Deps struct {
	Packages   system.PackageManager
	Services   system.ServiceManager
	Uv         system.UvManager
	Files      system.FileManager
	Users      system.UserManager
	Migrations system.MigrationRunner
	Storage    system.StorageRegistrar
}

// pending is the per-run record of service disruption owed to artifact
// changes. Tasks share it through their closures, which is why a Graph is
// built fresh for every run and never executed twice.
type pending struct {
	daemonReload bool
	restart      sets.Set[string]
	reload       sets.Set[string]
}

// Build assembles the task graph for one convergence run against the given
// configuration and resolved versions.
func Build(cfg *config.Configuration, vers versions.Set, deps Deps) (*Graph, error) {
	renderer := render.NewRenderer(cfg)
	envFile := renderer.EnvFile()
	storageFile, err := renderer.StorageSources()
	if err != nil {
		return nil, err
	}
	webUnit := renderer.WebUnit()
	workerUnit := renderer.WorkerUnit()

	state := &pending{
		restart: sets.New[string](),
		reload:  sets.New[string](),
	}

	place := func(ctx context.Context, artifacts ...models.Artifact) (bool, error) {
		changed := false
		for _, a := range artifacts {
			c, err := deps.Files.EnsureFile(ctx, a)
			if err != nil {
				return changed, err
			}
			if !c {
				continue
			}
			changed = true
			switch a.Class {
			case models.ArtifactClassRestart:
				state.restart.Insert(a.Services...)
			case models.ArtifactClassReload:
				state.reload.Insert(a.Services...)
			}
		}
		return changed, nil
	}

	tasks := []Task{
		{
			Name: "uv",
			Tags: tagSet(models.TagUv),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Uv.EnsureInstalled(ctx, vers.Uv)
			},
		},
		{
			Name: "base-packages",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Packages.EnsurePackages(ctx, basePackages(cfg))
			},
		},
		{
			Name: "service-account",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				groupChanged, err := deps.Users.EnsureGroup(ctx, cfg.App.Group)
				if err != nil {
					return groupChanged, err
				}
				userChanged, err := deps.Users.EnsureUser(ctx, cfg.App.User, cfg.App.Group, cfg.App.DataDir)
				return groupChanged || userChanged, err
			},
		},
		{
			Name: "directories",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				dirs := []struct {
					path string
					mode fs.FileMode
				}{
					{filepath.Dir(render.EnvFilePath), 0o750},
					{cfg.App.InstallDir, 0o755},
					{cfg.App.DataDir, 0o750},
					{cfg.App.LogDir, 0o750},
				}
				changed := false
				for _, d := range dirs {
					c, err := deps.Files.EnsureDir(ctx, d.path, d.mode, cfg.App.User, cfg.App.Group)
					if err != nil {
						return changed, err
					}
					changed = changed || c
				}
				return changed, nil
			},
		},
		{
			Name: "python-runtime",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Uv.EnsurePython(ctx, vers.Python)
			},
		},
		{
			Name: "virtualenv",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Uv.EnsureVenv(ctx, cfg.App.VenvDir, vers.Python)
			},
		},
		{
			Name: "application",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Uv.EnsureApp(ctx, cfg.App.VenvDir, vers.AIPscan)
			},
		},
		{
			Name: "configuration-files",
			Tags: tagSet(models.TagInstall),
			Run: func(ctx context.Context) (bool, error) {
				return place(ctx, envFile, storageFile)
			},
		},
		{
			Name: "database-migrations",
			Tags: tagSet(models.TagDatabase),
			Run: func(ctx context.Context) (bool, error) {
				changed, err := deps.Migrations.Upgrade(ctx)
				if err != nil {
					return changed, srvErrors.NewMigrationError(err)
				}
				return changed, nil
			},
		},
		{
			Name: "storage-sources",
			Tags: tagSet(models.TagDatabase),
			Run: func(ctx context.Context) (bool, error) {
				return deps.Storage.Sync(ctx, render.StorageSourcesPath)
			},
		},
		{
			Name: "service-units",
			Tags: tagSet(models.TagService),
			Run: func(ctx context.Context) (bool, error) {
				changed, err := place(ctx, webUnit, workerUnit)
				if err != nil {
					return changed, err
				}
				if changed {
					state.daemonReload = true
				}
				return changed, nil
			},
		},
		{
			Name: "application-services",
			Tags: tagSet(models.TagService),
			Run: func(ctx context.Context) (bool, error) {
				changed := false
				if state.daemonReload {
					if err := deps.Services.DaemonReload(ctx); err != nil {
						return changed, err
					}
				}
				for _, unit := range []string{render.WebService, render.WorkerService} {
					enabled, err := deps.Services.EnsureEnabled(ctx, unit)
					if err != nil {
						return changed, err
					}
					started, err := deps.Services.EnsureStarted(ctx, unit)
					if err != nil {
						return changed, err
					}
					changed = changed || enabled || started
					// a freshly started unit already runs the new configuration
					if !started && state.restart.Has(unit) {
						if err := deps.Services.Restart(ctx, unit); err != nil {
							return changed, err
						}
						changed = true
					}
				}
				return changed, nil
			},
		},
	}

	if cfg.Nginx.Enabled {
		vhost := renderer.NginxVhost()
		tasks = append(tasks, Task{
			Name: "reverse-proxy",
			Tags: tagSet(models.TagService),
			Run: func(ctx context.Context) (bool, error) {
				changed, err := place(ctx, vhost)
				if err != nil {
					return changed, err
				}
				enabled, err := deps.Services.EnsureEnabled(ctx, render.NginxService)
				if err != nil {
					return changed, err
				}
				started, err := deps.Services.EnsureStarted(ctx, render.NginxService)
				if err != nil {
					return changed, err
				}
				changed = changed || enabled || started
				if !started && state.reload.Has(render.NginxService) {
					if err := deps.Services.Reload(ctx, render.NginxService); err != nil {
						return changed, err
					}
					changed = true
				}
				return changed, nil
			},
		})
	}

	return NewGraph(tasks...), nil
}

// RuntimeEnv returns the application environment a run passes to migration
// and registration commands, derived from the rendered environment file so
// both always agree.
func RuntimeEnv(cfg *config.Configuration) ([]string, error) {
	artifact := render.NewRenderer(cfg).EnvFile()
	vars, err := godotenv.Unmarshal(string(artifact.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered environment: %w", err)
	}

	env := make([]string, 0, len(vars))
	for key, value := range vars {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(env)
	return env, nil
}

func basePackages(cfg *config.Configuration) []string {
	names := []string{"ca-certificates"}
	if cfg.Nginx.Enabled {
		names = append(names, "nginx")
	}
	return names
}

func tagSet(tags ...models.TaskTag) sets.Set[string] {
	s := sets.New[string]()
	for _, t := range tags {
		s.Insert(string(t))
	}
	return s
}
