package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// registerScript upserts Storage Service rows from the rendered
// registration file. It is static so secrets only travel through the file,
// never through arguments or the execution trace. It prints "changed" or
// "unchanged" as its last line.
const registerScript = `
import json
import sys

from AIPscan import create_app, db
from AIPscan.models import StorageService

app = create_app()
with app.app_context():
    with open(sys.argv[1]) as handle:
        desired = json.load(handle)

    changed = False
    for entry in desired:
        existing = StorageService.query.filter_by(name=entry["name"]).first()
        if existing is None:
            db.session.add(StorageService(
                name=entry["name"],
                url=entry["url"],
                user_name=entry["username"],
                api_key=entry["api_key"],
                download_limit=20,
                download_offset=0,
                default=StorageService.query.count() == 0,
            ))
            changed = True
        elif (existing.url, existing.user_name, existing.api_key) != (
            entry["url"], entry["username"], entry["api_key"]
        ):
            existing.url = entry["url"]
            existing.user_name = entry["username"]
            existing.api_key = entry["api_key"]
            changed = True
    if changed:
        db.session.commit()

print("changed" if changed else "unchanged")
`

// StorageRegistrar reconciles the Storage Service registrations in the
// application database with the rendered registration file.
type StorageRegistrar interface {
	Sync(ctx context.Context, sourcesPath string) (bool, error)
}

// FlaskStorageRegistrar upserts registrations through the application ORM,
// using the virtualenv Python.
type FlaskStorageRegistrar struct {
	runner     CommandRunner
	installDir string
	pythonPath string
	env        []string
	log        *zap.SugaredLogger
}

func NewFlaskStorageRegistrar(runner CommandRunner, installDir, venvDir string, env []string) *FlaskStorageRegistrar {
	return &FlaskStorageRegistrar{
		runner:     runner,
		installDir: installDir,
		pythonPath: filepath.Join(venvDir, "bin", "python"),
		env:        env,
		log:        zap.S().Named("storage"),
	}
}

func (r *FlaskStorageRegistrar) Sync(ctx context.Context, sourcesPath string) (bool, error) {
	out, err := r.runner.Run(ctx, Command{
		Name:  r.pythonPath,
		Args:  []string{"-", sourcesPath},
		Dir:   r.installDir,
		Env:   r.env,
		Stdin: registerScript,
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("storage source registration failed: %s", out.Text())
	}

	lines := strings.Split(strings.TrimSpace(out.Stdout), "\n")
	switch state := lines[len(lines)-1]; state {
	case "changed":
		r.log.Infow("storage sources registered", "file", sourcesPath)
		return true, nil
	case "unchanged":
		return false, nil
	default:
		return false, fmt.Errorf("storage source registration reported %q", state)
	}
}
