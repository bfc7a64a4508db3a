package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// MigrationRunner applies the application's database schema migrations.
type MigrationRunner interface {
	// CurrentRevision returns the schema revision the database is at, or ""
	// for an uninitialized database.
	CurrentRevision(ctx context.Context) (string, error)
	// Upgrade brings the schema to the target revision and reports whether
	// the revision moved. Re-running against an up-to-date schema is a no-op.
	Upgrade(ctx context.Context) (bool, error)
}

// FlaskMigrationRunner drives flask-migrate inside the application
// virtualenv. The command environment carries the application settings
// (database URL, secret key) and is never logged.
type FlaskMigrationRunner struct {
	runner     CommandRunner
	installDir string
	flaskPath  string
	env        []string
	log        *zap.SugaredLogger
}

func NewFlaskMigrationRunner(runner CommandRunner, installDir, venvDir string, env []string) *FlaskMigrationRunner {
	return &FlaskMigrationRunner{
		runner:     runner,
		installDir: installDir,
		flaskPath:  filepath.Join(venvDir, "bin", "flask"),
		env:        append([]string{"FLASK_APP=AIPscan"}, env...),
		log:        zap.S().Named("migrations"),
	}
}

func (r *FlaskMigrationRunner) CurrentRevision(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, Command{
		Name: r.flaskPath,
		Args: []string{"db", "current"},
		Dir:  r.installDir,
		Env:  r.env,
	})
	if err != nil {
		return "", err
	}
	if !out.Success() {
		return "", fmt.Errorf("flask db current failed: %s", out.Text())
	}

	// the last non-empty line is "<revision> (head)", or nothing at all for
	// an uninitialized database
	lines := strings.Split(strings.TrimSpace(out.Stdout), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "", nil
	}
	return strings.Fields(last)[0], nil
}

func (r *FlaskMigrationRunner) Upgrade(ctx context.Context) (bool, error) {
	before, err := r.CurrentRevision(ctx)
	if err != nil {
		return false, err
	}

	out, err := r.runner.Run(ctx, Command{
		Name: r.flaskPath,
		Args: []string{"db", "upgrade"},
		Dir:  r.installDir,
		Env:  r.env,
	})
	if err != nil {
		return false, err
	}
	if !out.Success() {
		return false, fmt.Errorf("flask db upgrade failed: %s", out.Text())
	}

	after, err := r.CurrentRevision(ctx)
	if err != nil {
		return false, err
	}
	if before != after {
		r.log.Infow("schema migrated", "from", emptyAsNew(before), "to", after)
		return true, nil
	}
	return false, nil
}

func emptyAsNew(revision string) string {
	if revision == "" {
		return "(empty)"
	}
	return revision
}
