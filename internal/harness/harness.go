package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
	"github.com/rayzilt/aipscan-deploy/pkg/scheduler"
)

// Env is one disposable environment a scenario runs against. Create is
// idempotent and Destroy tolerates an environment that never came up.
type Env interface {
	Create(ctx context.Context) error
	Exec(ctx context.Context, cmd []string) (ExecResult, error)
	Endpoint() string
	Destroy(ctx context.Context) error
}

// ExecResult carries the output of one command run inside an environment. A
// non-zero exit code is an outcome, not an error; errors mean the command
// could not be run at all.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// EnvFactory builds the environment for one platform.
type EnvFactory func(p Platform) (Env, error)

// Phase names one stage of a scenario pipeline.
type Phase string

const (
	PhaseCreate      Phase = "create"
	PhaseSyntax      Phase = "syntax"
	PhaseConverge    Phase = "converge"
	PhaseIdempotence Phase = "idempotence"
	PhaseVerify      Phase = "verify"
	PhaseDestroy     Phase = "destroy"
)

// PhaseResult records one executed phase.
type PhaseResult struct {
	Phase    Phase
	Duration time.Duration
	Err      error
}

// PlatformResult collects everything that happened to one platform. Phases
// lists only the phases that actually ran; the pipeline aborts at the first
// failure, so a failed syntax check leaves converge and verify out of the
// list entirely. Destroy still runs.
type PlatformResult struct {
	Platform string
	Phases   []PhaseResult
	Converge *models.RunReport
	Repeat   *models.RunReport
}

// Err returns the first phase failure, or nil when the pipeline passed.
func (r *PlatformResult) Err() error {
	for _, p := range r.Phases {
		if p.Err != nil {
			return p.Err
		}
	}
	return nil
}

// pipeline pairs one platform's result with its logger so phases record
// themselves uniformly.
type pipeline struct {
	res *PlatformResult
	log *zap.SugaredLogger
}

// run executes one phase, times it and wraps any failure with the phase
// name.
func (pl *pipeline) run(phase Phase, fn func() error) error {
	pl.log.Infow("phase started", "phase", phase)
	start := time.Now()
	err := fn()
	if err != nil {
		err = srvErrors.NewVerificationError(string(phase), err)
		pl.log.Errorw("phase failed", "phase", phase, "error", err)
	} else {
		pl.log.Infow("phase completed", "phase", phase, "duration", time.Since(start))
	}
	pl.res.Phases = append(pl.res.Phases, PhaseResult{Phase: phase, Duration: time.Since(start), Err: err})
	return err
}

// Runner drives scenario pipelines against environments built by the
// factory. Platforms run in parallel, each against its own environment.
type Runner struct {
	scenario *Scenario
	factory  EnvFactory
	log      *zap.SugaredLogger
}

func NewRunner(sc *Scenario, factory EnvFactory) *Runner {
	return &Runner{
		scenario: sc,
		factory:  factory,
		log:      zap.S().Named("harness"),
	}
}

// Test runs the full pipeline on the selected platforms: create the
// environment, check the configuration statically, converge, converge a
// second time asserting nothing changes, verify, destroy. An empty filter
// selects every platform. Environments are destroyed even after a failure
// unless the scenario keeps them.
func (r *Runner) Test(ctx context.Context, platformIDs []string) ([]PlatformResult, error) {
	platforms, err := r.scenario.SelectPlatforms(platformIDs)
	if err != nil {
		return nil, err
	}

	pool := scheduler.NewScheduler[PlatformResult](len(platforms))
	defer pool.Close()

	futures := make([]*scheduler.Future[scheduler.Result[PlatformResult]], 0, len(platforms))
	for _, p := range platforms {
		// the caller's context governs the run, the pool only adds
		// parallelism
		futures = append(futures, pool.AddWork(func(_ context.Context) (PlatformResult, error) {
			return r.testPlatform(ctx, p), nil
		}))
	}

	results := make([]PlatformResult, 0, len(platforms))
	var failures *multierror.Error
	for _, f := range futures {
		out := <-f.C()
		if out.Err != nil {
			failures = multierror.Append(failures, out.Err)
			continue
		}
		results = append(results, out.Data)
		if err := out.Data.Err(); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("platform %s: %w", out.Data.Platform, err))
		}
	}
	return results, failures.ErrorOrNil()
}

func (r *Runner) testPlatform(ctx context.Context, p Platform) PlatformResult {
	res := PlatformResult{Platform: p.ID}
	pl := &pipeline{res: &res, log: r.log.With("platform", p.ID)}

	env, err := r.factory(p)
	if err != nil {
		res.Phases = append(res.Phases, PhaseResult{
			Phase: PhaseCreate,
			Err:   srvErrors.NewVerificationError(string(PhaseCreate), err),
		})
		return res
	}

	r.runPhases(ctx, pl, env)

	if r.scenario.KeepEnv {
		pl.log.Infow("keeping environment", "endpoint", env.Endpoint())
		return res
	}
	pl.run(PhaseDestroy, func() error { return env.Destroy(ctx) })
	return res
}

func (r *Runner) runPhases(ctx context.Context, pl *pipeline, env Env) {
	if pl.run(PhaseCreate, func() error { return env.Create(ctx) }) != nil {
		return
	}
	if pl.run(PhaseSyntax, func() error { return r.check(ctx, env) }) != nil {
		return
	}
	if pl.run(PhaseConverge, func() error {
		report, err := r.converge(ctx, env)
		pl.res.Converge = report
		return err
	}) != nil {
		return
	}
	if pl.run(PhaseIdempotence, func() error {
		report, err := r.converge(ctx, env)
		pl.res.Repeat = report
		if err != nil {
			return err
		}
		if n := report.Changed(); n > 0 {
			return fmt.Errorf("%d task(s) changed on the second run", n)
		}
		return nil
	}) != nil {
		return
	}
	pl.run(PhaseVerify, func() error { return r.verify(ctx, env) })
}

// Create provisions the selected environments without running anything in
// them.
func (r *Runner) Create(ctx context.Context, platformIDs []string) error {
	return r.each(ctx, platformIDs, func(ctx context.Context, env Env) error {
		return env.Create(ctx)
	})
}

// Converge provisions the selected environments where needed and runs one
// convergence in each.
func (r *Runner) Converge(ctx context.Context, platformIDs []string) error {
	return r.each(ctx, platformIDs, func(ctx context.Context, env Env) error {
		if err := env.Create(ctx); err != nil {
			return err
		}
		_, err := r.converge(ctx, env)
		return err
	})
}

// Verify runs the post-convergence checks against already converged
// environments.
func (r *Runner) Verify(ctx context.Context, platformIDs []string) error {
	return r.each(ctx, platformIDs, func(ctx context.Context, env Env) error {
		return r.verify(ctx, env)
	})
}

// Destroy tears down the selected environments.
func (r *Runner) Destroy(ctx context.Context, platformIDs []string) error {
	return r.each(ctx, platformIDs, func(ctx context.Context, env Env) error {
		return env.Destroy(ctx)
	})
}

// each runs fn against every selected platform in parallel and joins the
// failures.
func (r *Runner) each(ctx context.Context, platformIDs []string, fn func(context.Context, Env) error) error {
	platforms, err := r.scenario.SelectPlatforms(platformIDs)
	if err != nil {
		return err
	}

	pool := scheduler.NewScheduler[struct{}](len(platforms))
	defer pool.Close()

	type pending struct {
		id     string
		future *scheduler.Future[scheduler.Result[struct{}]]
	}
	futures := make([]pending, 0, len(platforms))
	for _, p := range platforms {
		env, err := r.factory(p)
		if err != nil {
			return err
		}
		futures = append(futures, pending{p.ID, pool.AddWork(func(_ context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx, env)
		})})
	}

	var failures *multierror.Error
	for _, f := range futures {
		if out := <-f.future.C(); out.Err != nil {
			failures = multierror.Append(failures, fmt.Errorf("platform %s: %w", f.id, out.Err))
		}
	}
	return failures.ErrorOrNil()
}

// check validates the configuration, the task graph and the rendered
// templates inside the environment without changing anything on it.
func (r *Runner) check(ctx context.Context, env Env) error {
	out, err := env.Exec(ctx, []string{binaryPath, "converge", "--check", "--config", configMountPath})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("check exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// converge runs the deploy binary inside the environment and parses the run
// report it prints. The report is parsed even on a non-zero exit so a failed
// run still names its failing task.
func (r *Runner) converge(ctx context.Context, env Env) (*models.RunReport, error) {
	cmd := []string{binaryPath, "converge", "--config", configMountPath, "--report-json"}
	if len(r.scenario.Converge.Tags) > 0 {
		cmd = append(cmd, "--tags", strings.Join(r.scenario.Converge.Tags, ","))
	}

	out, err := env.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{}
	if err := json.Unmarshal([]byte(out.Stdout), report); err != nil {
		if out.ExitCode != 0 {
			return nil, fmt.Errorf("converge exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
		}
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}
	if report.Failed {
		return report, fmt.Errorf("converge failed: %s", report.Error)
	}
	if out.ExitCode != 0 {
		return report, fmt.Errorf("converge exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return report, nil
}

// verify asserts the converged environment: the service answers over HTTP,
// the named units are active and the named paths do not exist. Absent paths
// are how tag-scoped scenarios prove that unselected tasks never ran.
func (r *Runner) verify(ctx context.Context, env Env) error {
	if r.scenario.Verify.HTTP != nil {
		if err := r.verifyHTTP(ctx, env); err != nil {
			return err
		}
	}
	for _, svc := range r.scenario.Verify.Services {
		out, err := env.Exec(ctx, []string{"systemctl", "is-active", "--quiet", svc})
		if err != nil {
			return err
		}
		if out.ExitCode != 0 {
			return fmt.Errorf("service %s is not active", svc)
		}
	}
	for _, path := range r.scenario.Verify.Absent {
		out, err := env.Exec(ctx, []string{"test", "!", "-e", path})
		if err != nil {
			return err
		}
		if out.ExitCode != 0 {
			return fmt.Errorf("path %s exists but should not", path)
		}
	}
	return nil
}

// verifyHTTP polls the published port until the service answers with a
// success status. The application needs a moment after its unit starts
// before gunicorn accepts connections, hence the retry loop.
func (r *Runner) verifyHTTP(ctx context.Context, env Env) error {
	check := r.scenario.Verify.HTTP
	url := env.Endpoint() + check.Path
	client := &http.Client{Timeout: 5 * time.Second}

	op := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return struct{}{}, fmt.Errorf("%s answered %d", url, resp.StatusCode)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Duration(check.Timeout)))
	if err != nil {
		return fmt.Errorf("http check on %s: %w", url, err)
	}
	return nil
}
