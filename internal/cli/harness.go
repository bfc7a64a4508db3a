package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rayzilt/aipscan-deploy/internal/harness"
)

// harnessOptions carries the flags shared by every harness subcommand.
type harnessOptions struct {
	global    *globalOptions
	scenario  string
	platforms []string
	keepEnv   bool
	socket    string
}

func newHarnessCommand(opts *globalOptions) *cobra.Command {
	hOpts := &harnessOptions{global: opts}

	cmd := &cobra.Command{
		Use:   "harness",
		Short: "Drive convergence scenarios against disposable containers",
		Long: "harness provisions one container per scenario platform, runs the deploy\n" +
			"binary inside it and asserts the outcome. `test` runs the full pipeline:\n" +
			"create, syntax, converge, idempotence, verify, destroy. The other\n" +
			"subcommands run a single stage for debugging.",
	}

	cmd.PersistentFlags().StringVar(&hOpts.scenario, "scenario", "harness.yaml", "scenario file")
	cmd.PersistentFlags().StringSliceVar(&hOpts.platforms, "platform", nil, "platform ids to act on (default: all in the scenario)")
	cmd.PersistentFlags().BoolVar(&hOpts.keepEnv, "keep-env", false, "keep the environments around after the run")
	cmd.PersistentFlags().StringVar(&hOpts.socket, "podman-socket", harness.DefaultPodmanSocket, "podman API socket")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "test",
			Short: "Run the full scenario pipeline on every selected platform",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				runner, err := hOpts.runner(cmd.Context())
				if err != nil {
					return err
				}
				results, runErr := runner.Test(cmd.Context(), hOpts.platforms)
				printPlatformResults(cmd.OutOrStdout(), results)
				return runErr
			},
		},
		hOpts.stage("create", "Provision the selected environments without converging them",
			func(ctx context.Context, r *harness.Runner) error { return r.Create(ctx, hOpts.platforms) }),
		hOpts.stage("converge", "Run one convergence in each selected environment",
			func(ctx context.Context, r *harness.Runner) error { return r.Converge(ctx, hOpts.platforms) }),
		hOpts.stage("verify", "Run the post-convergence checks against the selected environments",
			func(ctx context.Context, r *harness.Runner) error { return r.Verify(ctx, hOpts.platforms) }),
		hOpts.stage("destroy", "Tear down the selected environments",
			func(ctx context.Context, r *harness.Runner) error { return r.Destroy(ctx, hOpts.platforms) }),
	)
	return cmd
}

// stage wraps one single-phase runner method as a subcommand.
func (o *harnessOptions) stage(use, short string, fn func(context.Context, *harness.Runner) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := o.runner(cmd.Context())
			if err != nil {
				return err
			}
			return fn(cmd.Context(), runner)
		},
	}
}

// runner loads the scenario and connects to podman. Harness commands do not
// read the role configuration; logging falls back to console at info unless
// --log-level says otherwise.
func (o *harnessOptions) runner(ctx context.Context) (*harness.Runner, error) {
	level := o.global.logLevel
	if level == "" {
		level = "info"
	}
	if err := initLogging(level, "console"); err != nil {
		return nil, err
	}

	sc, err := harness.LoadScenario(o.scenario)
	if err != nil {
		return nil, err
	}
	if o.keepEnv {
		sc.KeepEnv = true
	}

	factory, err := harness.NewPodmanFactory(ctx, o.socket, sc)
	if err != nil {
		return nil, err
	}
	return harness.NewRunner(sc, factory), nil
}
