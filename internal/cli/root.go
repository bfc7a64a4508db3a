package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/services"
	"github.com/rayzilt/aipscan-deploy/internal/tasks"
	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

// globalOptions carries the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand assembles the aipscan-deploy command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "aipscan-deploy",
		Short: "Declarative installer and operator for AIPscan",
		Long: "aipscan-deploy converges a host onto a declared AIPscan installation:\n" +
			"packages, service account, virtualenv, configuration, database schema,\n" +
			"systemd units and the nginx reverse proxy. Runs are idempotent; a host\n" +
			"that already matches the declaration reports zero changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"configuration file (default: built-in defaults plus AIPSCAN_DEPLOY_* environment variables)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newConvergeCommand(opts),
		newPlanCommand(opts),
		newVersionsCommand(opts),
		newRunsCommand(opts),
		newServeCommand(opts),
		newHarnessCommand(opts),
	)
	return root
}

// addTagsFlag registers the task selector shared by converge and plan.
func addTagsFlag(fs *pflag.FlagSet, tags *[]string) {
	fs.StringSliceVar(tags, "tags", nil,
		"limit the task selection to these tags, comma-separated (default: all)")
}

// loadConfiguration resolves the effective configuration and installs the
// logger it asks for. Every host-facing command goes through here so a
// --log-level override behaves the same everywhere.
func loadConfiguration(opts *globalOptions) (*config.Configuration, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := initLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStaticGraph validates the configuration and assembles the task graph
// without touching the network or the host. Version values only flow into
// task closures, which never run here, so an empty set stands in for them.
func buildStaticGraph(cfg *config.Configuration) (*tasks.Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deps, err := services.ProductionDeps(cfg)
	if err != nil {
		return nil, err
	}
	return tasks.Build(cfg, versions.Set{}, deps)
}
