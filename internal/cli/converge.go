package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/services"
	"github.com/rayzilt/aipscan-deploy/internal/store"
	"github.com/rayzilt/aipscan-deploy/internal/store/migrations"
	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

func newConvergeCommand(opts *globalOptions) *cobra.Command {
	var (
		tags       []string
		check      bool
		reportJSON bool
	)

	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Run one convergence against this host",
		Long: "converge resolves the component versions, assembles the task graph and\n" +
			"executes it in order. The first failed task aborts the run; partial state\n" +
			"is left in place and a rerun picks up where the host actually is.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(opts)
			if err != nil {
				return err
			}

			if check {
				graph, err := buildStaticGraph(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration valid (%d tasks)\n", len(graph.Tasks()))
				return nil
			}

			selection, err := models.ParseTags(tags)
			if err != nil {
				return err
			}

			resolver := versions.NewResolver(time.Duration(cfg.Versions.TimeoutSeconds) * time.Second)
			converger := services.NewEngineConverger(opts.configPath, services.ProductionDeps, resolver)

			report, err := converger.Converge(cmd.Context(), selection)
			if err != nil {
				return err
			}
			recordRun(cmd.Context(), cfg, report)

			if reportJSON {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			if report.Failed {
				return errors.New(report.Error)
			}
			return nil
		},
	}

	addTagsFlag(cmd.Flags(), &tags)
	cmd.Flags().BoolVar(&check, "check", false, "validate the configuration, graph and rendered templates without changing the host")
	cmd.Flags().BoolVar(&reportJSON, "report-json", false, "print the run report as JSON instead of the task table")
	return cmd
}

// recordRun appends the report to the run ledger. Ledger problems never fail
// the command: the host state is the outcome, the ledger is bookkeeping.
func recordRun(ctx context.Context, cfg *config.Configuration, report *models.RunReport) {
	log := zap.S().Named("cli")

	if err := os.MkdirAll(cfg.StateDir, 0o750); err != nil {
		log.Warnw("failed to create state directory, run not recorded", "dir", cfg.StateDir, "error", err)
		return
	}
	db, err := store.NewDB(cfg.LedgerPath())
	if err != nil {
		log.Warnw("failed to open ledger, run not recorded", "error", err)
		return
	}
	st := store.NewStore(db)
	defer st.Close()

	if err := migrations.Run(ctx, db); err != nil {
		log.Warnw("failed to migrate ledger, run not recorded", "error", err)
		return
	}
	if err := st.Runs().Save(ctx, report); err != nil {
		log.Warnw("failed to record run", "run", report.ID, "error", err)
	}
}
