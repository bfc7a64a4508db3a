package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/handlers"
	"github.com/rayzilt/aipscan-deploy/internal/models"
	"github.com/rayzilt/aipscan-deploy/internal/server"
	"github.com/rayzilt/aipscan-deploy/internal/services"
	"github.com/rayzilt/aipscan-deploy/internal/store"
	"github.com/rayzilt/aipscan-deploy/internal/store/migrations"
	"github.com/rayzilt/aipscan-deploy/pkg/scheduler"
	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent: status API, run ledger and drift watch",
		Long: "serve keeps the agent resident. Convergence runs are triggered over the\n" +
			"status API and recorded in the ledger; the configuration file is watched\n" +
			"for drift so the status endpoint can say when the declaration on disk is\n" +
			"newer than the last run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(opts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			log := zap.S().Named("serve")

			if err := os.MkdirAll(cfg.StateDir, 0o750); err != nil {
				return err
			}
			db, err := store.NewDB(cfg.LedgerPath())
			if err != nil {
				return err
			}
			st := store.NewStore(db)
			defer st.Close()

			if err := migrations.Run(ctx, db); err != nil {
				return err
			}

			// one worker: at most one convergence run in flight
			sched := scheduler.NewScheduler[*models.RunReport](1)
			defer sched.Close()

			resolver := versions.NewResolver(time.Duration(cfg.Versions.TimeoutSeconds) * time.Second)
			converger := services.NewEngineConverger(opts.configPath, services.ProductionDeps, resolver)
			convergeSrv := services.NewConvergeService(ctx, converger, st, sched)
			defer convergeSrv.Stop()

			var watcher *services.Watcher
			if opts.configPath != "" {
				watcher, err = services.NewWatcher(opts.configPath)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			h := handlers.New(convergeSrv, services.NewRunService(st), watcher)
			srv, err := server.New(cfg, h.Routes)
			if err != nil {
				return err
			}

			log.Infow("agent starting", "config", cfg.DebugMap())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	return cmd
}
