package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rayzilt/aipscan-deploy/internal/services"
	"github.com/rayzilt/aipscan-deploy/internal/store"
	"github.com/rayzilt/aipscan-deploy/internal/store/migrations"
)

func newRunsCommand(opts *globalOptions) *cobra.Command {
	var (
		failedOnly bool
		limit      uint64
		offset     uint64
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded convergence runs from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.LedgerPath()); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(w, "no runs recorded")
				return nil
			}

			db, err := store.NewDB(cfg.LedgerPath())
			if err != nil {
				return err
			}
			st := store.NewStore(db)
			defer st.Close()

			if err := migrations.Run(cmd.Context(), db); err != nil {
				return err
			}

			params := services.RunListParams{Limit: limit, Offset: offset}
			if failedOnly {
				params.Failed = &failedOnly
			}
			result, err := services.NewRunService(st).List(cmd.Context(), params)
			if err != nil {
				return err
			}

			if len(result.Runs) == 0 {
				fmt.Fprintln(w, "no runs recorded")
				return nil
			}
			for _, run := range result.Runs {
				outcome := color.GreenString("%-6s", "ok")
				if run.Failed {
					outcome = color.RedString("%-6s", "failed")
				}
				line := fmt.Sprintf("  %s  %s  %-9s %s  changed=%d unchanged=%d skipped=%d",
					run.ID.String()[:8],
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
					outcome,
					run.Changed, run.Unchanged, run.Skipped,
				)
				if run.Error != "" {
					line += "  " + run.Error
				}
				fmt.Fprintln(w, line)
			}
			fmt.Fprintf(w, "\n%d of %d run(s)\n", len(result.Runs), result.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "list only failed runs")
	cmd.Flags().Uint64Var(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().Uint64Var(&offset, "offset", 0, "number of runs to skip")
	return cmd
}
