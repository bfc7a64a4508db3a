package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rayzilt/aipscan-deploy/pkg/versions"
)

func newVersionsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Resolve the component versions a converge would install",
		Long: "versions answers what a run would install right now: pinned versions\n" +
			"verbatim, unpinned ones resolved from PyPI, GitHub and the AIPscan\n" +
			"repository. A fully pinned configuration never touches the network.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(opts)
			if err != nil {
				return err
			}

			resolver := versions.NewResolver(time.Duration(cfg.Versions.TimeoutSeconds) * time.Second)
			set, err := resolver.Resolve(cmd.Context(), versions.Pins{
				AIPscan: cfg.Versions.AIPscan,
				Uv:      cfg.Versions.Uv,
				Python:  cfg.Versions.Python,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  %-8s %-12s %s\n", "aipscan", set.AIPscan, source(cfg.Versions.AIPscan))
			fmt.Fprintf(w, "  %-8s %-12s %s\n", "uv", set.Uv, source(cfg.Versions.Uv))
			fmt.Fprintf(w, "  %-8s %-12s %s\n", "python", set.Python, source(cfg.Versions.Python))
			return nil
		},
	}
	return cmd
}

func source(pin string) string {
	if strings.TrimSpace(pin) != "" {
		return "(pinned)"
	}
	return "(resolved)"
}
