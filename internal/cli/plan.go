package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

func newPlanCommand(opts *globalOptions) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which tasks a converge with the given tags would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(opts)
			if err != nil {
				return err
			}
			selection, err := models.ParseTags(tags)
			if err != nil {
				return err
			}
			graph, err := buildStaticGraph(cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			selected := 0
			for _, entry := range graph.Plan(selection) {
				action := color.New(color.Faint).Sprintf("%-4s", "skip")
				if entry.Selected {
					action = color.GreenString("%-4s", "run")
					selected++
				}
				fmt.Fprintf(w, "  %s %-24s %s\n", action, entry.Task, strings.Join(entry.Tags, ","))
			}
			fmt.Fprintf(w, "\n%d of %d tasks selected\n", selected, len(graph.Tasks()))
			return nil
		},
	}

	addTagsFlag(cmd.Flags(), &tags)
	return cmd
}
