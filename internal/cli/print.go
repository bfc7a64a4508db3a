package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/rayzilt/aipscan-deploy/internal/harness"
	"github.com/rayzilt/aipscan-deploy/internal/models"
)

var statusColors = map[models.TaskStatus]*color.Color{
	models.TaskStatusUnchanged: color.New(color.FgGreen),
	models.TaskStatusChanged:   color.New(color.FgYellow),
	models.TaskStatusFailed:    color.New(color.FgRed),
	models.TaskStatusSkipped:   color.New(color.FgCyan),
}

func statusColor(s models.TaskStatus) *color.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return color.New()
}

// printReport writes the human-readable view of one run: a line per task and
// a closing summary. Status words are padded before colorization so the ANSI
// escapes do not skew the columns.
func printReport(w io.Writer, report *models.RunReport) {
	for _, res := range report.Results {
		line := fmt.Sprintf("  %-24s %s", res.Task, statusColor(res.Status).Sprintf("%-9s", res.Status))
		if res.Status != models.TaskStatusSkipped {
			line += fmt.Sprintf(" (%s)", res.Duration.Round(time.Millisecond))
		}
		if res.Message != "" {
			line += " " + res.Message
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d changed, %d unchanged, %d skipped, %d failed in %s\n",
		report.Changed(), report.Unchanged(), report.Skipped(), report.FailedCount(),
		report.Duration().Round(time.Millisecond))
}

// printPlatformResults writes one block per platform with the phases that
// ran. The converge and idempotence lines carry the change counts, which is
// what a reader checks first.
func printPlatformResults(w io.Writer, results []harness.PlatformResult) {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "platform %s\n", res.Platform)
		for _, ph := range res.Phases {
			if ph.Err != nil {
				fmt.Fprintf(w, "  %-12s %s %v\n", ph.Phase, color.RedString("%-7s", "failed"), ph.Err)
				continue
			}
			line := fmt.Sprintf("  %-12s %s %s", ph.Phase, color.GreenString("%-7s", "ok"), ph.Duration.Round(time.Millisecond))
			switch ph.Phase {
			case harness.PhaseConverge:
				if res.Converge != nil {
					line += fmt.Sprintf(" (%d changed, %d unchanged)", res.Converge.Changed(), res.Converge.Unchanged())
				}
			case harness.PhaseIdempotence:
				if res.Repeat != nil {
					line += fmt.Sprintf(" (%d changed)", res.Repeat.Changed())
				}
			}
			fmt.Fprintln(w, line)
		}
	}
}
