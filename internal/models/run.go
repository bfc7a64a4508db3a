package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the tri-state outcome of a single task, plus "skipped" for
// tasks excluded by tag selection.
type TaskStatus string

const (
	TaskStatusUnchanged TaskStatus = "unchanged"
	TaskStatusChanged   TaskStatus = "changed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "unchanged":
		return TaskStatusUnchanged, nil
	case "changed":
		return TaskStatusChanged, nil
	case "failed":
		return TaskStatusFailed, nil
	case "skipped":
		return TaskStatusSkipped, nil
	default:
		return "", fmt.Errorf("invalid task status: %s", s)
	}
}

// RunState represents the current state of the convergence service.
type RunState string

const (
	// RunStateReady - no convergence has run yet, or the last one was cleared
	RunStateReady RunState = "ready"
	// RunStateConverging - a convergence run is in progress
	RunStateConverging RunState = "converging"
	// RunStateConverged - the last convergence run completed with no failure
	RunStateConverged RunState = "converged"
	// RunStateError - the last convergence run aborted on a failed task
	RunStateError RunState = "error"
)

func ParseRunState(s string) (RunState, error) {
	switch s {
	case "ready":
		return RunStateReady, nil
	case "converging":
		return RunStateConverging, nil
	case "converged":
		return RunStateConverged, nil
	case "error":
		return RunStateError, nil
	default:
		return "", fmt.Errorf("invalid run state: %s", s)
	}
}

// TaskResult records the outcome of one task within a run.
type TaskResult struct {
	Task     string        `json:"task"`
	Status   TaskStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
}

// RunReport summarizes one convergence run. A second run against an already
// converged host with unchanged configuration must report Changed() == 0.
type RunReport struct {
	ID         uuid.UUID    `json:"id"`
	Tags       []string     `json:"tags"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TaskResult `json:"results"`
	Failed     bool         `json:"failed"`
	Error      string       `json:"error,omitempty"`
}

func (r *RunReport) Changed() int {
	return r.count(TaskStatusChanged)
}

func (r *RunReport) Unchanged() int {
	return r.count(TaskStatusUnchanged)
}

func (r *RunReport) FailedCount() int {
	return r.count(TaskStatusFailed)
}

func (r *RunReport) Skipped() int {
	return r.count(TaskStatusSkipped)
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunReport) count(status TaskStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// RunSummary is one ledger row: the run outcome without per-task results.
type RunSummary struct {
	ID         uuid.UUID `json:"id"`
	Tags       []string  `json:"tags"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Changed    int       `json:"changed"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Summary reduces a report to its ledger row.
func (r *RunReport) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		Tags:       r.Tags,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Changed:    r.Changed(),
		Unchanged:  r.Unchanged(),
		Skipped:    r.Skipped(),
		Failed:     r.Failed,
		Error:      r.Error,
	}
}

// RunStatus holds the current convergence state and, when available, the
// report of the last completed run.
type RunStatus struct {
	State      RunState
	LastReport *RunReport
	Error      error
}
