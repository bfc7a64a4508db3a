package v1

import (
	"time"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

// NewStatus converts the service status to its API representation. Drift
// information is attached separately via NewDrift because it comes from the
// configuration watcher rather than the convergence service.
func NewStatus(m models.RunStatus) Status {
	var s Status

	switch m.State {
	case models.RunStateReady:
		s.State = StatusStateReady
	case models.RunStateConverging:
		s.State = StatusStateConverging
	case models.RunStateConverged:
		s.State = StatusStateConverged
	case models.RunStateError:
		s.State = StatusStateError
	default:
		s.State = StatusStateReady
	}

	if m.LastReport != nil {
		run := NewRunFromReport(m.LastReport)
		s.LastRun = &run
	}

	if m.Error != nil {
		e := m.Error.Error()
		s.Error = &e
	}

	return s
}

// NewStatusWithError attaches err to the converted status.
func NewStatusWithError(m models.RunStatus, err error) Status {
	s := NewStatus(m)
	if err != nil {
		errStr := err.Error()
		s.Error = &errStr
	}
	return s
}

// NewDrift converts the watcher state to its API representation.
func NewDrift(dirty bool, modifiedAt time.Time) Drift {
	d := Drift{ConvergeNeeded: dirty}
	if dirty && !modifiedAt.IsZero() {
		t := modifiedAt
		d.ModifiedAt = &t
	}
	return d
}

// NewRunFromReport converts a models.RunReport to an API Run.
func NewRunFromReport(r *models.RunReport) Run {
	run := Run{
		Id:         r.ID.String(),
		Tags:       r.Tags,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   r.Duration().String(),
		Changed:    r.Changed(),
		Unchanged:  r.Unchanged(),
		Skipped:    r.Skipped(),
		Failed:     r.Failed,
		Tasks:      make([]TaskResult, 0, len(r.Results)),
	}

	if r.Error != "" {
		e := r.Error
		run.Error = &e
	}

	for _, res := range r.Results {
		run.Tasks = append(run.Tasks, NewTaskResultFromModel(res))
	}

	return run
}

// NewTaskResultFromModel converts a models.TaskResult to its API type.
func NewTaskResultFromModel(t models.TaskResult) TaskResult {
	result := TaskResult{
		Task:     t.Task,
		Status:   string(t.Status),
		Duration: t.Duration.String(),
	}

	if t.Message != "" {
		m := t.Message
		result.Message = &m
	}

	return result
}

// NewRunSummaryFromModel converts a ledger row to its API type.
func NewRunSummaryFromModel(m models.RunSummary) RunSummary {
	s := RunSummary{
		Id:         m.ID.String(),
		Tags:       m.Tags,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Changed:    m.Changed,
		Unchanged:  m.Unchanged,
		Skipped:    m.Skipped,
		Failed:     m.Failed,
	}

	if m.Error != "" {
		e := m.Error
		s.Error = &e
	}

	return s
}
