package v1

import "time"

// StatusState mirrors the convergence state machine on the wire.
type StatusState string

const (
	StatusStateReady      StatusState = "ready"
	StatusStateConverging StatusState = "converging"
	StatusStateConverged  StatusState = "converged"
	StatusStateError      StatusState = "error"
)

// Status is the response for GET /status.
type Status struct {
	State   StatusState `json:"state"`
	Drift   Drift       `json:"drift"`
	LastRun *Run        `json:"lastRun,omitempty"`
	Error   *string     `json:"error,omitempty"`
}

// Drift reports whether the configuration file changed on disk after the
// last accepted convergence trigger.
type Drift struct {
	ConvergeNeeded bool       `json:"convergeNeeded"`
	ModifiedAt     *time.Time `json:"modifiedAt,omitempty"`
}

// Run is one convergence run with its per-task results.
type Run struct {
	Id         string       `json:"id"`
	Tags       []string     `json:"tags"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Duration   string       `json:"duration"`
	Changed    int          `json:"changed"`
	Unchanged  int          `json:"unchanged"`
	Skipped    int          `json:"skipped"`
	Failed     bool         `json:"failed"`
	Error      *string      `json:"error,omitempty"`
	Tasks      []TaskResult `json:"tasks"`
}

// TaskResult is the outcome of a single task within a run.
type TaskResult struct {
	Task     string  `json:"task"`
	Status   string  `json:"status"`
	Duration string  `json:"duration"`
	Message  *string `json:"message,omitempty"`
}

// RunSummary is one row of the run ledger.
type RunSummary struct {
	Id         string    `json:"id"`
	Tags       []string  `json:"tags"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Changed    int       `json:"changed"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	Failed     bool      `json:"failed"`
	Error      *string   `json:"error,omitempty"`
}

// RunListResponse is the paginated response for GET /runs.
type RunListResponse struct {
	Page      int          `json:"page"`
	PageCount int          `json:"pageCount"`
	Total     int          `json:"total"`
	Runs      []RunSummary `json:"runs"`
}

// ConvergeRequest selects the tags for a triggered run. An empty tag list,
// or an empty body, converges everything.
type ConvergeRequest struct {
	Tags []string `json:"tags,omitempty"`
}
