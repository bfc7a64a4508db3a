package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/models"
	srvErrors "github.com/rayzilt/aipscan-deploy/pkg/errors"
)

const redacted = "[redacted]"

// Engine executes a Graph sequentially, strictly in declaration order. It
// never runs tasks concurrently: later tasks depend on host state
// established by earlier ones.
type Engine struct {
	secrets []string
	log     *zap.SugaredLogger
}

// NewEngine returns an Engine that scrubs the given secret literals from
// every task message before it reaches the report or the log.
func NewEngine(secrets []string) *Engine {
	return &Engine{
		secrets: secrets,
		log:     zap.S().Named("engine"),
	}
}

// Execute runs the graph under the given tag selection and returns the run
// report. The first failed task aborts the remaining graph; partial state is
// left in place for inspection. Execute itself never returns an error: a
// failed run is a report with Failed set.
func (e *Engine) Execute(ctx context.Context, graph *Graph, selection sets.Set[string]) *models.RunReport {
	report := &models.RunReport{
		ID:        uuid.New(),
		Tags:      sets.List(selection),
		StartedAt: time.Now().UTC(),
	}

	e.log.Infow("convergence run started", "run", report.ID, "tags", report.Tags)

	for _, task := range graph.Tasks() {
		if task.Tags.Intersection(selection).Len() == 0 {
			report.Results = append(report.Results, models.TaskResult{
				Task:   task.Name,
				Status: models.TaskStatusSkipped,
			})
			continue
		}

		started := time.Now()
		changed, err := e.runTask(ctx, task)
		duration := time.Since(started)

		if err != nil {
			message := e.scrub(err.Error())
			report.Results = append(report.Results, models.TaskResult{
				Task:     task.Name,
				Status:   models.TaskStatusFailed,
				Duration: duration,
				Message:  message,
			})
			report.Failed = true
			report.Error = srvErrors.NewTaskFailedError(task.Name, fmt.Errorf("%s", message)).Error()
			e.log.Errorw("task failed, aborting run", "run", report.ID, "task", task.Name, "error", message)
			break
		}

		status := models.TaskStatusUnchanged
		if changed {
			status = models.TaskStatusChanged
		}
		report.Results = append(report.Results, models.TaskResult{
			Task:     task.Name,
			Status:   status,
			Duration: duration,
		})
		e.log.Infow("task finished", "run", report.ID, "task", task.Name, "status", status, "duration", duration)
	}

	report.FinishedAt = time.Now().UTC()
	e.log.Infow("convergence run finished",
		"run", report.ID,
		"changed", report.Changed(),
		"unchanged", report.Unchanged(),
		"skipped", report.Skipped(),
		"failed", report.Failed,
		"duration", report.Duration(),
	)
	return report
}

func (e *Engine) runTask(ctx context.Context, task Task) (changed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return task.Run(ctx)
}

func (e *Engine) scrub(message string) string {
	for _, secret := range e.secrets {
		message = strings.ReplaceAll(message, secret, redacted)
	}
	return message
}
