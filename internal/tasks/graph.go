package tasks

import (
	"context"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

// Task is one idempotent state assertion. Run returns whether the host had
// to be changed to reach the asserted state.
type Task struct {
	Name string
	Tags sets.Set[string]
	Run  func(ctx context.Context) (bool, error)
}

// Graph is the ordered task list for one convergence run.
type Graph struct {
	tasks []Task
}

func NewGraph(tasks ...Task) *Graph {
	return &Graph{tasks: tasks}
}

// Tasks returns the tasks in declaration order.
func (g *Graph) Tasks() []Task {
	return g.tasks
}

// Plan describes what a run with the given selection would execute, in
// declaration order, without running anything.
func (g *Graph) Plan(selection sets.Set[string]) []models.PlanEntry {
	entries := make([]models.PlanEntry, 0, len(g.tasks))
	for _, t := range g.tasks {
		entries = append(entries, models.PlanEntry{
			Task:     t.Name,
			Tags:     sets.List(t.Tags),
			Selected: t.Tags.Intersection(selection).Len() > 0,
		})
	}
	return entries
}
