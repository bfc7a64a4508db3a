package models

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// TaskTag labels a task with the coarse-grained category it belongs to.
// Tags select which subset of the graph runs; they never affect ordering
// among the selected tasks.
type TaskTag string

const (
	// TagUv - installation of the uv packaging tool
	TagUv TaskTag = "uv"
	// TagInstall - runtime environment and application install
	TagInstall TaskTag = "install"
	// TagDatabase - database schema migrations
	TagDatabase TaskTag = "database"
	// TagService - service units, reverse proxy, (re)starts
	TagService TaskTag = "service"
)

// AllTags returns the full tag universe, the default selection for a run.
func AllTags() sets.Set[string] {
	return sets.New(string(TagUv), string(TagInstall), string(TagDatabase), string(TagService))
}

// ParseTags validates a caller-supplied tag selection. An empty selection
// means all tags.
func ParseTags(tags []string) (sets.Set[string], error) {
	if len(tags) == 0 {
		return AllTags(), nil
	}
	universe := AllTags()
	selected := sets.New[string]()
	for _, t := range tags {
		if !universe.Has(t) {
			return nil, fmt.Errorf("unknown tag %q (valid: %v)", t, sets.List(universe))
		}
		selected.Insert(t)
	}
	return selected, nil
}
