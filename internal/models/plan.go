package models

// PlanEntry describes one task of a planned run: what would execute under
// the given tag selection, in declaration order, without touching the host.
type PlanEntry struct {
	Task     string   `json:"task"`
	Tags     []string `json:"tags"`
	Selected bool     `json:"selected"`
}
