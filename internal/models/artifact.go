package models

import "io/fs"

// ArtifactClass classifies how disruptive it is to apply a changed artifact
// to the running services. Restarting on every run regardless of actual
// change would break the idempotence contract, so the engine restarts only
// when a restart-class artifact changed and reloads when only reload-class
// artifacts changed.
type ArtifactClass string

const (
	// ArtifactClassRestart - the owning service reads this artifact at boot
	// (environment file, unit definition); applying a change needs a restart.
	ArtifactClassRestart ArtifactClass = "restart"
	// ArtifactClassReload - the owning service re-reads this artifact on
	// reload (reverse-proxy vhost); a reload suffices.
	ArtifactClassReload ArtifactClass = "reload"
)

// Artifact is one rendered configuration file, ready for atomic placement.
// Content is a pure function of the role configuration: identical input
// yields byte-identical Content.
type Artifact struct {
	// Name identifies the artifact in reports and logs. Content never
	// appears in either: it may carry secrets.
	Name    string
	Path    string
	Content []byte
	Mode    fs.FileMode
	Owner   string
	Group   string
	Class   ArtifactClass
	// Services lists the units to reload or restart when this artifact
	// changes. Empty for artifacts no service consumes at runtime.
	Services []string
}
