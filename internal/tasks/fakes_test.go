package tasks_test

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

// fakeHost is an in-memory host. Every Ensure* call mutates its state the
// way the real collaborator would mutate the machine, so repeated runs
// against it exhibit the same convergence behavior as a real host.
type fakeHost struct {
	mu sync.Mutex

	uvVersion  string
	pythons    map[string]bool
	venvs      map[string]string // venv dir -> interpreter version
	apps       map[string]string // venv dir -> application version
	packages   map[string]bool
	groups     map[string]bool
	users      map[string]bool
	files      map[string][]byte
	modes      map[string]fs.FileMode
	dirs       map[string]bool
	revision   string
	registered []byte

	enabled map[string]bool
	active  map[string]bool

	restarts      []string
	reloads       []string
	daemonReloads int

	ops    []string
	failOn map[string]error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		pythons:  map[string]bool{},
		venvs:    map[string]string{},
		apps:     map[string]string{},
		packages: map[string]bool{},
		groups:   map[string]bool{},
		users:    map[string]bool{},
		files:    map[string][]byte{},
		modes:    map[string]fs.FileMode{},
		dirs:     map[string]bool{},
		enabled:  map[string]bool{},
		active:   map[string]bool{},
		failOn:   map[string]error{},
	}
}

func (h *fakeHost) op(name string) error {
	h.ops = append(h.ops, name)
	return h.failOn[name]
}

func (h *fakeHost) opLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ops...)
}

// UvManager

func (h *fakeHost) CurrentVersion(context.Context) (string, error) {
	return h.uvVersion, nil
}

func (h *fakeHost) EnsureInstalled(_ context.Context, version string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("uv.install"); err != nil {
		return false, err
	}
	if h.uvVersion == version {
		return false, nil
	}
	h.uvVersion = version
	return true, nil
}

func (h *fakeHost) EnsurePython(_ context.Context, version string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("uv.python"); err != nil {
		return false, err
	}
	if h.pythons[version] {
		return false, nil
	}
	h.pythons[version] = true
	return true, nil
}

func (h *fakeHost) EnsureVenv(_ context.Context, venvDir, pythonVersion string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("uv.venv"); err != nil {
		return false, err
	}
	if h.venvs[venvDir] == pythonVersion {
		return false, nil
	}
	h.venvs[venvDir] = pythonVersion
	return true, nil
}

func (h *fakeHost) EnsureApp(_ context.Context, venvDir, appVersion string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("uv.app"); err != nil {
		return false, err
	}
	if h.apps[venvDir] == appVersion {
		return false, nil
	}
	h.apps[venvDir] = appVersion
	return true, nil
}

// PackageManager

func (h *fakeHost) EnsurePackages(_ context.Context, names []string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("packages.ensure"); err != nil {
		return false, err
	}
	changed := false
	for _, name := range names {
		if !h.packages[name] {
			h.packages[name] = true
			changed = true
		}
	}
	return changed, nil
}

// UserManager

func (h *fakeHost) EnsureGroup(_ context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("users.group"); err != nil {
		return false, err
	}
	if h.groups[name] {
		return false, nil
	}
	h.groups[name] = true
	return true, nil
}

func (h *fakeHost) EnsureUser(_ context.Context, name, _, _ string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("users.user"); err != nil {
		return false, err
	}
	if h.users[name] {
		return false, nil
	}
	h.users[name] = true
	return true, nil
}

// FileManager

func (h *fakeHost) EnsureFile(_ context.Context, artifact models.Artifact) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("files.file " + artifact.Path); err != nil {
		return false, err
	}
	if existing, ok := h.files[artifact.Path]; ok &&
		bytes.Equal(existing, artifact.Content) && h.modes[artifact.Path] == artifact.Mode {
		return false, nil
	}
	h.files[artifact.Path] = append([]byte(nil), artifact.Content...)
	h.modes[artifact.Path] = artifact.Mode
	return true, nil
}

func (h *fakeHost) EnsureDir(_ context.Context, path string, _ fs.FileMode, _, _ string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("files.dir " + path); err != nil {
		return false, err
	}
	if h.dirs[path] {
		return false, nil
	}
	h.dirs[path] = true
	return true, nil
}

// MigrationRunner

func (h *fakeHost) CurrentRevision(context.Context) (string, error) {
	return h.revision, nil
}

func (h *fakeHost) Upgrade(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("migrations.upgrade"); err != nil {
		return false, err
	}
	if h.revision == "head" {
		return false, nil
	}
	h.revision = "head"
	return true, nil
}

// StorageRegistrar

func (h *fakeHost) Sync(_ context.Context, sourcesPath string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("storage.sync"); err != nil {
		return false, err
	}
	desired := h.files[sourcesPath]
	if bytes.Equal(h.registered, desired) {
		return false, nil
	}
	h.registered = append([]byte(nil), desired...)
	return true, nil
}

// ServiceManager

func (h *fakeHost) DaemonReload(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("services.daemon-reload"); err != nil {
		return err
	}
	h.daemonReloads++
	return nil
}

func (h *fakeHost) EnsureEnabled(_ context.Context, unit string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("services.enable " + unit); err != nil {
		return false, err
	}
	if h.enabled[unit] {
		return false, nil
	}
	h.enabled[unit] = true
	return true, nil
}

func (h *fakeHost) EnsureStarted(_ context.Context, unit string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("services.start " + unit); err != nil {
		return false, err
	}
	if h.active[unit] {
		return false, nil
	}
	h.active[unit] = true
	return true, nil
}

func (h *fakeHost) Restart(_ context.Context, unit string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("services.restart " + unit); err != nil {
		return err
	}
	if !h.active[unit] {
		return fmt.Errorf("unit %s is not active", unit)
	}
	h.restarts = append(h.restarts, unit)
	return nil
}

func (h *fakeHost) Reload(_ context.Context, unit string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.op("services.reload " + unit); err != nil {
		return err
	}
	if !h.active[unit] {
		return fmt.Errorf("unit %s is not active", unit)
	}
	h.reloads = append(h.reloads, unit)
	return nil
}

func (h *fakeHost) IsActive(_ context.Context, unit string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[unit], nil
}
