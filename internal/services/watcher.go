package services

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports configuration drift: the file on disk changed after the
// last convergence. It only raises a flag; triggering a run stays with the
// operator.
type Watcher struct {
	path string
	fw   *fsnotify.Watcher
	log  *zap.SugaredLogger

	mu         sync.Mutex
	dirty      bool
	modifiedAt time.Time

	done chan struct{}
}

// NewWatcher watches the configuration file at path. The parent directory
// is watched rather than the file itself: editors and provisioning tools
// replace files by rename, which would silently detach a file watch.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path: filepath.Clean(path),
		fw:   fw,
		log:  zap.S().Named("watcher"),
		done: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Dirty reports whether the configuration changed on disk since the last
// MarkClean, and when.
func (w *Watcher) Dirty() (bool, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty, w.modifiedAt
}

// MarkClean clears the drift flag. Called when a run picks up the current
// file contents.
func (w *Watcher) MarkClean() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = false
}

func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.modifiedAt = time.Now().UTC()
			w.mu.Unlock()
			w.log.Infow("configuration changed on disk", "path", w.path, "op", event.Op.String())
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Errorw("configuration watch error", "error", err)
		}
	}
}
