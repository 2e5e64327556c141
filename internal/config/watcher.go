package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lwestin/taskhive/pkg/models"
)

// RegisterFunc receives agents parsed from the roster. Implementations
// decide what to do with entries that are already registered.
type RegisterFunc func(*models.Agent) error

// RosterWatcher hot-loads agents added to the roster file while the
// orchestrator is running. Editors typically replace the file on save,
// so the parent directory is watched and events are filtered by name.
type RosterWatcher struct {
	path     string
	register RegisterFunc

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// WatchRoster starts watching the roster file and calls register for
// every agent parsed after each change. The initial roster load is the
// caller's job; the watcher only reacts to subsequent writes.
func WatchRoster(path string, register RegisterFunc) (*RosterWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating roster watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching roster directory: %w", err)
	}

	rw := &RosterWatcher{
		path:     path,
		register: register,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go rw.watch()

	return rw, nil
}

// watch reloads the roster on every write or create of the roster file.
func (rw *RosterWatcher) watch() {
	for {
		select {
		case <-rw.done:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rw.reload()
		case <-rw.watcher.Errors:
			// Keep watching; a missed event is recovered on the next write.
		}
	}
}

// reload parses the roster and offers every agent to the register
// callback. Parse errors are swallowed: a half-written file will fire
// another event once the write completes.
func (rw *RosterWatcher) reload() {
	agents, err := LoadRoster(rw.path)
	if err != nil {
		return
	}
	for _, agent := range agents {
		rw.register(agent)
	}
}

// Close stops the watcher. Safe to call more than once.
func (rw *RosterWatcher) Close() {
	rw.once.Do(func() {
		close(rw.done)
		rw.watcher.Close()
	})
}
