package dir

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports edits made to persisted files behind the device's back.
// The running engine never reloads them; the watcher only tells the operator
// that a restart is needed.
type Watcher struct {
	w      *fsnotify.Watcher
	names  map[string]struct{}
	logger *slog.Logger
	done   chan struct{}
}

func (f *FS) Watch(logger *slog.Logger, names ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", f.root, err)
	}
	if err := fw.Add(f.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", f.root, err)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &Watcher{w: fw, names: set, logger: logger, done: make(chan struct{})}, nil
}

// Run consumes events until ctx ends. onChange, when non-nil, is called with
// the base name of every watched file that was written or created.
func (w *Watcher) Run(ctx context.Context, onChange func(name string)) {
	defer close(w.done)
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if _, watched := w.names[name]; !watched {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Info("persisted file changed; restart to apply", "file", name, "op", ev.Op.String())
			if onChange != nil {
				onChange(name)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Wait blocks until Run has returned.
func (w *Watcher) Wait() { <-w.done }
