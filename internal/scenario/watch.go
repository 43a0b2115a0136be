package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a scenario file whenever it changes on disk. Invalid
// edits are logged and the previous scenario stays in effect.
type Watcher struct {
	path     string
	onChange func(*Scenario)
	log      *slog.Logger
	fw       *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the directory holding path so that editors which save
// by rename are picked up too.
func NewWatcher(path string, onChange func(*Scenario), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scenario watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{path: path, onChange: onChange, log: log, fw: fw, debounce: defaultDebounce}, nil
}

// Run delivers reloads until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fire = time.After(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("scenario watch error", "err", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	sc, err := Load(w.path)
	if err != nil {
		w.log.Warn("scenario reload rejected", "path", w.path, "err", err)
		return
	}
	w.log.Info("scenario reloaded", "path", w.path, "name", sc.Name, "steps", len(sc.Steps))
	w.onChange(sc)
}
