package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vkuzn/apigw/internal/observability"
)

// Watcher watches the configuration file and reports changes. The route set
// is fixed for the process lifetime, so a change only means an operator
// needs to restart the gateway; the callback receives the re-parsed config
// for diffing or logging.
type Watcher struct {
	path          string
	watcher       *fsnotify.Watcher
	onChange      func(*Config)
	logger        observability.Logger
	debounceDelay time.Duration
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounceDelay sets the debounce delay for file change events.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		watcher:       fsWatcher,
		onChange:      onChange,
		logger:        observability.NopLogger(),
		debounceDelay: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start watches until the context is cancelled. Editors replace files on
// save, so the parent directory is watched rather than the file itself.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounceDelay, w.handleChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
		}
	}
}

func (w *Watcher) handleChange() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config file changed but failed to load",
			observability.String("path", w.path),
			observability.Error(err),
		)
		return
	}

	w.logger.Warn("config file changed on disk, restart required to apply",
		observability.String("path", w.path),
	)

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
