// Package reload hot-swaps the live policy tables when the config file
// changes on disk. A config that fails to parse or validate is rejected and
// the running tables stay untouched.
package reload

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/denylist"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
)

// debounceDefault is how long after the last write before a reload fires.
const debounceDefault = 500 * time.Millisecond

// Apply installs a freshly validated config into the running components.
type Apply func(cfg *config.Config) error

// ApplyTo returns an Apply that swaps the activity thresholds and the
// text denylist.
func ApplyTo(monitor *activity.Monitor, dispatcher *dispatch.Dispatcher) Apply {
	return func(cfg *config.Config) error {
		if err := monitor.SetThresholds(cfg.Activity.Thresholds); err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		// An absent denylist section means the built-in patterns, never an
		// empty list.
		if len(cfg.Denylist.Substrings) == 0 && len(cfg.Denylist.Regex) == 0 {
			dispatcher.SetDenylist(denylist.NewDefault())
		} else {
			dispatcher.SetDenylist(denylist.New(cfg.Denylist))
		}
		return nil
	}
}

// Reloader watches the config file for changes and triggers hot-reload.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	apply    Apply
	debounce time.Duration
	log      *logrus.Entry
}

// NewReloader creates a file watcher for the config path. The file must
// already exist; a control plane running on pure defaults has nothing to
// watch.
func NewReloader(path string, apply Apply, log *logrus.Logger) (*Reloader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not watchable: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &Reloader{
		watcher:  watcher,
		path:     path,
		apply:    apply,
		debounce: debounceDefault,
		log:      log.WithField("component", "reload"),
	}, nil
}

// Run watches for file changes and reloads config. Blocks until ctx is
// cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Warn("file watcher error")
		}
	}
}

// reload parses, validates, and applies the config. Any failure leaves the
// running tables as they were.
func (r *Reloader) reload() {
	cfg, err := config.Load(r.path)
	if err != nil {
		r.log.WithError(err).Warn("hot-reload rejected, keeping previous config")
		return
	}
	if err := r.apply(cfg); err != nil {
		r.log.WithError(err).Warn("hot-reload apply failed, keeping previous config")
		return
	}
	r.log.Info("config hot-reloaded")
}
