// Package notify watches served files and reloads browsers when they change.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/livebud/watcher"
)

// Reloader is told which path changed
type Reloader interface {
	Reload(ctx context.Context, path string) int
}

// New creates a notifier backed by fsnotify. Call Run to start handling
// change events.
func New(log *slog.Logger, reloader Reloader) (*Notifier, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notify: unable to create watcher: %w", err)
	}
	return newNotifier(log, reloader, fw.Add, fw.Close, fw.Events, fw.Errors), nil
}

func newNotifier(log *slog.Logger, reloader Reloader, add func(string) error, close func() error, events <-chan fsnotify.Event, errors <-chan error) *Notifier {
	return &Notifier{
		log:      log,
		reloader: reloader,
		watched:  map[string]struct{}{},
		add:      add,
		close:    close,
		events:   events,
		errors:   errors,
	}
}

// Notifier keeps the set of watched paths. The set only grows: a path is
// watched at most once and never unwatched. Paths whose watch couldn't be
// installed stay out of the set.
type Notifier struct {
	log      *slog.Logger
	reloader Reloader

	mu      sync.Mutex
	watched map[string]struct{}

	add    func(string) error
	close  func() error
	events <-chan fsnotify.Event
	errors <-chan error
}

// Watch installs a change watch on path unless it already has one
func (n *Notifier) Watch(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.watched[path]; ok {
		return nil
	}
	if err := n.add(path); err != nil {
		return fmt.Errorf("notify: unable to watch %q: %w", path, err)
	}
	n.watched[path] = struct{}{}
	n.log.Debug("notify: watching", "path", path)
	return nil
}

// Watching reports whether path is in the watched set
func (n *Notifier) Watching(path string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.watched[path]
	return ok
}

// Len returns the size of the watched set
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watched)
}

// Run reloads on every change event until the context is canceled
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-n.events:
			if !ok {
				return nil
			}
			n.log.Info("notify: file changed", "path", event.Name, "op", event.Op.String())
			n.reloader.Reload(ctx, event.Name)
		case err, ok := <-n.errors:
			if !ok {
				return nil
			}
			n.log.Error("notify: watcher error", "error", err)
		}
	}
}

// Close stops watching every path
func (n *Notifier) Close() error {
	return n.close()
}

// WatchTree watches everything under dir, not just the files that have been
// served. Each batch of changes reloads once.
func (n *Notifier) WatchTree(ctx context.Context, dir string) error {
	return watcher.Watch(ctx, dir, func(events []watcher.Event) error {
		var data bytes.Buffer
		for i, event := range events {
			n.log.Debug("notify: got event", "event", event)
			if i > 0 {
				data.WriteString(";")
			}
			data.WriteString(event.String())
		}
		n.log.Info("notify: tree changed", "dir", dir, "events", data.String())
		n.reloader.Reload(ctx, data.String())
		return nil
	})
}
