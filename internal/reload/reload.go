// Package reload tells browsers to reload. Browsers either hold a websocket
// open that gets closed on change, or subscribe to server-sent events.
package reload

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/livebud/sse"
)

// Event is a server-sent event (SSE) sent to subscribed browsers
type Event = sse.Event

// How long a reload waits on slow event subscribers
const publishTimeout = 2 * time.Second

func New(log *slog.Logger) *Reloader {
	return &Reloader{log, &Pool{}, sse.New(log)}
}

type Reloader struct {
	log  *slog.Logger
	pool *Pool
	sse  *sse.Handler
}

// ServeEvents streams reload events to an EventSource
func (r *Reloader) ServeEvents(w http.ResponseWriter, req *http.Request) {
	r.sse.ServeHTTP(w, req)
}

// Connections returns the number of open websocket connections
func (r *Reloader) Connections() int {
	return r.pool.Len()
}

// Reload closes every open websocket and publishes a reload event for the
// changed path. Returns the number of websockets closed.
func (r *Reloader) Reload(ctx context.Context, path string) int {
	closed := r.pool.Invalidate()
	r.log.Debug("reload: closed connections", "path", path, "closed", closed)
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err := r.sse.Publish(ctx, &Event{
		Type: "reload",
		Data: []byte(path),
	})
	if err != nil {
		r.log.Error("reload: failed to publish", "error", err, "path", path)
	}
	return closed
}
