// Package trace prints a short console trace for every request:
//
//	GET /app.js
//	=> /home/me/site/app.js
//
// followed by a blank line. Requests that weren't served from disk print
// their status code instead of a path.
package trace

import (
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/fatih/color"
)

func New(w io.Writer, colorize bool) *Tracer {
	t := &Tracer{
		w:       w,
		method:  color.New(color.Bold),
		path:    color.New(color.FgGreen),
		success: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{t.method, t.path, t.success, t.failure} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

type Tracer struct {
	mu      sync.Mutex
	w       io.Writer
	method  *color.Color
	path    *color.Color
	success *color.Color
	failure *color.Color
}

// Log writes the trace for one request. Path is the filesystem path that
// was served, or empty.
func (t *Tracer) Log(r *http.Request, status int, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.method.Fprint(t.w, r.Method)
	io.WriteString(t.w, " "+r.URL.RequestURI()+"\n")
	switch {
	case path != "":
		t.path.Fprint(t.w, "=> "+path)
	case status >= 400:
		t.failure.Fprint(t.w, strconv.Itoa(status))
	default:
		t.success.Fprint(t.w, strconv.Itoa(status))
	}
	io.WriteString(t.w, "\n\n")
}
