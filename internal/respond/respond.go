// Package respond writes the responses kludd can produce: file contents,
// directory listings, redirects and the plain-text error pages.
package respond

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/matthewmueller/kludd/internal/vfs"
)

// Outcome records how a request was answered
type Outcome struct {
	Status int
	// Path is the filesystem path that was served. Empty for redirects and
	// errors.
	Path string
	Err  error
}

// Watcher is notified of every file that gets served
type Watcher interface {
	Watch(path string) error
}

// Responder serves files and directories from a filesystem
type Responder struct {
	FS      vfs.FS
	Watcher Watcher
	Log     *slog.Logger
}

// File reads the whole file into memory and writes it with the given content
// type. Any read error becomes a 404.
func (rs *Responder) File(w http.ResponseWriter, path, contentType string) Outcome {
	data, err := rs.FS.ReadFile(path)
	if err != nil {
		return NotFound(w, classify(err))
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	if rs.Watcher != nil {
		if err := rs.Watcher.Watch(path); err != nil {
			rs.Log.Debug("respond: unable to watch file", "path", path, "error", err)
		}
	}
	return Outcome{Status: http.StatusOK, Path: path}
}

// Directory lists the directory at path. Listings are only served at urls
// ending in a slash, other urls are redirected there first.
func (rs *Responder) Directory(w http.ResponseWriter, dirURL, path string) Outcome {
	entries, err := rs.FS.ReadDir(path)
	if err != nil {
		return NotFound(w, classify(err))
	}
	if dirURL == "" || dirURL[len(dirURL)-1] != '/' {
		return Redirect(w, dirURL+"/")
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	page := listing(dirURL, names)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(page)))
	w.WriteHeader(http.StatusOK)
	w.Write(page)
	return Outcome{Status: http.StatusOK, Path: path}
}

// Redirect sends a 302 to the unescaped path with an empty body. Leading
// slashes are collapsed so the location can't be read as another host.
func Redirect(w http.ResponseWriter, to string) Outcome {
	if strings.HasPrefix(to, "//") {
		to = "/" + strings.TrimLeft(to, "/")
	}
	location := (&url.URL{Path: to}).EscapedPath()
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
	return Outcome{Status: http.StatusFound}
}

// NotFound writes a plain 404. The error is only kept for logging.
func NotFound(w http.ResponseWriter, err error) Outcome {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not found"))
	return Outcome{Status: http.StatusNotFound, Err: err}
}

// ServerError writes a plain 500. The error is only kept for logging.
func ServerError(w http.ResponseWriter, err error) Outcome {
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("Server error"))
	return Outcome{Status: http.StatusInternalServerError, Err: err}
}
