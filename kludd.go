// Package kludd is a development server for static sites. It serves the files
// in a directory, lists directories without an index.html and reloads the
// browser when a file it served changes.
package kludd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/livebud/mux"
	"github.com/matthewmueller/httpbuf"
	"github.com/matthewmueller/kludd/internal/assets"
	"github.com/matthewmueller/kludd/internal/config"
	"github.com/matthewmueller/kludd/internal/notify"
	"github.com/matthewmueller/kludd/internal/reload"
	"github.com/matthewmueller/kludd/internal/resolve"
	"github.com/matthewmueller/kludd/internal/respond"
	"github.com/matthewmueller/kludd/internal/trace"
	"github.com/matthewmueller/kludd/internal/vfs"
	"github.com/matthewmueller/socket"
	"golang.org/x/sync/errgroup"
)

// New server for the configured root. Request traces are written to stdout.
func New(log *slog.Logger, stdout io.Writer, cfg *config.Config) (*Server, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("kludd: unable to resolve root %q: %w", cfg.Root, err)
	}
	fsys := vfs.OS()
	internalRoot := assets.Root
	virtual := ""
	if cfg.AssetsDir == "" {
		fsys = vfs.Mount(fsys, assets.Root, assets.FS(""))
		virtual = filepath.FromSlash(assets.Root) + string(filepath.Separator)
	} else if internalRoot, err = filepath.Abs(cfg.AssetsDir); err != nil {
		return nil, fmt.Errorf("kludd: unable to resolve assets dir %q: %w", cfg.AssetsDir, err)
	}
	reloader := reload.New(log)
	notifier, err := notify.New(log, reloader)
	if err != nil {
		return nil, err
	}
	prefix := "/" + cfg.InternalPrefix + "/"
	s := &Server{
		log:    log,
		config: cfg,
		root:   root,
		fsys:   fsys,
		resolver: &resolve.Resolver{
			Root:           root,
			InternalRoot:   internalRoot,
			InternalPrefix: cfg.InternalPrefix,
		},
		responder: &respond.Responder{
			FS:      fsys,
			Watcher: &fileWatcher{notifier, virtual},
			Log:     log,
		},
		reloader:   reloader,
		notifier:   notifier,
		tracer:     trace.New(stdout, cfg.Color),
		eventsPath: prefix + "events",
		statusPath: prefix + "status",
		scriptPath: prefix + "livereload.js",
	}
	router := mux.New()
	router.Get(s.eventsPath, reloader.ServeEvents)
	router.Get(s.statusPath, s.serveStatus)
	s.router = router
	return s, nil
}

// fileWatcher skips the embedded assets, which only exist in memory
type fileWatcher struct {
	notifier *notify.Notifier
	virtual  string
}

func (fw *fileWatcher) Watch(path string) error {
	if fw.virtual != "" && strings.HasPrefix(path, fw.virtual) {
		return nil
	}
	return fw.notifier.Watch(path)
}

// Server owns the state shared between requests: the watched files and the
// open live reload connections.
type Server struct {
	log       *slog.Logger
	config    *config.Config
	root      string
	fsys      vfs.FS
	resolver  *resolve.Resolver
	responder *respond.Responder
	reloader  *reload.Reloader
	notifier  *notify.Notifier
	tracer    *trace.Tracer
	router    http.Handler

	eventsPath string
	statusPath string
	scriptPath string
}

var _ http.Handler = (*Server)(nil)

// ServeHTTP answers websocket upgrades, the internal routes and everything
// else from the served directory.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if reload.IsUpgrade(r) {
		if err := s.reloader.Upgrade(w, r); err != nil {
			s.log.Debug("kludd: upgrade failed", "url", r.URL.String(), "error", err)
		}
		return
	}
	switch r.URL.Path {
	case s.eventsPath, s.statusPath:
		s.router.ServeHTTP(w, r)
		return
	}
	s.serveContent(w, r)
}

func (s *Server) serveContent(w http.ResponseWriter, r *http.Request) {
	// Buffer the response so the script can be injected into it
	rw := httpbuf.Wrap(w)
	outcome, panicked := s.dispatchSafely(rw, r)
	if panicked {
		// Drop whatever was written before the panic
		rw = httpbuf.Wrap(w)
		outcome = respond.ServerError(rw, outcome.Err)
	}
	if s.config.Inject && strings.HasPrefix(rw.Header().Get("Content-Type"), "text/html") {
		if body, ok := rewrite(rw.Body, s.scriptPath); ok {
			rw.Body = body
			noCache(rw.Header(), len(body))
		}
	}
	rw.Flush()
	s.tracer.Log(r, outcome.Status, outcome.Path)
	if outcome.Err != nil {
		s.log.Debug("kludd: request failed", "method", r.Method, "url", r.URL.String(), "status", outcome.Status, "error", outcome.Err)
	}
}

func (s *Server) dispatchSafely(w http.ResponseWriter, r *http.Request) (outcome respond.Outcome, panicked bool) {
	defer func() {
		if v := recover(); v != nil {
			s.log.Error("kludd: panic while serving", "url", r.URL.String(), "panic", v)
			outcome = respond.Outcome{Err: fmt.Errorf("kludd: panic serving %s: %v", r.URL.Path, v)}
			panicked = true
		}
	}()
	return s.dispatch(w, r), false
}

type status struct {
	Watched     int `json:"watched"`
	Connections int `json:"connections"`
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status{
		Watched:     s.notifier.Len(),
		Connections: s.reloader.Connections(),
	})
}

// Watching reports whether a change watch is installed on the path
func (s *Server) Watching(path string) bool {
	return s.notifier.Watching(path)
}

// Connections returns the number of open live reload connections
func (s *Server) Connections() int {
	return s.reloader.Connections()
}

// Watch reloads browsers when files change until the context is canceled
func (s *Server) Watch(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.notifier.Run(ctx)
	})
	if s.config.WatchAll {
		eg.Go(func() error {
			return s.notifier.WatchTree(ctx, s.root)
		})
	}
	return eg.Wait()
}

// ListenAndServe serves and watches until the context is canceled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.Watch(ctx)
	})
	eg.Go(func() error {
		s.log.Info("kludd: serving", "root", s.root, "address", addr)
		return socket.ListenAndServe(ctx, addr, s)
	})
	return eg.Wait()
}

// Close removes every file watch
func (s *Server) Close() error {
	return s.notifier.Close()
}
