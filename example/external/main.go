package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/livebud/mux"
	"github.com/matthewmueller/kludd"
	"github.com/matthewmueller/kludd/internal/config"
	"github.com/matthewmueller/socket"
	"golang.org/x/sync/errgroup"
)

// The app on :3000 pulls the live reload script from kludd on :7000. Any
// change under example/external/public reloads the about page.
func main() {
	ctx := context.Background()
	log := slog.Default()
	cfg := config.Default("example/external/public")
	cfg.WatchAll = true
	lr, err := kludd.New(log, os.Stdout, cfg)
	if err != nil {
		log.Error("Error creating server", "error", err)
		return
	}
	defer lr.Close()
	router := mux.New()
	router.Get("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><h1>About</h1><script src="http://localhost:7000/_kludd/livereload.js"></script></body></html>`)
	})
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("kludd started at http://localhost:7000")
		return lr.ListenAndServe(ctx, cfg.Address())
	})
	eg.Go(func() error {
		log.Info("App started at http://localhost:3000/about")
		return socket.ListenAndServe(ctx, ":3000", router)
	})
	if err := eg.Wait(); err != nil {
		log.Error("Error in server", "error", err)
		return
	}
}
