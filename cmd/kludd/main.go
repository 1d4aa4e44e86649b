// Command kludd serves the current directory and reloads the browser when a
// served file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/matthewmueller/kludd"
	"github.com/matthewmueller/kludd/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("kludd: exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "host to listen on")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	flag.StringVar(&cfg.Root, "root", cfg.Root, "directory to serve")
	flag.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "serve internal assets from this directory instead of the bundled copy")
	flag.BoolVar(&cfg.Inject, "inject", cfg.Inject, "inject the live reload script into HTML pages")
	flag.BoolVar(&cfg.AllowEscape, "allow-escape", cfg.AllowEscape, "allow request paths to resolve outside of the root")
	flag.BoolVar(&cfg.WatchAll, "watch-all", cfg.WatchAll, "watch every file under the root, not just served files")
	flag.BoolVar(&cfg.Color, "color", cfg.Color, "colorize request traces")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if color.NoColor {
		cfg.Color = false
	}

	server, err := kludd.New(log, os.Stdout, cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("http://localhost:%d/\n", cfg.Port)
	if err := server.ListenAndServe(ctx, cfg.Address()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
