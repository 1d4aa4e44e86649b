package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/matthewmueller/kludd"
	"github.com/matthewmueller/kludd/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.Default("example/public")
	cfg.Port = 3000
	server, err := kludd.New(slog.Default(), os.Stdout, cfg)
	if err != nil {
		slog.Error("Error creating server", "error", err)
		return
	}
	defer server.Close()
	fmt.Println("Server started at http://localhost:3000")
	if err := server.ListenAndServe(ctx, cfg.Address()); err != nil {
		slog.Error("Error in server", "error", err)
		return
	}
}
