// Package main is the entry point for the NexusMena portal server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (config.yaml, .env, NEXUSMENA_* env vars)
// 2. Create the logger from it
// 3. Build and start the server
//
// All actual logic lives in internal/ packages.
//
// USAGE:
//
//	go run ./cmd/server                      # config.yaml in ./ or ./config, if any
//	go run ./cmd/server -config prod.yaml
//	NEXUSMENA_SERVER_PORT=9000 GEMINI_API_KEY=... go run ./cmd/server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/nexusmena/internal/config"
	"github.com/sakif/nexusmena/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	// Nothing is logged yet: the log level and format come from the config.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// text for a terminal, json for log shippers (logging.format)
	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
