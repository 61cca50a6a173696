// Command server runs the snippet vault HTTP API.
//
// main only reads configuration, builds the logger and optional sandbox, and
// hands everything to internal/server. All behaviour lives in internal/.
//
//	server -config config.yaml
//	CONFIG_PATH=config.yaml server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/executor/docker"
	"github.com/sakif/snippet-vault/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// "data/snippets.db" needs data/ to exist
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []server.Option
	if cfg.Executor.Enabled {
		exec, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			// the API is still useful without code execution
			logger.Warn("Docker executor unavailable, running snippets is disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer exec.Close()
			opts = append(opts, server.WithExecutor(exec))
		}
	}

	srv, err := server.New(ctx, cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start(ctx)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts)), nil
}
