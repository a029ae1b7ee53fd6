package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"HistPull/internal/di"
	"HistPull/internal/domain/models"
	"HistPull/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	serve := flag.Bool("serve", false, "run the admin API instead of a single batch (also server.enabled)")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "app initialization failed: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve || cfg.Server.Enabled {
		if err := app.Serve(ctx); err != nil {
			return 1
		}
		return 0
	}

	// Task failures are in the report and logged; only a failed login is fatal.
	if _, err := app.RunBatch(ctx); err != nil {
		var ce *models.ConnectionError
		if !errors.As(err, &ce) {
			fmt.Fprintf(os.Stderr, "download failed: %v\n", err)
		}
		return 1
	}
	return 0
}
