package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livefeeds/feedwatch/internal/config"
	"github.com/livefeeds/feedwatch/internal/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	interval := flag.Duration("interval", 0, "tick interval; 0 runs a single tick and exits")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("feedwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"entities", len(cfg.Entities),
		"data_dir", cfg.DataDir,
		"rss_dir", cfg.RSS.Dir,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r, err := runner.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "err", err)
		os.Exit(1)
	}

	if *interval <= 0 {
		if err := r.Tick(ctx); err != nil {
			slog.Error("tick failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// Daemon mode: hot-reload config between ticks.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config hot-reloaded", "entities", len(updated.Entities))
			r.UpdateConfig(updated)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	if err := r.Tick(ctx); err != nil {
		slog.Error("tick failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("feedwatch shutting down")
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				slog.Error("tick failed", "err", err)
			}
		}
	}
}
