package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slipstream/aria2d/internal/api"
	"github.com/slipstream/aria2d/internal/config"
	"github.com/slipstream/aria2d/internal/engine"
	"github.com/slipstream/aria2d/internal/logger"
	"github.com/slipstream/aria2d/internal/scheduler"
	"github.com/slipstream/aria2d/internal/websocket"
)

const (
	startTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().Str("logLevel", cfg.Logging.Level).Msg("starting aria2d")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log.WithComponent("websocket"))
	go hub.Run()

	startCtx, cancelStart := context.WithTimeout(ctx, startTimeout)
	manager, err := engine.Start(startCtx, engine.Options{
		BinDir:         cfg.Engine.BinDir,
		Executable:     cfg.Engine.Executable,
		OnNotification: engine.NotificationForwarder(hub, log.WithComponent("events")),
		Logger:         log.WithComponent("aria2"),
	})
	cancelStart()
	if err != nil {
		hub.Stop()
		log.Error().Err(err).Msg("failed to start download engine")
		log.Close()
		os.Exit(1)
	}

	sched, err := scheduler.New(log.WithComponent("scheduler"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if cfg.Engine.StatsCron != "" {
		if err := sched.RegisterTask(scheduler.TaskConfig{
			ID:      "global-stat",
			Name:    "Global download stats",
			Cron:    cfg.Engine.StatsCron,
			Timeout: 5 * time.Second,
			Func:    engine.StatsPoller(manager, hub),
		}); err != nil {
			log.Error().Err(err).Str("cron", cfg.Engine.StatsCron).Msg("failed to register stats poller")
		}
	}
	sched.Start()

	server := api.NewServer(manager, hub, log.WithComponent("api"))
	server.RegisterTasks(sched)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Address())
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	hub.Stop()
	manager.Shutdown(shutdownCtx)

	log.Info().Msg("aria2d stopped")
}
