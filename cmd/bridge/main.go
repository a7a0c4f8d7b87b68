package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/fsuipc-bridge/internal/api"
	"github.com/yegors/fsuipc-bridge/internal/bridge"
	"github.com/yegors/fsuipc-bridge/internal/config"
	"github.com/yegors/fsuipc-bridge/internal/fsuipc"
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/internal/storage/sqlite"
	"github.com/yegors/fsuipc-bridge/internal/websocket"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, source, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting FSUIPC bridge",
		logger.String("version", Version),
		logger.String("config", source),
	)

	if err := run(cfg, log); err != nil {
		log.Error("Bridge stopped with error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}

	log.Info("Bridge fully stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	table, err := signals.NewTable()
	if err != nil {
		return fmt.Errorf("build signal table: %w", err)
	}
	commands := signals.NewCommandTable()

	state := simdata.New(log, simdata.WithMagVarCheck(simdata.MagVarCheck{
		Enabled:      cfg.Checks.MagVarEnabled,
		ToleranceDeg: cfg.Checks.MagVarToleranceDeg,
		Interval:     time.Duration(cfg.Checks.MagVarIntervalSecs) * time.Second,
	}))

	client := fsuipc.NewClient(fsuipc.Config{
		URL:              cfg.Simulator.URL,
		Interval:         cfg.Simulator.Interval(),
		RetryDelay:       cfg.Simulator.RetryDelay(),
		HandshakeTimeout: cfg.Simulator.HandshakeTimeout(),
		GroupName:        cfg.Simulator.GroupName,
		IncludeParking:   cfg.Brakes.IncludeParking,
		DebugMessages:    cfg.Logging.DebugMessages,
	}, table, state, log)

	// Interfaces stay nil unless the journal is enabled
	var (
		recorder bridge.CommandRecorder
		lister   api.CommandLister
	)
	if cfg.Journal.Enabled {
		journal, err := openJournal(cfg.Journal, log)
		if err != nil {
			return err
		}
		defer journal.Close()
		recorder, lister = journal, journal
	} else {
		log.Info("Command journal disabled in configuration")
	}

	caps := bridge.NewCapabilities(table, commands)

	hub := websocket.NewServer(log)
	hub.SetHandler(bridge.NewHandler(caps, commands, client, recorder, log))

	broadcaster := bridge.NewService(state, hub, cfg.Server.SendInterval(), log)

	handler := api.NewHandler(hub, client, state, caps, lister, cfg.Server.Path, log)
	router := api.NewRouter(handler, cfg.Server.Path)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Routes(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return client.Run(gctx) })

	if err := broadcaster.Start(gctx); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}

	g.Go(func() error {
		log.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
			logger.Any("websocket_paths", api.AcceptedPaths(cfg.Server.Path)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		broadcaster.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutS)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		log.Info("HTTP server shutdown complete")
		return nil
	})

	return g.Wait()
}

func openJournal(cfg config.JournalConfig, log *logger.Logger) (*sqlite.CommandStorage, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
		}
	}

	journal, err := sqlite.NewCommandStorage(cfg.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open command journal: %w", err)
	}

	if retention := cfg.Retention(); retention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := journal.Prune(ctx, time.Now().Add(-retention)); err != nil {
			log.Warn("Failed to prune command journal", logger.Error(err))
		}
	}
	return journal, nil
}
