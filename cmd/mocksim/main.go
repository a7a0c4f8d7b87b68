package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/fsuipc-bridge/internal/simulation"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

func main() {
	addr := flag.String("addr", "localhost:2048", "Listen address")
	path := flag.String("path", "/fsuipc/", "WebSocket path")
	lat := flag.Float64("lat", 47.4502, "Initial latitude")
	lon := flag.Float64("lon", -122.3088, "Initial longitude")
	elevation := flag.Float64("elevation", 433, "Ground elevation in feet")
	heading := flag.Float64("heading", 164, "Initial true heading")
	airborne := flag.Bool("airborne", false, "Start cruising at 3000 ft instead of parked")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	aircraft := simulation.DefaultAircraft(*lat, *lon, *elevation)
	aircraft.HeadingDeg = *heading
	if *airborne {
		aircraft.AltitudeFt = 3000
		aircraft.ParkingBrake = false
		aircraft.GearRaw = 0
		aircraft.ThrottleRaw = 12288
		aircraft.IASKts = 90
	}

	sim := simulation.NewService(aircraft, log)
	srv := simulation.NewServer(sim, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	wsPath := "/" + strings.Trim(*path, "/")
	r.Get(wsPath, srv.HandleConnection)
	if wsPath != "/" {
		r.Get(wsPath+"/", srv.HandleConnection)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Start(ctx); err != nil {
		log.Error("Failed to start simulation", logger.Error(err))
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Mock FSUIPC server listening",
			logger.String("addr", *addr),
			logger.String("path", wsPath+"/"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sim.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Mock server error", logger.Error(err))
		os.Exit(1)
	}
}
