package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/kiosk/internal/api"
	"github.com/your-org/kiosk/internal/api/ws"
	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/bus"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/control"
	"github.com/your-org/kiosk/internal/match"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/presence"
	"github.com/your-org/kiosk/internal/report"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/internal/terminal"
	"github.com/your-org/kiosk/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance terminal",
		"backend", cfg.Backend.URL,
		"device", cfg.Camera.Device,
	)

	loc, err := time.LoadLocation(cfg.Presence.Timezone)
	if err != nil {
		slog.Error("load timezone", "timezone", cfg.Presence.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize ONNX Runtime and the encoder
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	encoder, err := vision.NewONNXEncoder(cfg.Vision.ModelsDir, float32(cfg.Vision.DetectionThreshold))
	if err != nil {
		slog.Error("init encoder", "error", err)
		os.Exit(1)
	}
	defer encoder.Close()

	client := backend.New(cfg.Backend)

	// Roster cache: seed once, then refresh periodically. A failed first
	// fetch is tolerated; the terminal starts with an empty snapshot and
	// retries on schedule.
	rosterCache := roster.NewCache(client)
	if err := rosterCache.Refresh(context.Background()); err != nil {
		slog.Warn("initial roster fetch failed, starting with empty roster", "error", err)
	}

	table := presence.NewTable(presence.Config{
		DebounceWindow: cfg.Presence.DebounceWindow,
		MinVisible:     *cfg.Presence.MinVisible,
		Location:       loc,
	})

	reporter := report.New(client, report.Options{
		MaxAttempts:   cfg.Reporter.MaxAttempts,
		BaseBackoff:   cfg.Reporter.BaseBackoff,
		QueueCapacity: cfg.Reporter.QueueCapacity,
	})
	rosterCache.OnRefreshSuccess(reporter.Flush)

	poller := control.NewPoller(client, cfg.Control.PollInterval)

	hub := ws.NewHub()
	go hub.Run()

	// Optional NATS bus
	var b *bus.Bus
	if cfg.NATS.URL != "" {
		b, err = bus.Connect(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, continuing without bus", "error", err)
		} else {
			defer b.Close()
			if err := b.SubscribeRosterRefresh(rosterCache.TriggerRefresh); err != nil {
				slog.Warn("subscribe roster refresh", "error", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rosterCache.Run(ctx, cfg.Roster.RefreshInterval)
	go poller.Run(ctx)
	go reporter.Run(ctx)

	// Local HTTP surface
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Backend:  client,
		Roster:   rosterCache,
		Presence: table,
		Control:  poller,
		Hub:      hub,
		Location: loc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("terminal API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	// Capture loop
	term := terminal.New(cfg.Camera, encoder, match.New(*cfg.Match.Threshold, cfg.Match.TieEpsilon),
		rosterCache, table, reporter, poller, hub, b)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- term.Run(ctx)
	}()

	// Exit on OS signal, admin shutdown command, or unrecoverable camera
	// failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("signal received, shutting down")
	case <-poller.Done():
		slog.Info("shutdown command received")
	case err := <-loopDone:
		if err != nil {
			slog.Error("capture loop failed", "error", err)
		}
	}

	cancel()

	// Flush buffered events before exit, within the grace period.
	reporter.Drain(cfg.Reporter.DrainGrace)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("terminal stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path based on the
// operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
