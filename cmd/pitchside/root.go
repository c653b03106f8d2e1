package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/pitchside/internal/api"
	"github.com/hyperengineering/pitchside/internal/config"
	"github.com/hyperengineering/pitchside/internal/media"
	"github.com/hyperengineering/pitchside/internal/metrics"
	"github.com/hyperengineering/pitchside/internal/observability"
	"github.com/hyperengineering/pitchside/internal/session"
	"github.com/hyperengineering/pitchside/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pitchside",
	Short: "Pitchside - athlete training and metrics service",
	Long: "Pitchside serves the coaching REST API: rosters, routines, live exercise\n" +
		"sessions and derived athlete metrics. Run without a subcommand to start the server.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize tracing
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return err
	}
	slog.Info("tracing initialized", "exporter", cfg.Tracing.Exporter)

	// 5. Initialize store (migrations)
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "driver", cfg.Database.Driver)

	// 6. Initialize media storage
	blobs, err := media.NewStore(cfg.Media)
	if err != nil {
		db.Close()
		return err
	}
	slog.Info("media initialized", "enabled", blobs.Enabled())

	// 7. Domain services
	engine := metrics.NewEngine(db)
	tracker := session.NewTracker(db, session.WithLocation(cfg.Schedule.Location()))
	slog.Info("services initialized", "timezone", cfg.Schedule.Timezone)

	// 8. Initialize HTTP router
	handler := api.NewHandler(db, engine, tracker, blobs, cfg.Media, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler, api.WithCORSOrigins(cfg.Server.CORSOrigins))
	slog.Info("router initialized")

	// 9. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 10. Background workers
	var wg sync.WaitGroup
	if interval := time.Duration(cfg.Worker.StaleSessionInterval); interval > 0 {
		reaper := worker.NewStaleSessionWorker(tracker, interval, cfg.Worker.StaleSessionActor)
		startWorker(ctx, &wg, "stale-sessions", reaper.Run)
	}

	// 11. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 12. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 13. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 13a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 13b. Wait for workers to complete
	wg.Wait()

	// 13c. Flush spans
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}

	// 13d. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger. Format "text" selects the
// human-readable handler, anything else JSON.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
