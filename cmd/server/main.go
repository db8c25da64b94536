package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viterbi-notes/internal/backend"
	"viterbi-notes/internal/config"
	"viterbi-notes/internal/logger"
	notesServices "viterbi-notes/internal/services/notes"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 25 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Create bootstrap logger for early errors
	bootstrapLog := log.New(os.Stderr, "bootstrap: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		bootstrapLog.Printf("config load failed: %v", err)
		os.Exit(1)
	}

	logg, err := logger.Init(cfg)
	if err != nil {
		bootstrapLog.Printf("logger init failed: %v", err)
		os.Exit(1)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logg.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		logg.Warn("failed to set GOMAXPROCS", "err", err)
	}

	profiler, err := startProfiler(cfg, logg)
	if err != nil {
		logg.Warn("profiler not started", "err", err)
	}

	repo, cleanup, err := backend.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error("notes backend init", "backend", cfg.NotesBackend, "err", err)
		os.Exit(1)
	}
	logg.Info("notes backend ready", "backend", cfg.NotesBackend)

	logg.Info("starting viterbi-notes", "port", cfg.AppPort)

	svc := notesServices.NewService(repo, logg)
	app := setupRouter(cfg, svc)
	portStr := fmt.Sprintf(":%d", cfg.AppPort)

	g.Go(func() error {
		err := app.Listen(portStr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		if profiler != nil {
			if err := profiler.Stop(); err != nil {
				logg.Warn("profiler stop", "err", err)
			}
		}
		return cleanup(shutdownCtx)
	})

	// Wait and exit
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("fatal", "err", err)
		os.Exit(1)
	}
	logg.Info("graceful shutdown complete")
}

// startProfiler starts continuous profiling when PYROSCOPE_SERVER_ADDRESS
// is set. It returns a nil profiler otherwise.
func startProfiler(cfg config.Config, logg *slog.Logger) (*pyroscope.Profiler, error) {
	if cfg.PyroscopeAddr == "" {
		return nil, nil
	}
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "viterbi-notes",
		ServerAddress:   cfg.PyroscopeAddr,
		Tags:            map[string]string{"backend": cfg.NotesBackend},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, err
	}
	logg.Info("profiling enabled", "server", cfg.PyroscopeAddr)
	return p, nil
}
