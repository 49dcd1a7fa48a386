// Command server runs the course marketplace API on top of the data-access
// core: rate limiting, sessions, per-request loaders and list snapshots.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	marketplace "github.com/huykn/course-marketplace"
	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args, os.Stderr)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	cfg.Core.Logger = logger
	cfg.Core.OnError = func(err error) {
		logger.Error("background error", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memory := store.NewMemory()
	memory.Seed(cfg.Seed)

	// Blocks until Redis answers and the list snapshots are warm.
	core, err := marketplace.New(ctx, cfg.Core, memory.Store())
	if err != nil {
		return fmt.Errorf("start core: %w", err)
	}
	defer core.Close()

	memory.Courses.OnMutate = core.RefreshOnMutate(cache.CourseCacheKey)
	memory.Instructors.OnMutate = core.RefreshOnMutate(cache.InstructorCacheKey)

	srv := &server{
		core:     core,
		memory:   memory,
		logger:   logger,
		frontend: cfg.FrontendHost,
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", "addr", httpServer.Addr, "pod", cfg.Core.PodID, "version", marketplace.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg serverConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Core.DebugMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.JSONLogs {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("pod", cfg.Core.PodID)
}
