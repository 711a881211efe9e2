package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/taikai/internal/adapters/broadcast"
	"github.com/okian/taikai/internal/adapters/http/api"
	"github.com/okian/taikai/internal/adapters/http/site"
	"github.com/okian/taikai/internal/adapters/storage"
	app "github.com/okian/taikai/internal/app"
	"github.com/okian/taikai/internal/config"
	"github.com/okian/taikai/pkg/logger"
	"github.com/okian/taikai/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't configured yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "startup failed", logger.Error(err))
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		a.close(ctx)
		log.Error(ctx, "listen failed", logger.String("addr", cfg.Addr), logger.Error(err))
		os.Exit(1)
	}

	if err := a.serve(ctx, ln); err != nil {
		log.Error(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "server stopped")
}

// application owns the storage backend, the service and the HTTP handler.
type application struct {
	backend storage.Backend
	svc     *app.Service
	handler http.Handler
	logger  logger.Logger
}

func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	backend, err := storage.Open(ctx, cfg.Storage())
	if err != nil {
		return nil, err
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithBackend(cfg.StorageBackend, backend),
		app.WithQueueSize(cfg.QueueSize),
		app.WithPublishBuffer(cfg.PublishBuffer),
		app.WithAutoRecompute(cfg.AutoRecompute),
		app.WithUnknownTeamPolicy(cfg.Policy()),
	)
	if err := svc.Start(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	metrics.UpdateQueueCapacity(cfg.QueueSize)

	opts := []api.Option{
		api.WithWebsocket(broadcast.NewWSHandler(svc.Hub(), cfg.CORSOrigins, cfg.SubscriberBuffer)),
		api.WithCORSOrigins(cfg.CORSOrigins),
	}
	if cfg.StaticDir != "" {
		static, err := site.Handler(cfg.StaticDir)
		if err != nil {
			svc.Stop()
			_ = backend.Close()
			return nil, err
		}
		opts = append(opts, api.WithStatic(static))
	}

	return &application{
		backend: backend,
		svc:     svc,
		handler: api.NewServer(svc, svc, opts...).Handler(),
		logger:  log,
	}, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then drains
// pending mutations and closes the backend.
func (a *application) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info(gctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		a.close(shutdownCtx)
		return nil
	})
	return g.Wait()
}

func (a *application) close(ctx context.Context) {
	a.svc.Stop()
	if err := a.backend.Close(); err != nil {
		a.logger.Warn(ctx, "closing storage", logger.Error(err))
	}
}

// startSystemMetricsUpdater periodically refreshes process metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average pause since process start
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
