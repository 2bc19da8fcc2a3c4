package main

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/okian/footfall/internal/adapters/http/api"
	"github.com/okian/footfall/internal/adapters/http/swagger"
	"github.com/okian/footfall/internal/adapters/repository"
	service "github.com/okian/footfall/internal/app"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// newHTTPServer builds the read API and docs routes over store and svc.
func newHTTPServer(ctx context.Context, addr string, store repository.Store, svc *service.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(store, svc).Register(ctx, mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startHTTPServer listens in the background. Listen failures land on the
// returned channel.
func startHTTPServer(ctx context.Context, srv *http.Server) <-chan error {
	errc := make(chan error, 1)
	go func() {
		logger.Get().Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

func shutdownHTTPServer(ctx context.Context, srv *http.Server) {
	log := logger.Get()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return
	}
	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater updates process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// startServiceMetricsUpdater mirrors the writer queue depth into metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service, capacity int) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, ok := svc.GetStats()["queueLength"].(int); ok {
				metrics.UpdateQueueSize(n, capacity)
			}
		}
	}
}
