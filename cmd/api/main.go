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

	"github.com/justinas/alice"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harliandi/go-pngquant/internal/cache"
	"github.com/harliandi/go-pngquant/internal/compressor"
	"github.com/harliandi/go-pngquant/internal/config"
	"github.com/harliandi/go-pngquant/internal/handler"
	"github.com/harliandi/go-pngquant/internal/middleware"
	"github.com/harliandi/go-pngquant/pkg/metrics"
	"github.com/harliandi/go-pngquant/pkg/quality"
)

const (
	shutdownTimeout    = 30 * time.Second
	cachePruneInterval = 10 * time.Minute
)

func main() {
	setupLogger(false)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", tint.Err(err))
		os.Exit(1)
	}
	setupLogger(cfg.Debug)
	cfg.Log()

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to start", tint.Err(err))
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if a.cache != nil {
		go a.pruneCache(ctx, cachePruneInterval)
	}

	// Timeouts guard against slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting PNG compression API", "addr", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", tint.Err(err))
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", tint.Err(err))
		}
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})))
}

// app holds everything the server needs that must be shut down.
type app struct {
	handler http.Handler
	pool    *compressor.WorkerPool
	limiter *middleware.RateLimiter
	cache   *cache.DiskCache
}

func newApp(cfg *config.Config) (*app, error) {
	defaults, err := defaultOptions(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{}
	opts := []compressor.Option{compressor.WithMaxFileSize(cfg.MaxUploadBytes())}
	if cfg.Cache.Dir != "" {
		if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		a.cache = cache.New(cfg.Cache.Dir,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithMaxSize(cfg.CacheMaxBytes()))
		opts = append(opts, compressor.WithCache(a.cache))
	}

	a.pool = compressor.NewWorkerPool(compressor.New(opts...), cfg.WorkerCount)
	a.pool.Start()
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	concurrency := middleware.NewConcurrencyLimiter(cfg.MaxConcurrent)

	h := handler.New(a.pool, defaults, cfg.MaxUploadBytes(), cfg.BusyRetries)

	// Outermost first. Probes and metrics skip the limits.
	base := alice.New(middleware.Security, middleware.Logger, middleware.Recovery)
	limited := base.Append(a.limiter.Handler, concurrency.Handler)

	mux := http.NewServeMux()
	mux.Handle("/compress", limited.ThenFunc(h.Compress))
	mux.Handle("/health", base.ThenFunc(h.Health))
	mux.Handle("/metrics", promhttp.Handler())
	a.handler = mux
	return a, nil
}

// defaultOptions builds the per-request defaults from the configuration.
func defaultOptions(cfg *config.Config) (compressor.Options, error) {
	o := compressor.DefaultOptions()
	r, err := quality.ParseRange(cfg.Compression.Quality)
	if err != nil {
		return o, fmt.Errorf("default quality: %w", err)
	}
	o = o.WithQuality(r.Min, r.Max).WithDither(*cfg.Compression.Dither)
	if cfg.Compression.Speed != 0 {
		o = o.WithSpeed(cfg.Compression.Speed)
	}
	if cfg.Compression.Colors != 0 {
		o = o.WithColors(cfg.Compression.Colors)
	}
	if err := o.Params().Validate(); err != nil {
		return o, fmt.Errorf("default compression options: %w", err)
	}
	return o, nil
}

func (a *app) pruneCache(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		size, err := a.cache.Prune()
		if err != nil {
			slog.Warn("cache prune failed", tint.Err(err))
		}
		metrics.UpdateCacheBytes(size)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops background work. Queued jobs are finished first.
func (a *app) Close() {
	a.limiter.Stop()
	a.pool.Stop()
}
