// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/browser"
	"github.com/law-makers/harvest/internal/cache"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/extract"
	"github.com/law-makers/harvest/internal/fetch"
	"github.com/law-makers/harvest/internal/harvest"
	"github.com/law-makers/harvest/internal/metrics"
	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/internal/session"
)

// cacheCleanupInterval is how often expired cache entries are swept
const cacheCleanupInterval = time.Minute

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command invocation and shared by the command's
// runs. Browsers are not owned by the Application: each run opens its own
// through NewBrowser and closes it when done. Use Close() to release the
// rest.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       *cache.MemoryCache
	RateLimiter ratelimit.RateLimiter
	HTTPClient  *http.Client
	Fetcher     *fetch.Client
	Extractor   *extract.Extractor
	Metrics     *metrics.Metrics
	Sessions    *session.Store
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the item cache shared by every query of the invocation
//   - Creates the optional per-host rate limiter
//   - Builds the pooled HTTP client and the fetch client on top of it
//   - Opens the session store (keyring, or files when no keyring exists)
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogger(cfg)

	httpClient, err := fetch.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if limiter != nil {
		logger.Debug().
			Float64("rps", cfg.RateLimitRPS).
			Int("burst", cfg.RateLimitBurst).
			Msg("Rate limiter initialized")
	}

	fetcher := fetch.New(httpClient, limiter, fetch.Options{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	})

	memCache := cache.NewMemoryCache(cfg.CacheMaxEntries, cacheCleanupInterval)
	logger.Debug().
		Int("max_entries", cfg.CacheMaxEntries).
		Dur("ttl", cfg.CacheTTL).
		Msg("Item cache initialized")

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: limiter,
		HTTPClient:  httpClient,
		Fetcher:     fetcher,
		Extractor:   extract.New(),
		Metrics:     metrics.New(),
		Sessions:    sessions,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return app, nil
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.WarnLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.JSONLog {
		w = os.Stderr
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// NewExecutor builds the retrying item executor. headers are sent with
// every item fetch on top of the client defaults.
func (a *Application) NewExecutor(headers map[string]string) *harvest.RetryExecutor {
	return harvest.NewRetryExecutor(a.Fetcher, a.Extractor, a.Config.Retry(),
		harvest.WithCache(a.Cache, a.Config.CacheTTL),
		harvest.WithExecutorMetrics(a.Metrics),
		harvest.WithFetchTimeout(a.Config.FetchTimeout),
		harvest.WithRequestHeaders(headers),
	)
}

// NewBrowser launches a browser session configured from the application
// config. The caller owns the session and must Close it.
func (a *Application) NewBrowser() (*browser.Session, error) {
	return browser.New(browser.Options{
		ChromePath:   a.Config.ChromePath,
		Headless:     a.Config.Headless,
		UserAgent:    a.Config.UserAgent,
		Proxy:        a.Config.Proxy,
		ScrollSettle: a.Config.ScrollSettle,
		FeedTimeout:  a.Config.FeedTimeout,
	})
}

// NewRunner wires a runner over b with the configured pipeline knobs.
// Preload and Observer in opts are kept; the rest come from the config.
func (a *Application) NewRunner(b harvest.Browser, exec harvest.Executor, opts harvest.Options) *harvest.Runner {
	opts.Concurrency = a.Config.Concurrency
	opts.QueueCapacity = a.Config.QueueCapacity
	opts.MaxIdleRounds = a.Config.MaxIdleRounds
	opts.MaxRounds = a.Config.MaxRounds
	return harvest.NewRunner(b, exec, a.Metrics, opts)
}

// Close releases the cache sweeper and idle connections.
func (a *Application) Close(ctx context.Context) error {
	if a.Cache != nil {
		stats := a.Cache.Stats()
		a.Logger.Debug().
			Int("entries", stats.Entries).
			Uint64("hits", stats.Hits).
			Uint64("misses", stats.Misses).
			Float64("hit_rate", stats.HitRate()).
			Msg("Item cache closed")
		a.Cache.Close()
	}

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
