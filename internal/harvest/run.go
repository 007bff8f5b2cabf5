package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/metrics"
	"github.com/law-makers/harvest/internal/reqctx"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// Browser is the single-owner session that renders the listing
type Browser interface {
	LinkSource
	Navigate(ctx context.Context, url string) error
	AcceptConsent(ctx context.Context) error
	Cookies(ctx context.Context) (models.Cookies, error)
	SetCookies(ctx context.Context, cookies models.Cookies) error
}

// Options tunes one Runner
type Options struct {
	Concurrency   int
	QueueCapacity int
	MaxIdleRounds int
	MaxRounds     int

	// Preload is applied to the browser before the cookie snapshot is taken
	Preload models.Cookies
	// Observer receives collector stats; see WithObserver
	Observer func(models.Stats)
}

// Runner wires a browser, a worker pool and a collector into one harvest
type Runner struct {
	browser  Browser
	executor Executor
	metrics  *metrics.Metrics
	opts     Options
}

// NewRunner creates a runner. m may be nil.
func NewRunner(browser Browser, executor Executor, m *metrics.Metrics, opts Options) *Runner {
	return &Runner{
		browser:  browser,
		executor: executor,
		metrics:  m,
		opts:     opts,
	}
}

// Run harvests every item reachable from the listing at startURL
func (r *Runner) Run(ctx context.Context, startURL string) (models.Results, error) {
	return r.run(ctx, startURL, "")
}

// RunQueries harvests the search listing of each query in turn and merges
// the results. A failed query does not stop the others unless ctx ended.
func (r *Runner) RunQueries(ctx context.Context, baseURL string, queries []string) (models.Results, error) {
	merged := make(models.Results)
	var errs []error
	for _, q := range queries {
		results, err := r.run(ctx, urlutil.SearchURL(baseURL, q), q)
		merged.Merge(results)
		if err != nil {
			errs = append(errs, fmt.Errorf("query %q: %w", q, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return merged, errors.Join(errs...)
}

func (r *Runner) run(ctx context.Context, startURL, query string) (models.Results, error) {
	ctx = reqctx.WithRun(ctx, query)
	logger := reqctx.Logger(ctx, log.Logger)
	start := time.Now()

	logger.Info().Str("url", startURL).Msg("Starting harvest")

	if err := r.browser.Navigate(ctx, startURL); err != nil {
		return models.Results{}, reqctx.NewRunError(ctx, fmt.Errorf("navigate: %w", err))
	}
	if err := r.browser.AcceptConsent(ctx); err != nil {
		logger.Warn().Err(err).Msg("Consent prompt not handled")
	}
	if r.opts.Preload.Len() > 0 {
		if err := r.browser.SetCookies(ctx, r.opts.Preload); err != nil {
			logger.Warn().Err(err).Msg("Failed to preload session cookies")
		}
	}

	cookies, err := r.browser.Cookies(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read browser cookies, fetching without them")
		cookies = models.NewCookies(nil)
	}

	collector := NewCollector(
		WithQueueCapacity(r.opts.QueueCapacity),
		WithMetrics(r.metrics),
		WithObserver(r.opts.Observer),
	)
	pool := NewPool(r.opts.Concurrency, r.executor, collector)
	pool.Start(ctx)

	discovery := &Discovery{
		Source:        r.browser,
		Collector:     collector,
		Metrics:       r.metrics,
		Cookies:       cookies,
		Query:         query,
		MaxIdleRounds: r.opts.MaxIdleRounds,
		MaxRounds:     r.opts.MaxRounds,
	}
	rounds, discErr := discovery.Run(ctx)
	if discErr != nil {
		logger.Error().Err(discErr).Int("rounds", rounds).Msg("Discovery stopped early, draining submitted work")
	}

	results, drainErr := collector.Drain(ctx)
	pool.Wait()

	stats := collector.Stats()
	logger.Info().
		Int("rounds", rounds).
		Int("submitted", stats.Submitted).
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("Harvest finished")

	if err := errors.Join(discErr, drainErr); err != nil {
		return results, reqctx.NewRunError(ctx, err)
	}
	return results, nil
}
