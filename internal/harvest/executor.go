package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/cache"
	"github.com/law-makers/harvest/internal/fetch"
	"github.com/law-makers/harvest/internal/metrics"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/pkg/models"
)

// Fetcher retrieves an item page
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Extractor turns a fetched page into a place record
type Extractor interface {
	Extract(body []byte) (models.Place, error)
}

var (
	errExtraction = &Error{Code: ErrCodeExtraction}
	errPermanent  = &Error{Code: ErrCodePermanent}
)

// RetryExecutor runs fetch-then-extract for one item, retrying the whole
// pair until it succeeds or the retry budget is spent
type RetryExecutor struct {
	fetcher   Fetcher
	extractor Extractor
	retry     retry.Config

	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	timeout  time.Duration
	headers  map[string]string
}

// ExecutorOption configures a RetryExecutor
type ExecutorOption func(*RetryExecutor)

// WithCache serves repeated keys from c and stores new records for ttl
func WithCache(c cache.Cache, ttl time.Duration) ExecutorOption {
	return func(e *RetryExecutor) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithExecutorMetrics records per-attempt outcomes on m
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *RetryExecutor) {
		e.metrics = m
	}
}

// WithFetchTimeout overrides the fetcher's per-request timeout
func WithFetchTimeout(d time.Duration) ExecutorOption {
	return func(e *RetryExecutor) {
		e.timeout = d
	}
}

// WithRequestHeaders adds headers to every item fetch
func WithRequestHeaders(h map[string]string) ExecutorOption {
	return func(e *RetryExecutor) {
		e.headers = h
	}
}

// NewRetryExecutor creates an executor. A zero MaxAttempts in cfg selects
// the retry package defaults.
func NewRetryExecutor(f Fetcher, x Extractor, cfg retry.Config, opts ...ExecutorOption) *RetryExecutor {
	if cfg.MaxAttempts <= 0 {
		cfg = retry.DefaultConfig()
	}
	e := &RetryExecutor{
		fetcher:   f,
		extractor: x,
		retry:     cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements Executor. It never panics and always returns an entry
// holding either a place or a failure marker.
func (e *RetryExecutor) Execute(ctx context.Context, item models.WorkItem) (entry models.ResultEntry) {
	start := time.Now()
	entry = models.ResultEntry{
		Key:   item.Key,
		Link:  item.Link,
		Query: item.Query,
	}
	defer func() {
		entry.Duration = time.Since(start)
		entry.CompletedAt = time.Now()
	}()

	if e.cache != nil {
		if place, ok := e.cache.Get(item.Key); ok {
			e.metrics.ObserveAttempt(metrics.OutcomeCached)
			entry.Place = &place
			return entry
		}
	}

	var place models.Place
	attempts, err := retry.Do(ctx, e.retry, func(attempt int) error {
		p, err := e.attempt(ctx, item)
		e.metrics.ObserveAttempt(attemptOutcome(err))
		if err != nil {
			log.Debug().
				Str("key", item.Key).
				Int("attempt", attempt).
				Err(err).
				Msg("Attempt failed")
			return err
		}
		place = p
		return nil
	})
	entry.Attempts = attempts

	if err == nil {
		entry.Place = &place
		if e.cache != nil {
			e.cache.Set(item.Key, place, e.cacheTTL)
		}
		return entry
	}

	kind := failureKind(ctx, err)
	entry.Failure = &models.Failure{Kind: kind, Reason: err.Error()}
	log.Warn().
		Str("key", item.Key).
		Str("link", item.Link).
		Int("attempts", attempts).
		Str("kind", string(kind)).
		Err(err).
		Msg("Item failed")
	return entry
}

// attempt runs one fetch and extract. A panic in either step is reported as
// a permanent failure of this attempt.
func (e *RetryExecutor) attempt(ctx context.Context, item models.WorkItem) (place models.Place, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrCodePermanent, "panic during attempt", fmt.Errorf("%v", r))
		}
	}()

	resp, err := e.fetcher.Fetch(ctx, fetch.Request{
		URL:     item.Link,
		Cookies: item.Cookies,
		Headers: e.headers,
		Timeout: e.timeout,
	})
	if err != nil {
		return models.Place{}, err
	}
	e.metrics.ObserveFetch(resp.Duration.Seconds())

	place, err = e.extractor.Extract(resp.Body)
	if err != nil {
		return models.Place{}, NewError(ErrCodeExtraction, "extract "+item.Link, err)
	}
	return place, nil
}

func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, errExtraction):
		return metrics.OutcomeExtraction
	case errors.Is(err, errPermanent):
		return metrics.OutcomePermanent
	case fetch.KindOf(err) == fetch.KindPermanent:
		return metrics.OutcomePermanent
	default:
		return metrics.OutcomeTransient
	}
}

// failureKind classifies the last error of an exhausted item
func failureKind(ctx context.Context, err error) models.FailureKind {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return models.FailureCanceled
	}
	switch attemptOutcome(err) {
	case metrics.OutcomeExtraction:
		return models.FailureExtraction
	case metrics.OutcomePermanent:
		return models.FailurePermanent
	default:
		return models.FailureTransient
	}
}
