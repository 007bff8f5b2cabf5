package harvest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/metrics"
	"github.com/law-makers/harvest/internal/queue"
	"github.com/law-makers/harvest/pkg/models"
)

// Collector accepts work items from the discovery loop, hands them to
// workers through a queue and gathers one terminal entry per item.
//
// A Collector is single use: Submit any number of batches, Close once,
// then Drain.
type Collector struct {
	queue    *queue.Queue
	metrics  *metrics.Metrics
	observer func(models.Stats)

	// submitMu orders Submit against Close so a batch that returned before
	// Close is fully counted when the completion check runs
	submitMu sync.Mutex

	mu        sync.Mutex
	seen      map[string]struct{}
	results   models.Results
	submitted int
	completed int
	failed    int
	closed    bool
	draining  bool
	finished  bool
	done      chan struct{}
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithQueueCapacity bounds the work queue. Submit blocks while it is full.
func WithQueueCapacity(n int) CollectorOption {
	return func(c *Collector) {
		c.queue = queue.New(n)
	}
}

// WithMetrics records submissions and results on m
func WithMetrics(m *metrics.Metrics) CollectorOption {
	return func(c *Collector) {
		c.metrics = m
	}
}

// WithObserver registers fn to receive a stats snapshot after every state
// change. fn may be called from several goroutines at once.
func WithObserver(fn func(models.Stats)) CollectorOption {
	return func(c *Collector) {
		c.observer = fn
	}
}

// NewCollector creates an open, empty collector
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		queue:   queue.New(0),
		seen:    make(map[string]struct{}),
		results: make(models.Results),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues every item whose key has not been seen before, including
// keys repeated within items. Items without a key are keyed by their link.
// It returns the number of items accepted.
func (c *Collector) Submit(ctx context.Context, items []models.WorkItem) (int, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Error().Int("items", len(items)).Msg("Submit called on a closed collector")
		return 0, programmerError(ErrSubmitAfterClose, fmt.Sprintf("%d items dropped", len(items)))
	}

	fresh := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if item.Key == "" {
			item.Key = item.Link
		}
		if _, dup := c.seen[item.Key]; dup {
			continue
		}
		c.seen[item.Key] = struct{}{}
		fresh = append(fresh, item)
	}
	c.submitted += len(fresh)
	stats := c.statsLocked()
	c.mu.Unlock()

	c.metrics.ObserveSubmit(len(fresh), len(items)-len(fresh))
	c.notify(stats)

	if len(fresh) == 0 {
		return 0, nil
	}

	pushed, err := c.queue.Push(ctx, fresh...)
	if err != nil {
		// Forget the items that never reached a worker so they can be
		// submitted again and do not hold Drain open
		c.mu.Lock()
		for _, item := range fresh[pushed:] {
			delete(c.seen, item.Key)
		}
		c.submitted -= len(fresh) - pushed
		c.finishIfDoneLocked()
		stats = c.statsLocked()
		c.mu.Unlock()
		c.notify(stats)

		return pushed, fmt.Errorf("submit %d items: %w", len(fresh), err)
	}

	log.Debug().
		Int("accepted", len(fresh)).
		Int("duplicates", len(items)-len(fresh)).
		Int("queued", c.queue.Len()).
		Int("submitted", stats.Submitted).
		Msg("Submitted work items")

	return len(fresh), nil
}

// Record stores the terminal entry for a submitted key
func (c *Collector) Record(entry models.ResultEntry) error {
	c.mu.Lock()
	if _, ok := c.seen[entry.Key]; !ok {
		c.mu.Unlock()
		log.Error().Str("key", entry.Key).Msg("Result recorded for unknown key")
		return programmerError(ErrUnknownKey, entry.Key)
	}
	if _, ok := c.results[entry.Key]; ok {
		c.mu.Unlock()
		log.Error().Str("key", entry.Key).Msg("Result recorded twice")
		return programmerError(ErrDuplicateResult, entry.Key)
	}

	c.results[entry.Key] = entry
	c.completed++
	if !entry.OK() {
		c.failed++
	}
	c.finishIfDoneLocked()
	stats := c.statsLocked()
	c.mu.Unlock()

	c.metrics.ObserveResult(entry)
	c.notify(stats)
	return nil
}

// Close marks the end of submissions. Workers stop once the queue is empty.
func (c *Collector) Close() error {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Error().Msg("Collector closed twice")
		return programmerError(ErrAlreadyClosed, "close called again")
	}
	c.closed = true
	c.finishIfDoneLocked()
	stats := c.statsLocked()
	c.mu.Unlock()

	c.queue.Close()
	c.notify(stats)

	log.Debug().
		Int("submitted", stats.Submitted).
		Int("pending", stats.Pending()).
		Msg("Collector closed")
	return nil
}

// Drain blocks until the collector is closed and every submitted item has a
// result. If ctx ends first it returns the entries recorded so far together
// with an error matching ErrDrainInterrupted and the context error.
func (c *Collector) Drain(ctx context.Context) (models.Results, error) {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return nil, programmerError(ErrDrainInProgress, "concurrent drain")
	}
	c.draining = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.draining = false
		c.mu.Unlock()
	}()

	select {
	case <-c.done:
		return c.Results(), nil
	default:
	}

	select {
	case <-c.done:
		return c.Results(), nil
	case <-ctx.Done():
		partial := c.Results()
		stats := c.Stats()
		log.Warn().
			Int("completed", stats.Completed).
			Int("pending", stats.Pending()).
			Err(ctx.Err()).
			Msg("Drain interrupted, returning partial results")
		return partial, NewError(ErrCodeCanceled, ErrDrainInterrupted.Message, ctx.Err())
	}
}

// Next blocks until a work item is available. ok is false once the
// collector is closed and every queued item has been handed out.
func (c *Collector) Next(ctx context.Context) (item models.WorkItem, ok bool, err error) {
	return c.queue.Pop(ctx)
}

// Stats returns a snapshot of the counters
func (c *Collector) Stats() models.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// Results returns a copy of the entries recorded so far
func (c *Collector) Results() models.Results {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(models.Results, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

func (c *Collector) statsLocked() models.Stats {
	return models.Stats{
		Submitted: c.submitted,
		Completed: c.completed,
		Failed:    c.failed,
		Closed:    c.closed,
	}
}

// finishIfDoneLocked must be called with mu held
func (c *Collector) finishIfDoneLocked() {
	if c.finished || !c.closed || c.completed != c.submitted {
		return
	}
	c.finished = true
	close(c.done)
}

func (c *Collector) notify(s models.Stats) {
	c.metrics.ObserveStats(s)
	if c.observer != nil {
		c.observer(s)
	}
}
