package harvest

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/pkg/models"
)

const (
	// DefaultWorkers is the pool size used when none is configured
	DefaultWorkers = 5
	// MaxWorkers caps the pool to avoid overwhelming the target
	MaxWorkers = 50
)

// Executor turns one work item into its terminal entry. Execute must not
// return until the entry is final; the pool records whatever it returns.
type Executor interface {
	Execute(ctx context.Context, item models.WorkItem) models.ResultEntry
}

// Pool runs a fixed number of workers that pull items from a collector,
// execute them and record the outcome
type Pool struct {
	size      int
	executor  Executor
	collector *Collector

	once sync.Once
	wg   sync.WaitGroup
}

// NewPool creates a pool of size workers, clamped to [1, MaxWorkers].
// A size of 0 or less selects DefaultWorkers.
func NewPool(size int, executor Executor, collector *Collector) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	if size > MaxWorkers {
		size = MaxWorkers
	}
	return &Pool{
		size:      size,
		executor:  executor,
		collector: collector,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Calling it again has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for w := 1; w <= p.size; w++ {
			p.wg.Add(1)
			go p.worker(ctx, w)
		}
		log.Debug().Int("workers", p.size).Msg("Worker pool started")
	})
}

// Wait blocks until every worker has exited. Workers exit once the
// collector is closed and its queue is empty, or when ctx ends.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Debug().Int("worker_id", id).Msg("Worker started")

	for {
		item, ok, err := p.collector.Next(ctx)
		if err != nil {
			log.Debug().Int("worker_id", id).Err(err).Msg("Worker cancelled")
			return
		}
		if !ok {
			break
		}

		log.Debug().
			Int("worker_id", id).
			Str("key", item.Key).
			Msg("Worker processing item")

		entry := p.executor.Execute(ctx, item)
		entry.Key = item.Key
		if err := p.collector.Record(entry); err != nil {
			log.Error().
				Int("worker_id", id).
				Str("key", item.Key).
				Err(err).
				Msg("Failed to record result")
		}
	}

	log.Debug().Int("worker_id", id).Msg("Worker finished")
}
