// Package cache keeps extracted place records in memory so a link seen
// again within one process (another query, a re-run of the same listing)
// is not fetched twice.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/pkg/models"
)

// DefaultTTL applies when Set is given a non-positive ttl
const DefaultTTL = 30 * time.Minute

// Cache stores place records by work item key.
type Cache interface {
	// Get returns the record for key if present and not expired
	Get(key string) (models.Place, bool)

	// Set stores place under key, replacing any existing record
	Set(key string, place models.Place, ttl time.Duration)

	// Close stops background cleanup
	Close()
}

type entry struct {
	key       string
	place     models.Place
	expiresAt time.Time
}

// Stats summarises cache usage
type Stats struct {
	Entries    int
	MaxEntries int
	Hits       uint64
	Misses     uint64
}

// HitRate returns hits as a percentage of lookups
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// MemoryCache is an LRU cache bounded by entry count
type MemoryCache struct {
	mu         sync.Mutex
	store      map[string]*list.Element
	lru        *list.List // front is most recently used
	maxEntries int
	hits       uint64
	misses     uint64
	now        func() time.Time

	cancel context.CancelFunc
}

// NewMemoryCache creates a cache holding at most maxEntries records and
// starts a goroutine that drops expired records every cleanupEvery.
// A cleanupEvery of 0 disables the goroutine; expired records are then
// only dropped on lookup.
func NewMemoryCache(maxEntries int, cleanupEvery time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		store:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
		cancel:     cancel,
	}
	if cleanupEvery > 0 {
		go mc.cleanupLoop(ctx, cleanupEvery)
	}
	return mc
}

// Get implements Cache
func (mc *MemoryCache) Get(key string) (models.Place, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.store[key]
	if !ok {
		mc.misses++
		return models.Place{}, false
	}
	e := el.Value.(*entry)
	if mc.now().After(e.expiresAt) {
		mc.removeElement(el)
		mc.misses++
		return models.Place{}, false
	}

	mc.lru.MoveToFront(el)
	mc.hits++
	log.Debug().Str("key", key).Msg("Cache hit")
	return e.place, true
}

// Set implements Cache
func (mc *MemoryCache) Set(key string, place models.Place, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	expiresAt := mc.now().Add(ttl)
	if el, ok := mc.store[key]; ok {
		e := el.Value.(*entry)
		e.place = place
		e.expiresAt = expiresAt
		mc.lru.MoveToFront(el)
		return
	}

	for mc.lru.Len() >= mc.maxEntries {
		oldest := mc.lru.Back()
		if oldest == nil {
			break
		}
		log.Debug().Str("key", oldest.Value.(*entry).key).Msg("Evicted from cache (LRU)")
		mc.removeElement(oldest)
	}

	mc.store[key] = mc.lru.PushFront(&entry{key: key, place: place, expiresAt: expiresAt})
}

// Stats returns a usage snapshot
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return Stats{
		Entries:    mc.lru.Len(),
		MaxEntries: mc.maxEntries,
		Hits:       mc.hits,
		Misses:     mc.misses,
	}
}

// Close implements Cache
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// removeElement must be called with mu held
func (mc *MemoryCache) removeElement(el *list.Element) {
	mc.lru.Remove(el)
	delete(mc.store, el.Value.(*entry).key)
}

func (mc *MemoryCache) purgeExpired() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	removed := 0
	var next *list.Element
	for el := mc.lru.Front(); el != nil; el = next {
		next = el.Next()
		if now.After(el.Value.(*entry).expiresAt) {
			mc.removeElement(el)
			removed++
		}
	}
	return removed
}

func (mc *MemoryCache) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := mc.purgeExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("Purged expired cache entries")
			}
		case <-ctx.Done():
			log.Debug().Msg("Cache cleanup routine stopped")
			return
		}
	}
}
