package harvest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/law-makers/harvest/internal/fetch"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/pkg/models"
)

// fastRetry keeps retry tests quick
func fastRetry(attempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

// fakeFetcher delegates to fn and counts calls
type fakeFetcher struct {
	calls atomic.Int64
	fn    func(ctx context.Context, req fetch.Request, call int) (*fetch.Response, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.Response, error) {
	n := int(f.calls.Add(1))
	return f.fn(ctx, req, n)
}

// echoFetcher returns the link itself as the body
func echoFetcher() *fakeFetcher {
	return &fakeFetcher{fn: func(_ context.Context, req fetch.Request, _ int) (*fetch.Response, error) {
		return &fetch.Response{URL: req.URL, StatusCode: 200, Body: []byte(req.URL)}, nil
	}}
}

func transientErr(url string) error {
	return &fetch.Error{Kind: fetch.KindTransient, URL: url, StatusCode: 503, Err: errors.New("service unavailable")}
}

// titleExtractor names every place "T-" + body
type titleExtractor struct{}

func (titleExtractor) Extract(body []byte) (models.Place, error) {
	return models.Place{Name: "T-" + string(body)}, nil
}

// fakeExtractor delegates to fn
type fakeExtractor struct {
	fn func(body []byte) (models.Place, error)
}

func (f fakeExtractor) Extract(body []byte) (models.Place, error) {
	return f.fn(body)
}

// executorFunc adapts a function to Executor
type executorFunc func(ctx context.Context, item models.WorkItem) models.ResultEntry

func (f executorFunc) Execute(ctx context.Context, item models.WorkItem) models.ResultEntry {
	return f(ctx, item)
}

func okEntry(item models.WorkItem) models.ResultEntry {
	return models.ResultEntry{
		Key:      item.Key,
		Link:     item.Link,
		Place:    &models.Place{Name: "T-" + item.Key},
		Attempts: 1,
	}
}

// fakeSource replays batches of links. Once the last batch has been
// extracted it keeps returning that batch; the end marker appears after
// endAfter extractions (0 = never).
type fakeSource struct {
	batches  [][]string
	endAfter int

	extracted int
	advances  int
	failAt    int // ExtractLinks fails on this extraction (1-based), 0 = never
}

func (s *fakeSource) ExtractLinks(context.Context) ([]string, error) {
	s.extracted++
	if s.failAt > 0 && s.extracted == s.failAt {
		return nil, errors.New("feed element detached")
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	i := s.extracted - 1
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func (s *fakeSource) Advance(context.Context) error {
	s.advances++
	return nil
}

func (s *fakeSource) HasReachedEnd(context.Context) (bool, error) {
	return s.endAfter > 0 && s.extracted >= s.endAfter, nil
}

// fakeBrowser serves a fakeSource per navigated URL
type fakeBrowser struct {
	mu        sync.Mutex
	listings  map[string][][]string
	cookies   map[string]string
	navigated []string
	preloaded models.Cookies
	failNav   bool

	*fakeSource
}

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNav {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	b.navigated = append(b.navigated, url)
	batches := b.listings[url]
	b.fakeSource = &fakeSource{batches: batches, endAfter: len(batches)}
	return nil
}

func (b *fakeBrowser) AcceptConsent(context.Context) error {
	return nil
}

func (b *fakeBrowser) Cookies(context.Context) (models.Cookies, error) {
	m := make(map[string]string, len(b.cookies))
	for k, v := range b.cookies {
		m[k] = v
	}
	for _, name := range b.preloaded.Names() {
		v, _ := b.preloaded.Get(name)
		m[name] = v
	}
	return models.NewCookies(m), nil
}

func (b *fakeBrowser) SetCookies(_ context.Context, c models.Cookies) error {
	b.preloaded = c
	return nil
}
