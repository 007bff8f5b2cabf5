package harvest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/internal/fetch"
	"github.com/law-makers/harvest/internal/metrics"
	"github.com/law-makers/harvest/pkg/models"
)

func TestRunner_EndToEndDedupsRepeatedLinks(t *testing.T) {
	browser := &fakeBrowser{
		listings: map[string][][]string{
			"https://maps.test/list": {{"a", "b"}, {"c"}, {"a", "d"}},
		},
		cookies: map[string]string{"NID": "abc"},
	}

	var sawCookie atomic.Int64
	f := &fakeFetcher{fn: func(_ context.Context, req fetch.Request, _ int) (*fetch.Response, error) {
		if v, ok := req.Cookies.Get("NID"); ok && v == "abc" {
			sawCookie.Add(1)
		}
		return &fetch.Response{StatusCode: 200, Body: []byte(req.URL)}, nil
	}}
	m := metrics.New()
	runner := NewRunner(browser, NewRetryExecutor(f, titleExtractor{}, fastRetry(5)), m, Options{})

	results, err := runner.Run(context.Background(), "https://maps.test/list")
	require.NoError(t, err)

	require.Len(t, results, 4)
	for _, key := range []string{"a", "b", "c", "d"} {
		entry, ok := results[key]
		require.True(t, ok, key)
		require.True(t, entry.OK(), key)
		assert.Equal(t, "T-"+key, entry.Place.Name)
		assert.Equal(t, 1, entry.Attempts)
	}
	assert.Equal(t, int64(4), f.calls.Load())
	assert.Equal(t, int64(4), sawCookie.Load())
	assert.Equal(t, 2, browser.advances)
}

func TestRunner_PreloadedCookiesReachWorkers(t *testing.T) {
	browser := &fakeBrowser{listings: map[string][][]string{"u": {{"a"}}}}
	var got models.Cookies
	f := &fakeFetcher{fn: func(_ context.Context, req fetch.Request, _ int) (*fetch.Response, error) {
		got = req.Cookies
		return &fetch.Response{Body: []byte("a")}, nil
	}}
	runner := NewRunner(browser, NewRetryExecutor(f, titleExtractor{}, fastRetry(1)), nil, Options{
		Concurrency: 1,
		Preload:     models.NewCookies(map[string]string{"SID": "saved"}),
	})

	_, err := runner.Run(context.Background(), "u")
	require.NoError(t, err)
	v, _ := got.Get("SID")
	assert.Equal(t, "saved", v)
}

func TestRunner_FailedItemsAreEnumerable(t *testing.T) {
	browser := &fakeBrowser{listings: map[string][][]string{"u": {{"good", "bad"}}}}
	f := &fakeFetcher{fn: func(_ context.Context, req fetch.Request, _ int) (*fetch.Response, error) {
		if req.URL == "bad" {
			return nil, transientErr(req.URL)
		}
		return &fetch.Response{Body: []byte(req.URL)}, nil
	}}
	runner := NewRunner(browser, NewRetryExecutor(f, titleExtractor{}, fastRetry(3)), nil, Options{})

	results, err := runner.Run(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, results.Failed())
	assert.Equal(t, []string{"good"}, results.Succeeded())
	assert.Equal(t, 3, results["bad"].Attempts)
}

func TestRunner_NavigationFailure(t *testing.T) {
	browser := &fakeBrowser{failNav: true}
	runner := NewRunner(browser, NewRetryExecutor(echoFetcher(), titleExtractor{}, fastRetry(1)), nil, Options{})

	results, err := runner.Run(context.Background(), "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigate")
	assert.Empty(t, results)
}

func TestRunner_CancelUnblocksDrainWithPartialResults(t *testing.T) {
	browser := &fakeBrowser{listings: map[string][][]string{"u": {{"slow"}}}}
	started := make(chan struct{})
	f := &fakeFetcher{fn: func(ctx context.Context, _ fetch.Request, _ int) (*fetch.Response, error) {
		close(started)
		<-ctx.Done()
		// Keep the worker busy past the cancellation so Drain has to give up
		time.Sleep(50 * time.Millisecond)
		return nil, ctx.Err()
	}}
	runner := NewRunner(browser, NewRetryExecutor(f, titleExtractor{}, fastRetry(5)), nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	results, err := runner.Run(ctx, "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDrainInterrupted))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}

func TestRunner_RunQueriesMergesResults(t *testing.T) {
	base := "https://maps.test/search"
	browser := &fakeBrowser{listings: map[string][][]string{
		base + "/cafes+in+pune": {{"a", "b"}},
		base + "/bakeries+pune": {{"b", "c"}},
	}}
	runner := NewRunner(browser, NewRetryExecutor(echoFetcher(), titleExtractor{}, fastRetry(1)), nil, Options{})

	results, err := runner.RunQueries(context.Background(), base, []string{"cafes in pune", "bakeries pune"})
	require.NoError(t, err)

	assert.Equal(t, []string{base + "/cafes+in+pune", base + "/bakeries+pune"}, browser.navigated)
	assert.Equal(t, []string{"a", "b", "c"}, results.Keys())
	assert.Equal(t, "cafes in pune", results["b"].Query)
	assert.Equal(t, "bakeries pune", results["c"].Query)
}

func TestRunner_RunQueriesEmptyListing(t *testing.T) {
	browser := &fakeBrowser{listings: map[string][][]string{
		"https://maps.test/search/ok": {{"a"}},
	}}
	runner := NewRunner(browser, NewRetryExecutor(echoFetcher(), titleExtractor{}, fastRetry(1)), nil, Options{})

	// "empty" has no listing: discovery sees no links and stops on idle rounds
	results, err := runner.RunQueries(context.Background(), "https://maps.test/search", []string{"empty", "ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, results.Keys())
}

func TestRunner_RunQueriesLaterSuccessReplacesFailure(t *testing.T) {
	base := "https://maps.test/search"
	browser := &fakeBrowser{listings: map[string][][]string{
		base + "/q1": {{"b"}},
		base + "/q2": {{"b"}},
	}}
	f := &fakeFetcher{fn: func(_ context.Context, req fetch.Request, call int) (*fetch.Response, error) {
		if call == 1 {
			return nil, transientErr(req.URL)
		}
		return &fetch.Response{StatusCode: 200, Body: []byte(req.URL)}, nil
	}}
	runner := NewRunner(browser, NewRetryExecutor(f, titleExtractor{}, fastRetry(1)), nil, Options{})

	results, err := runner.RunQueries(context.Background(), base, []string{"q1", "q2"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, f.calls.Load())
	require.True(t, results["b"].OK(), "b succeeded in the second query")
	assert.Equal(t, "T-b", results["b"].Place.Name)
	assert.Equal(t, "q2", results["b"].Query)
	assert.Empty(t, results.Failed())
}
