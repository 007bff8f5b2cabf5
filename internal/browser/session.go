// Package browser drives the listing page in a headless Chrome through
// chromedp: navigation, the cookie consent prompt, link discovery and
// infinite scroll.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// Default selectors for a Maps-style result feed
const (
	DefaultFeedSelector = `[role="feed"]`
	DefaultLinkSelector = `[role="feed"] > div > div > a`
	DefaultEndSelector  = `p.fontBodyMedium > span > span`
	DefaultConsentText  = "Accept all"
)

const (
	// DefaultScrollSettle is how long new results get to render after a scroll
	DefaultScrollSettle = 500 * time.Millisecond
	// DefaultFeedTimeout bounds the wait for the feed after navigation
	DefaultFeedTimeout = 20 * time.Second
)

// ErrClosed is returned by every method after Close
var ErrClosed = errors.New("browser session closed")

// Selectors locate the parts of the listing page
type Selectors struct {
	Feed        string
	Links       string
	End         string
	ConsentText string
}

// DefaultSelectors returns the selectors for the default listing layout
func DefaultSelectors() Selectors {
	return Selectors{
		Feed:        DefaultFeedSelector,
		Links:       DefaultLinkSelector,
		End:         DefaultEndSelector,
		ConsentText: DefaultConsentText,
	}
}

// withDefaults fills empty selectors
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Feed == "" {
		s.Feed = d.Feed
	}
	if s.Links == "" {
		s.Links = d.Links
	}
	if s.End == "" {
		s.End = d.End
	}
	if s.ConsentText == "" {
		s.ConsentText = d.ConsentText
	}
	return s
}

// Options configures a Session
type Options struct {
	ChromePath   string
	Headless     bool
	UserAgent    string
	Proxy        string
	Selectors    Selectors
	ScrollSettle time.Duration
	FeedTimeout  time.Duration
}

// Session is one browser tab. It is not safe for concurrent use; the
// discovery loop owns it.
type Session struct {
	opts Options

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context

	mu         sync.Mutex
	closed     bool
	currentURL string
	feedReady  bool
}

// New launches a browser and opens a blank tab
func New(opts Options) (*Session, error) {
	opts.Selectors = opts.Selectors.withDefaults()
	if opts.ScrollSettle <= 0 {
		opts.ScrollSettle = DefaultScrollSettle
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = DefaultFeedTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tab, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Msg("Browser session ready")

	return &Session{
		opts:        opts,
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tab,
	}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
	}
	if path := FindChrome(opts.ChromePath); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	return allocOpts
}

// run executes actions on the tab and aborts them when ctx ends. Canceling
// the derived context stops the actions without closing the tab.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url in the tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	s.mu.Lock()
	s.currentURL = url
	s.feedReady = false
	s.mu.Unlock()

	log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Page loaded")
	return nil
}

// AcceptConsent clicks the cookie consent button if the page shows one
func (s *Session) AcceptConsent(ctx context.Context) error {
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(consentScript(s.opts.Selectors.ConsentText), &clicked)); err != nil {
		return fmt.Errorf("consent prompt: %w", err)
	}
	if !clicked {
		return nil
	}

	log.Debug().Msg("Accepted cookie consent")
	return s.run(ctx,
		chromedp.Sleep(s.opts.ScrollSettle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Cookies returns a snapshot of the cookies visible to the current page
func (s *Session) Cookies(ctx context.Context) (models.Cookies, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return models.Cookies{}, fmt.Errorf("read cookies: %w", err)
	}
	return cookiesFromNetwork(cookies), nil
}

// SetCookies installs cookies for the current page's URL
func (s *Session) SetCookies(ctx context.Context, cookies models.Cookies) error {
	s.mu.Lock()
	url := s.currentURL
	s.mu.Unlock()
	if url == "" {
		return errors.New("set cookies: no page loaded")
	}
	if cookies.Len() == 0 {
		return nil
	}
	if err := s.run(ctx, network.SetCookies(cookieParams(url, cookies))); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	log.Debug().Int("cookie_count", cookies.Len()).Msg("Session cookies installed")
	return nil
}

// ExtractLinks returns the absolute hrefs of the result links currently
// rendered in the feed. The first call after Navigate waits for the feed.
func (s *Session) ExtractLinks(ctx context.Context) ([]string, error) {
	if err := s.waitFeed(ctx); err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(s.opts.Selectors.Links, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}

	s.mu.Lock()
	base := s.currentURL
	s.mu.Unlock()

	return hrefs(base, nodes), nil
}

// ScrollToBottom scrolls the feed to its end and waits for new results to
// render
func (s *Session) ScrollToBottom(ctx context.Context) error {
	if err := s.run(ctx,
		chromedp.Evaluate(scrollScript(s.opts.Selectors.Feed), nil),
		chromedp.Sleep(s.opts.ScrollSettle),
	); err != nil {
		return fmt.Errorf("scroll feed: %w", err)
	}
	return nil
}

// Advance implements harvest.LinkSource
func (s *Session) Advance(ctx context.Context) error {
	return s.ScrollToBottom(ctx)
}

// HasReachedEnd reports whether the end-of-list marker is rendered
func (s *Session) HasReachedEnd(ctx context.Context) (bool, error) {
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(existsScript(s.opts.Selectors.End), &found)); err != nil {
		return false, fmt.Errorf("check end marker: %w", err)
	}
	return found, nil
}

// Close shuts the tab and the browser process
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.tabCancel()
	s.allocCancel()
	log.Debug().Msg("Browser session closed")
	return nil
}

func (s *Session) waitFeed(ctx context.Context) error {
	s.mu.Lock()
	ready := s.feedReady
	s.mu.Unlock()
	if ready {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.FeedTimeout)
	defer cancel()
	if err := s.run(waitCtx, chromedp.WaitVisible(s.opts.Selectors.Feed, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for feed %s: %w", s.opts.Selectors.Feed, err)
	}

	s.mu.Lock()
	s.feedReady = true
	s.mu.Unlock()
	return nil
}

func hrefs(base string, nodes []*cdp.Node) []string {
	links := make([]string, 0, len(nodes))
	for _, node := range nodes {
		href, ok := node.Attribute("href")
		if !ok || href == "" {
			continue
		}
		if resolved := urlutil.ResolveURL(base, href); resolved != "" {
			links = append(links, resolved)
		}
	}
	return links
}

func cookiesFromNetwork(cookies []*network.Cookie) models.Cookies {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		m[c.Name] = c.Value
	}
	return models.NewCookies(m)
}

func cookieParams(url string, cookies models.Cookies) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, cookies.Len())
	for _, name := range cookies.Names() {
		value, _ := cookies.Get(name)
		params = append(params, &network.CookieParam{
			Name:  name,
			Value: value,
			URL:   url,
		})
	}
	return params
}

func consentScript(text string) string {
	return `(() => {
	const want = ` + strconv.Quote(text) + `;
	const btn = Array.from(document.querySelectorAll('button, [role="button"], input[type="submit"]'))
		.find(el => (el.innerText || el.value || el.getAttribute('aria-label') || '').trim() === want);
	if (!btn) return false;
	btn.click();
	return true;
})()`
}

func scrollScript(feed string) string {
	return `(() => {
	const feed = document.querySelector(` + strconv.Quote(feed) + `);
	if (feed) feed.scrollTo(0, feed.scrollHeight);
	return !!feed;
})()`
}

func existsScript(selector string) string {
	return `document.querySelector(` + strconv.Quote(selector) + `) !== null`
}
