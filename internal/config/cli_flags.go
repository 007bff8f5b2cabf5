package config

import "github.com/spf13/cobra"

// RegisterFlags registers the settings every command shares on the root
// command. Defaults shown in help come from defaults.go; Load only honours
// flags the user actually set, so config files and env still apply.
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", DefaultJSONLog, "Write logs as JSON")
	pf.String("config", "", "Path to configuration file (default ./harvest.yaml or ~/.harvest/harvest.yaml)")

	pf.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent item workers")
	pf.Int("queue-capacity", DefaultQueueCapacity, "Bound the work queue (0 = unbounded)")
	pf.Int("idle-rounds", DefaultMaxIdleRounds, "Stop scrolling after this many rounds without new links")
	pf.Int("max-rounds", DefaultMaxRounds, "Cap the number of scroll rounds (0 = no cap)")

	pf.Int("max-attempts", DefaultMaxAttempts, "Attempts per item before it is marked failed")
	pf.String("backoff", DefaultBackoffPolicy, "Backoff policy between attempts: fixed or exponential")
	pf.Duration("backoff-base", DefaultBackoffBase, "Base delay between attempts")
	pf.Duration("backoff-max", DefaultBackoffMax, "Maximum delay between attempts")
	pf.Bool("jitter", false, "Randomise backoff delays")

	pf.Duration("timeout", DefaultFetchTimeout, "Timeout for each item fetch")
	pf.String("user-agent", "", "Custom user agent string")
	pf.String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	pf.Float64("rate-limit", DefaultRateLimitRPS, "Max item requests per second per host (0 = unlimited)")
	pf.Int("rate-burst", DefaultRateLimitBurst, "Burst size for --rate-limit")

	pf.String("chrome-path", "", "Path to the Chrome/Chromium executable")
	pf.Bool("headless", DefaultBrowserHeadless, "Run the browser without a window")
	pf.Duration("scroll-settle", DefaultScrollSettle, "Wait after each scroll for results to render")
	pf.Duration("feed-timeout", DefaultFeedTimeout, "Wait for the result feed after navigation")
	pf.String("search-url", DefaultSearchURL, "Base URL that --query terms are appended to")

	pf.Duration("cache-ttl", DefaultCacheTTL, "How long harvested records are reused within a run")
	pf.Int("cache-entries", DefaultCacheMaxEntries, "Maximum cached records")
	pf.Duration("session-ttl", DefaultSessionTTL, "Lifetime of cookie snapshots saved with --save-session")
}
