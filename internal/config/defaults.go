package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel        = "info"
	DefaultJSONLog         = false
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultConcurrency     = 5
	DefaultMaxConcurrency  = 50
	DefaultMaxAttempts     = 5
	DefaultBackoffPolicy   = "fixed"
	DefaultBackoffBase     = 500 * time.Millisecond
	DefaultBackoffMax      = 30 * time.Second
	DefaultFetchTimeout    = 12 * time.Second
	DefaultQueueCapacity   = 0 // unbounded
	DefaultMaxIdleRounds   = 3
	DefaultMaxRounds       = 0 // no cap
	DefaultRateLimitRPS    = 0.0
	DefaultRateLimitBurst  = 5
	DefaultBrowserHeadless = true
	DefaultScrollSettle    = 500 * time.Millisecond
	DefaultFeedTimeout     = 20 * time.Second
	DefaultCacheTTL        = 30 * time.Minute
	DefaultCacheMaxEntries = 10000
	DefaultSearchURL       = "https://www.google.com/maps/search/"
	DefaultSessionTTL      = 7 * 24 * time.Hour
	EnvPrefix              = "HARVEST"
	ConfigName             = "harvest"
)
