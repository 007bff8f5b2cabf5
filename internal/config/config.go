package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/law-makers/harvest/internal/retry"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Pipeline
	Concurrency   int
	QueueCapacity int
	MaxIdleRounds int
	MaxRounds     int

	// Retry
	MaxAttempts   int
	BackoffPolicy string
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BackoffJitter bool

	// HTTP
	FetchTimeout   time.Duration
	UserAgent      string
	Proxy          string
	RateLimitRPS   float64
	RateLimitBurst int

	// Browser
	ChromePath   string
	Headless     bool
	ScrollSettle time.Duration
	FeedTimeout  time.Duration
	SearchURL    string

	// Caching
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Sessions
	SessionTTL time.Duration

	// ConfigFile is the file the values were read from, if any
	ConfigFile string
}

// Retry returns the retry settings as a retry.Config
func (c *Config) Retry() retry.Config {
	policy, _ := retry.ParsePolicy(c.BackoffPolicy)
	rc := retry.DefaultConfig()
	rc.MaxAttempts = c.MaxAttempts
	rc.Policy = policy
	rc.BaseDelay = c.BackoffBase
	rc.MaxDelay = c.BackoffMax
	rc.Jitter = c.BackoffJitter
	return rc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("json", DefaultJSONLog)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("queue-capacity", DefaultQueueCapacity)
	v.SetDefault("idle-rounds", DefaultMaxIdleRounds)
	v.SetDefault("max-rounds", DefaultMaxRounds)
	v.SetDefault("max-attempts", DefaultMaxAttempts)
	v.SetDefault("backoff", DefaultBackoffPolicy)
	v.SetDefault("backoff-base", DefaultBackoffBase)
	v.SetDefault("backoff-max", DefaultBackoffMax)
	v.SetDefault("jitter", false)
	v.SetDefault("timeout", DefaultFetchTimeout)
	v.SetDefault("user-agent", DefaultUserAgent)
	v.SetDefault("rate-limit", DefaultRateLimitRPS)
	v.SetDefault("rate-burst", DefaultRateLimitBurst)
	v.SetDefault("headless", DefaultBrowserHeadless)
	v.SetDefault("scroll-settle", DefaultScrollSettle)
	v.SetDefault("feed-timeout", DefaultFeedTimeout)
	v.SetDefault("search-url", DefaultSearchURL)
	v.SetDefault("cache-ttl", DefaultCacheTTL)
	v.SetDefault("cache-entries", DefaultCacheMaxEntries)
	v.SetDefault("session-ttl", DefaultSessionTTL)
}

// Load builds a Config by layering defaults, an optional config file,
// HARVEST_* environment variables and CLI flags, in increasing priority.
// Caller should pass the command being executed so its flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix) // e.g. HARVEST_MAX_ATTEMPTS=3
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.harvest")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Using config file")
	}

	cfg := &Config{
		LogLevel:        v.GetString("log-level"),
		JSONLog:         v.GetBool("json"),
		Concurrency:     v.GetInt("concurrency"),
		QueueCapacity:   v.GetInt("queue-capacity"),
		MaxIdleRounds:   v.GetInt("idle-rounds"),
		MaxRounds:       v.GetInt("max-rounds"),
		MaxAttempts:     v.GetInt("max-attempts"),
		BackoffPolicy:   v.GetString("backoff"),
		BackoffBase:     v.GetDuration("backoff-base"),
		BackoffMax:      v.GetDuration("backoff-max"),
		BackoffJitter:   v.GetBool("jitter"),
		FetchTimeout:    v.GetDuration("timeout"),
		UserAgent:       v.GetString("user-agent"),
		Proxy:           v.GetString("proxy"),
		RateLimitRPS:    v.GetFloat64("rate-limit"),
		RateLimitBurst:  v.GetInt("rate-burst"),
		ChromePath:      v.GetString("chrome-path"),
		Headless:        v.GetBool("headless"),
		ScrollSettle:    v.GetDuration("scroll-settle"),
		FeedTimeout:     v.GetDuration("feed-timeout"),
		SearchURL:       v.GetString("search-url"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		CacheMaxEntries: v.GetInt("cache-entries"),
		SessionTTL:      v.GetDuration("session-ttl"),
		ConfigFile:      v.ConfigFileUsed(),
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	switch {
	case v.GetBool("verbose"):
		cfg.LogLevel = "debug"
	case v.GetBool("quiet"):
		cfg.LogLevel = "error"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
