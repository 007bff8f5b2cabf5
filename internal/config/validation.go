package config

import (
	"fmt"

	"github.com/law-makers/harvest/internal/retry"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
)

func validate(c *Config) error {
	if c.Concurrency <= 0 || c.Concurrency > DefaultMaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", DefaultMaxConcurrency)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0")
	}
	policy, err := retry.ParsePolicy(c.BackoffPolicy)
	if err != nil {
		return err
	}
	if policy == retry.PolicyExponential && c.BackoffMax == 0 {
		return fmt.Errorf("exponential backoff needs a backoff max > 0")
	}
	if c.BackoffBase < 0 || c.BackoffMax < 0 {
		return fmt.Errorf("backoff delays must not be negative")
	}
	if c.BackoffMax > 0 && c.BackoffBase > c.BackoffMax {
		return fmt.Errorf("backoff base %s exceeds backoff max %s", c.BackoffBase, c.BackoffMax)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be > 0")
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity must be >= 0")
	}
	if c.MaxIdleRounds <= 0 {
		return fmt.Errorf("idle rounds must be > 0")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("max rounds must be >= 0")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache entries must be >= 0")
	}
	if err := urlutil.ValidateURL(c.SearchURL); err != nil {
		return fmt.Errorf("search url: %w", err)
	}
	return nil
}
