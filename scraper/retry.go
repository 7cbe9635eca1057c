package scraper

import (
	"time"

	"github.com/marketgrab/go-scrape-wildberries/config"
)

// RetryPolicy bounds retries for a single page fetch. MaxAttempts counts the
// initial attempt, so MaxAttempts=3 means at most two retries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	BackoffMax  time.Duration
}

// PolicyFromConfig derives the retry policy from run configuration.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxRetries + 1,
		Backoff:     cfg.RetryBackoff,
		BackoffMax:  cfg.RetryBackoffMax,
	}
}

// Delay returns the wait before the given retry (1-based), doubling each time
// and capped at BackoffMax.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry <= 0 {
		retry = 1
	}

	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(retry-1))
	if max := p.BackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
