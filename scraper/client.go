package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/models"
)

// Client issues catalog and search page requests against the platform API.
// One request is in flight at a time; the colly limit rule spaces requests
// out to stay inside the platform's informal rate limits.
type Client struct {
	cfg       *config.Config
	policy    RetryPolicy
	metrics   *Metrics
	collector *colly.Collector

	requestCount int64
	retryCount   int64
}

// NewClient builds a page fetch client from cfg and an explicit retry policy.
func NewClient(cfg *config.Config, policy RetryPolicy, metrics *Metrics) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Client{
		cfg:       cfg,
		policy:    policy,
		metrics:   metrics,
		collector: collector,
	}, nil
}

// WithTransport replaces the underlying HTTP transport. Used by tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// FetchPage retrieves one results page as a raw JSON payload. Transient
// failures (timeouts, connection errors, non-200 statuses, malformed bodies)
// are retried per the policy; exhaustion yields a FetchError. A status that
// means the platform rejected the query yields an InvalidQueryError at once.
func (c *Client) FetchPage(ctx context.Context, query models.Query, page int) ([]byte, error) {
	target := c.buildPageURL(query, page)

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			atomic.AddInt64(&c.retryCount, 1)
			c.metrics.IncRetries()
			select {
			case <-ctx.Done():
				return nil, &FetchError{Page: page, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(c.policy.Delay(attempt - 1)):
			}
		}

		body, statusCode, err := c.get(target, string(query.Mode))
		if err == nil && statusCode == http.StatusOK {
			if json.Valid(body) {
				return body, nil
			}
			err = ErrBadPayload{Err: fmt.Errorf("response is not valid JSON")}
		}

		if fatalStatus(statusCode) {
			c.metrics.IncError("invalid_query")
			return nil, &InvalidQueryError{
				Query: query.Value,
				Err:   fmt.Errorf("platform rejected request with status %d", statusCode),
			}
		}

		classified := classifyError(err, statusCode)
		c.metrics.IncError(errorTypeLabel(classified))
		slog.Warn("page fetch failed",
			slog.Int("page", page),
			slog.Int("attempt", attempt),
			slog.String("category", errorTypeLabel(classified)),
			slog.Any("error", classified),
		)
		lastErr = classified
	}

	return nil, &FetchError{Page: page, Attempts: c.policy.MaxAttempts, Err: lastErr}
}

// get performs one blocking request and returns body, status, and error.
// The collector is cloned per call so response handlers can close over
// request-local state; clones share the parent's transport and limit rules.
func (c *Client) get(target, endpoint string) ([]byte, int, error) {
	atomic.AddInt64(&c.requestCount, 1)
	c.metrics.IncRequest(endpoint)

	collector := c.collector.Clone()

	var body []byte
	var statusCode int
	var reqErr error

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		reqErr = err
	})

	start := time.Now()
	if err := collector.Visit(target); err != nil && reqErr == nil {
		reqErr = err
	}
	collector.Wait()
	c.metrics.ObserveDuration(time.Since(start))

	return body, statusCode, reqErr
}

func (c *Client) buildPageURL(query models.Query, page int) string {
	switch query.Mode {
	case models.ModeSearch:
		return fmt.Sprintf(
			"%s/exactmatch/ru/common/v4/search?appType=%s&curr=%s&dest=%s&page=%d&query=%s&resultset=catalog&sort=%s&spp=%s",
			c.cfg.SearchBaseURL, c.cfg.AppType, c.cfg.Currency, c.cfg.Dest,
			page, url.QueryEscape(query.Value), c.cfg.Sort, c.cfg.Spp,
		)
	default:
		return fmt.Sprintf(
			"%s/catalog/%s/catalog?appType=%s&%s&curr=%s&dest=%s&page=%d&sort=%s&spp=%s",
			c.cfg.CatalogBaseURL, query.Shard, c.cfg.AppType, query.Filter,
			c.cfg.Currency, c.cfg.Dest, page, c.cfg.Sort, c.cfg.Spp,
		)
	}
}

// Requests returns the total number of HTTP requests issued so far.
func (c *Client) Requests() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// Retries returns the total number of retry attempts issued so far.
func (c *Client) Retries() int {
	return int(atomic.LoadInt64(&c.retryCount))
}
