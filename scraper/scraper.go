// Package scraper implements the paginated fetch-and-extract loop against
// the platform catalog and search APIs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/models"
	"github.com/marketgrab/go-scrape-wildberries/parser"
)

// Scraper drives pagination: fetch page N, extract records, repeat until the
// platform returns an empty page or the page cap is reached.
type Scraper struct {
	cfg     *config.Config
	client  *Client
	Metrics *Metrics
}

// New builds a scraper configured from cfg.
func New(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	client, err := NewClient(cfg, PolicyFromConfig(cfg), metrics)
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return &Scraper{
		cfg:     cfg,
		client:  client,
		Metrics: metrics,
	}, nil
}

// Collect pages through all results for query and returns them in platform
// order. Pages are fetched strictly one at a time, starting at 1, and no page
// is fetched twice.
//
// Collect has partial-success semantics: when a page fails after retries it
// returns everything collected so far together with the *FetchError. A fatal
// *InvalidQueryError returns a nil result. Context cancellation between pages
// ends the run normally with whatever was collected.
func (s *Scraper) Collect(ctx context.Context, query models.Query) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScrapeResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.RequestCount = s.client.Requests()
		result.RetryCount = s.client.Retries()
	}()

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			slog.Info("run cancelled, keeping collected records",
				slog.Int("pages", result.PagesFetched),
				slog.Int("items", len(result.Products)),
			)
			break
		}

		payload, err := s.client.FetchPage(ctx, query, page)
		if err != nil {
			var invalid *InvalidQueryError
			if errors.As(err, &invalid) {
				return nil, err
			}
			result.FetchErr = err
			slog.Error("pagination stopped",
				slog.Int("page", page),
				slog.Int("items_collected", len(result.Products)),
				slog.Any("error", err),
			)
			break
		}

		products, skipped, err := parser.ExtractPage(payload)
		if err != nil {
			// FetchPage validated the JSON, so this means the envelope
			// itself changed shape. Stop and keep what we have.
			result.FetchErr = &FetchError{Page: page, Attempts: 1, Err: err}
			break
		}

		result.PagesFetched++
		s.Metrics.IncPages()
		result.SkippedItems += skipped
		s.Metrics.AddSkipped(skipped)

		if len(products) == 0 {
			slog.Info("end of results", slog.Int("page", page))
			break
		}

		result.Products = append(result.Products, products...)
		s.Metrics.AddItems(len(products))
		slog.Info("page collected",
			slog.Int("page", page),
			slog.Int("items", len(products)),
			slog.Int("total", len(result.Products)),
		)
	}

	return result, result.FetchErr
}

// Client exposes the underlying page client, mainly so callers can swap the
// transport in tests.
func (s *Scraper) Client() *Client {
	return s.client
}
