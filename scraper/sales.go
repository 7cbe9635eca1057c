package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/models"
)

// SalesClient looks up sold-quantity counts for collected products on the
// order-quantity endpoint. Lookups are sequential and best-effort: a failed
// lookup leaves the default of zero and never stops the run.
type SalesClient struct {
	cfg       *config.Config
	metrics   *Metrics
	collector *colly.Collector
	cache     *lru.Cache[int, int]
}

// qntPayload mirrors the order-quantity response: a one-element array.
type qntPayload struct {
	Qnt int `json:"qnt"`
}

// NewSalesClient builds a sales lookup client with an LRU cache keyed by
// product id, so repeated ids across pages and reruns are fetched once.
func NewSalesClient(cfg *config.Config, metrics *Metrics) (*SalesClient, error) {
	cache, err := lru.New[int, int](cfg.SalesCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build sales cache: %w", err)
	}

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

	return &SalesClient{
		cfg:       cfg,
		metrics:   metrics,
		collector: collector,
		cache:     cache,
	}, nil
}

// WithTransport replaces the underlying HTTP transport. Used by tests.
func (sc *SalesClient) WithTransport(rt http.RoundTripper) {
	sc.collector.WithTransport(rt)
}

// Enrich fills SalesCount for every product in place. Cancellation stops the
// loop early; products already enriched keep their values.
func (sc *SalesClient) Enrich(ctx context.Context, products []*models.Product) {
	if ctx == nil {
		ctx = context.Background()
	}

	for i, product := range products {
		if ctx.Err() != nil {
			slog.Info("sales enrichment cancelled",
				slog.Int("enriched", i),
				slog.Int("total", len(products)),
			)
			return
		}

		if qnt, ok := sc.cache.Get(product.ID); ok {
			product.SalesCount = qnt
			continue
		}

		qnt, err := sc.fetchQuantity(product.ID)
		if err != nil {
			slog.Debug("sales lookup failed",
				slog.Int("product_id", product.ID),
				slog.Any("error", err),
			)
			continue
		}
		product.SalesCount = qnt
		sc.cache.Add(product.ID, qnt)
	}
}

func (sc *SalesClient) fetchQuantity(productID int) (int, error) {
	target := fmt.Sprintf("%s/by-nm/?nm=%d", sc.cfg.OrdersBaseURL, productID)
	sc.metrics.IncRequest("orders")

	collector := sc.collector.Clone()

	var body []byte
	var reqErr error
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	start := time.Now()
	if err := collector.Visit(target); err != nil && reqErr == nil {
		reqErr = err
	}
	collector.Wait()
	sc.metrics.ObserveDuration(time.Since(start))

	if reqErr != nil {
		return 0, reqErr
	}

	var payload []qntPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode order quantity: %w", err)
	}
	if len(payload) == 0 {
		return 0, nil
	}
	return payload[0].Qnt, nil
}
