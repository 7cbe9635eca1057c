package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	CatalogBaseURL string
	SearchBaseURL  string
	MenuURL        string
	OrdersBaseURL  string

	// Platform query constants. The platform rejects requests without them;
	// values mirror what the site itself sends.
	AppType  string
	Currency string
	Dest     string
	Spp      string
	Sort     string

	PageSize int
	MaxPages int

	Timeout         time.Duration
	Delay           time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	UserAgent        string
	OutputFile       string
	OutputFormat     string // csv, json, or dual
	WithSales        bool
	SalesCacheSize   int
	CatalogCachePath string
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() *Config {
	return &Config{
		CatalogBaseURL:   "https://catalog.wb.ru",
		SearchBaseURL:    "https://search.wb.ru",
		MenuURL:          "https://static-basket-01.wb.ru/vol0/data/main-menu-ru-ru-v2.json",
		OrdersBaseURL:    "https://product-order-qnt.wildberries.ru",
		AppType:          "1",
		Currency:         "rub",
		Dest:             "-1257786",
		Spp:              "24",
		Sort:             "popular",
		PageSize:         100,
		MaxPages:         100,
		Timeout:          10 * time.Second,
		Delay:            0,
		MaxRetries:       3,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputFile:       "output/products.csv",
		OutputFormat:     "csv",
		WithSales:        true,
		SalesCacheSize:   10000,
		CatalogCachePath: "wb_catalogue.json",
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"catalog base URL": c.CatalogBaseURL,
		"search base URL":  c.SearchBaseURL,
		"menu URL":         c.MenuURL,
		"orders base URL":  c.OrdersBaseURL,
	} {
		if value == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		parsed, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", name)
		}
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.SalesCacheSize <= 0 {
		return fmt.Errorf("sales cache size must be positive")
	}
	if c.CatalogCachePath == "" {
		return fmt.Errorf("catalog cache path cannot be empty")
	}

	return nil
}
