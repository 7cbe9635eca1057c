// Package catalog resolves user-supplied category names or URLs to the
// catalog coordinates (shard and filter) the platform search API expects,
// using the site's main menu document.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/scraper"
)

const siteBaseURL = "https://www.wildberries.ru"

// Category is one flattened entry of the site menu.
type Category struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Shard  string `json:"shard"`
	Filter string `json:"query"`
}

// menuNode mirrors one node of the nested menu document.
type menuNode struct {
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Shard  string     `json:"shard"`
	Filter string     `json:"query"`
	Childs []menuNode `json:"childs"`
}

// Source downloads and caches the platform menu document.
type Source struct {
	menuURL   string
	cachePath string
	collector *colly.Collector
}

// NewSource builds a menu source from cfg.
func NewSource(cfg *config.Config) *Source {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)

	return &Source{
		menuURL:   cfg.MenuURL,
		cachePath: cfg.CatalogCachePath,
		collector: collector,
	}
}

// WithTransport replaces the underlying HTTP transport. Used by tests.
func (s *Source) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Load returns the flattened category list, reusing a same-day local copy of
// the menu document when one exists.
func (s *Source) Load() ([]Category, error) {
	if raw, ok := s.readCache(); ok {
		return Flatten(raw)
	}

	raw, err := s.download()
	if err != nil {
		return nil, fmt.Errorf("download catalog menu: %w", err)
	}

	if err := os.WriteFile(s.cachePath, raw, 0o644); err != nil {
		slog.Warn("cannot cache catalog menu", slog.String("path", s.cachePath), slog.Any("error", err))
	}

	return Flatten(raw)
}

func (s *Source) readCache() ([]byte, bool) {
	info, err := os.Stat(s.cachePath)
	if err != nil {
		return nil, false
	}

	now := time.Now()
	modified := info.ModTime()
	if modified.Year() != now.Year() || modified.YearDay() != now.YearDay() {
		return nil, false
	}

	raw, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (s *Source) download() ([]byte, error) {
	collector := s.collector.Clone()

	var body []byte
	var reqErr error
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if err := collector.Visit(s.menuURL); err != nil && reqErr == nil {
		reqErr = err
	}
	collector.Wait()

	if reqErr != nil {
		return nil, reqErr
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("menu document is not valid JSON")
	}
	return body, nil
}

// Flatten walks the nested menu document and returns every category that
// carries full catalog coordinates. Nodes missing a shard or filter are menu
// groupings, not queryable categories, and are skipped.
func Flatten(raw []byte) ([]Category, error) {
	var nodes []menuNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode catalog menu: %w", err)
	}

	var categories []Category
	walk(nodes, &categories)
	return categories, nil
}

func walk(nodes []menuNode, out *[]Category) {
	for _, node := range nodes {
		if node.Name != "" && node.URL != "" && node.Shard != "" && node.Filter != "" {
			*out = append(*out, Category{
				Name:   node.Name,
				URL:    node.URL,
				Shard:  node.Shard,
				Filter: node.Filter,
			})
		}
		if len(node.Childs) > 0 {
			walk(node.Childs, out)
		}
	}
}

// Resolve matches user input, either a category name or a full site URL,
// against the flattened catalog. No match means the query is invalid and the
// run must abort before producing any output.
func Resolve(categories []Category, input string) (Category, error) {
	trimmed := strings.TrimSpace(input)
	path := trimmed
	if idx := strings.Index(trimmed, siteBaseURL); idx >= 0 {
		path = trimmed[idx+len(siteBaseURL):]
	}

	for _, category := range categories {
		if strings.EqualFold(category.Name, trimmed) || category.URL == path {
			return category, nil
		}
	}

	return Category{}, &scraper.InvalidQueryError{
		Query: input,
		Err:   fmt.Errorf("category not found in catalog menu"),
	}
}
