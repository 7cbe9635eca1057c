package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/scraper"
)

const sampleMenu = `[
  {
    "name": "Электроника",
    "url": "/catalog/elektronika",
    "childs": [
      {
        "name": "Ноутбуки",
        "url": "/catalog/noutbuki",
        "shard": "electronics",
        "query": "cat=515"
      },
      {
        "name": "Планшеты",
        "url": "/catalog/planshety",
        "shard": "electronics",
        "query": "cat=517"
      }
    ]
  },
  {
    "name": "Книги",
    "url": "/catalog/knigi",
    "shard": "books",
    "query": "cat=100"
  }
]`

func TestFlatten(t *testing.T) {
	categories, err := Flatten([]byte(sampleMenu))
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	// The top-level grouping has no shard/query and is skipped.
	if len(categories) != 3 {
		t.Fatalf("categories=%d, want 3", len(categories))
	}
	first := categories[0]
	if first.Name != "Ноутбуки" || first.Shard != "electronics" || first.Filter != "cat=515" {
		t.Fatalf("unexpected first category: %+v", first)
	}
}

func TestFlattenMalformed(t *testing.T) {
	if _, err := Flatten([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed menu")
	}
}

func TestResolve(t *testing.T) {
	categories, err := Flatten([]byte(sampleMenu))
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	byName, err := Resolve(categories, "Ноутбуки")
	if err != nil {
		t.Fatalf("resolve by name: %v", err)
	}
	if byName.Shard != "electronics" {
		t.Fatalf("shard=%q", byName.Shard)
	}

	byURL, err := Resolve(categories, "https://www.wildberries.ru/catalog/knigi")
	if err != nil {
		t.Fatalf("resolve by url: %v", err)
	}
	if byURL.Name != "Книги" {
		t.Fatalf("name=%q", byURL.Name)
	}
}

func TestResolveUnknownCategory(t *testing.T) {
	categories, err := Flatten([]byte(sampleMenu))
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	_, err = Resolve(categories, "Нет такой категории")
	var invalid *scraper.InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidQueryError, got %v", err)
	}
}

func TestSourceLoadDownloadsAndCaches(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MenuURL = "http://menu.test/menu.json"
	cfg.CatalogCachePath = filepath.Join(t.TempDir(), "menu.json")

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.MenuURL, httpmock.NewStringResponder(200, sampleMenu))

	source := NewSource(cfg)
	source.WithTransport(transport)

	categories, err := source.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(categories) != 3 {
		t.Fatalf("categories=%d, want 3", len(categories))
	}
	if _, err := os.Stat(cfg.CatalogCachePath); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// A same-day cache short-circuits the download.
	again, err := source.Load()
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if len(again) != 3 {
		t.Fatalf("cached categories=%d, want 3", len(again))
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("downloads=%d, want 1", got)
	}
}

func TestSourceLoadRejectsNonJSONMenu(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MenuURL = "http://menu.test/menu.json"
	cfg.CatalogCachePath = filepath.Join(t.TempDir(), "menu.json")

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.MenuURL, httpmock.NewStringResponder(200, "<html>blocked</html>"))

	source := NewSource(cfg)
	source.WithTransport(transport)

	if _, err := source.Load(); err == nil {
		t.Fatalf("expected error for non-JSON menu document")
	}
}
