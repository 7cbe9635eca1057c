// Package models defines data structures for the scraper.
package models

import "time"

// QueryMode selects how listings are located on the platform.
type QueryMode string

const (
	// ModeCategory pages through a catalog category resolved from the site menu.
	ModeCategory QueryMode = "category"
	// ModeSearch pages through keyword search results.
	ModeSearch QueryMode = "search"
)

// Query describes a single run. It is immutable once the run starts.
type Query struct {
	Mode  QueryMode
	Value string // category name/URL or search keyword

	// Shard and Filter are the catalog coordinates resolved from the site
	// menu. They are set for category queries only.
	Shard  string
	Filter string

	PageSize int
}

// Product is one catalog item extracted from a results page.
type Product struct {
	Link            string  `csv:"link" json:"link"`
	ID              int     `csv:"id" json:"id"`
	Name            string  `csv:"name" json:"name"`
	BrandName       string  `csv:"brand_name" json:"brand_name"`
	BrandID         int     `csv:"brand_id" json:"brand_id"`
	Price           float64 `csv:"price" json:"price"`
	DiscountedPrice float64 `csv:"discounted_price" json:"discounted_price"`
	Rating          float64 `csv:"rating" json:"rating"`
	ReviewCount     int     `csv:"review_count" json:"review_count"`
	SalesCount      int     `csv:"sales_count" json:"sales_count"`
}

// ScrapeResult holds the overall result of one scraping run.
type ScrapeResult struct {
	// Products preserves platform page order and within-page order. When
	// FetchErr is set it holds everything collected before the failure.
	Products []*Product

	StartTime    time.Time
	EndTime      time.Time
	PagesFetched int
	SkippedItems int
	RequestCount int
	RetryCount   int
	FetchErr     error
}
