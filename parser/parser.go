// Package parser extracts product records from platform catalog payloads.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marketgrab/go-scrape-wildberries/models"
)

// MinorUnitsPerUnit converts platform integer prices (kopecks) to rubles.
// Pinned by tests against recorded payloads; revisit if the API changes shape.
const MinorUnitsPerUnit = 100

// ProductLinkFormat builds the storefront link from a product id.
const ProductLinkFormat = "https://www.wildberries.ru/catalog/%d/detail.aspx"

// pagePayload mirrors the envelope of one catalog or search results page.
// The item list lives under data.products.
type pagePayload struct {
	Data struct {
		Products []itemPayload `json:"products"`
	} `json:"data"`
}

// itemPayload is one raw product object. Required fields are pointers so a
// missing key can be told apart from a zero value.
type itemPayload struct {
	ID         *int    `json:"id"`
	Name       *string `json:"name"`
	Brand      string  `json:"brand"`
	BrandID    int     `json:"brandId"`
	PriceU     *int64  `json:"priceU"`
	SalePriceU int64   `json:"salePriceU"`
	Rating     float64 `json:"rating"`
	Feedbacks  int     `json:"feedbacks"`
}

// ExtractPage parses one results page into product records. Items missing a
// required field (id, name, priceU) are skipped and counted. An absent or
// empty product list yields an empty slice and no error: that is the normal
// end-of-results signal.
func ExtractPage(payload []byte) ([]*models.Product, int, error) {
	var page pagePayload
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, 0, fmt.Errorf("decode results page: %w", err)
	}

	products := make([]*models.Product, 0, len(page.Data.Products))
	skipped := 0
	for _, item := range page.Data.Products {
		if item.ID == nil || item.Name == nil || item.PriceU == nil || strings.TrimSpace(*item.Name) == "" {
			skipped++
			continue
		}
		products = append(products, &models.Product{
			Link:            fmt.Sprintf(ProductLinkFormat, *item.ID),
			ID:              *item.ID,
			Name:            *item.Name,
			BrandName:       item.Brand,
			BrandID:         item.BrandID,
			Price:           float64(*item.PriceU) / MinorUnitsPerUnit,
			DiscountedPrice: float64(item.SalePriceU) / MinorUnitsPerUnit,
			Rating:          item.Rating,
			ReviewCount:     item.Feedbacks,
		})
	}
	return products, skipped, nil
}

// ValidateProduct ensures the extractor produced the required fields.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if p.ID <= 0 {
		return fmt.Errorf("product missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product %d missing name", p.ID)
	}
	if p.Link == "" {
		return fmt.Errorf("product %d missing link", p.ID)
	}
	if p.Price < 0 || p.DiscountedPrice < 0 {
		return fmt.Errorf("product %d has negative price", p.ID)
	}
	return nil
}
