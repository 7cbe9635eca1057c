package scraper

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/marketgrab/go-scrape-wildberries/models"
)

func newTestSalesClient(t *testing.T, transport *httpmock.MockTransport) *SalesClient {
	t.Helper()
	sc, err := NewSalesClient(newTestConfig(), NewMetrics())
	if err != nil {
		t.Fatalf("new sales client: %v", err)
	}
	sc.WithTransport(transport)
	return sc
}

func TestSalesEnrich(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~nm=101$`, httpmock.NewStringResponder(200, `[{"qnt":42}]`))
	transport.RegisterResponder("GET", `=~nm=102$`, httpmock.NewStringResponder(200, `[{"qnt":7}]`))

	sc := newTestSalesClient(t, transport)
	products := []*models.Product{
		{ID: 101, Name: "First"},
		{ID: 102, Name: "Second"},
		{ID: 101, Name: "First again"},
	}
	sc.Enrich(context.Background(), products)

	if products[0].SalesCount != 42 || products[2].SalesCount != 42 {
		t.Fatalf("sales for 101 = %d/%d, want 42/42", products[0].SalesCount, products[2].SalesCount)
	}
	if products[1].SalesCount != 7 {
		t.Fatalf("sales for 102 = %d, want 7", products[1].SalesCount)
	}

	// The repeated id must come from the cache, not a second request.
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("requests=%d, want 2", got)
	}
}

func TestSalesEnrichFailureDefaultsToZero(t *testing.T) {
	// No responders registered: every lookup fails.
	transport := httpmock.NewMockTransport()

	sc := newTestSalesClient(t, transport)
	products := []*models.Product{{ID: 55, Name: "Unreachable"}}
	sc.Enrich(context.Background(), products)

	if products[0].SalesCount != 0 {
		t.Fatalf("sales=%d, want 0 on lookup failure", products[0].SalesCount)
	}
}

func TestSalesEnrichCancelled(t *testing.T) {
	transport := httpmock.NewMockTransport()
	sc := newTestSalesClient(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	products := []*models.Product{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}}
	sc.Enrich(ctx, products)

	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("requests=%d, want 0 after cancellation", got)
	}
}

func TestSalesEnrichEmptyResponse(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `=~nm=9$`, httpmock.NewStringResponder(200, `[]`))

	sc := newTestSalesClient(t, transport)
	products := []*models.Product{{ID: 9, Name: "Nine"}}
	sc.Enrich(context.Background(), products)

	if products[0].SalesCount != 0 {
		t.Fatalf("sales=%d, want 0 for empty response", products[0].SalesCount)
	}
}
