package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/marketgrab/go-scrape-wildberries/models"
)

type collectingWriter struct {
	mu       sync.Mutex
	products []*models.Product
}

func (cw *collectingWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.products = append(cw.products, products...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) All() []*models.Product {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]*models.Product, len(cw.products))
	copy(out, cw.products)
	return out
}

func makeProducts(n int) []*models.Product {
	products := make([]*models.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, &models.Product{
			Link:  fmt.Sprintf("https://www.wildberries.ru/catalog/%d/detail.aspx", i),
			ID:    i,
			Name:  fmt.Sprintf("Item %d", i),
			Price: float64(i),
		})
	}
	return products
}

func TestPipelineWritesAllRecords(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	products := makeProducts(150)
	if err := p.Process(products); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.All()
	if len(got) != 150 {
		t.Fatalf("written=%d, want 150", len(got))
	}
	// A single worker preserves submission order across batches.
	for i, product := range got {
		if product.ID != i+1 {
			t.Fatalf("record %d has id %d, want %d", i, product.ID, i+1)
		}
	}

	snapshot := p.GetMetrics()
	if processed := snapshot["processed_products"].(int64); processed != 150 {
		t.Fatalf("processed=%d, want 150", processed)
	}
}

func TestPipelineDropsInvalidRecords(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	products := makeProducts(2)
	products = append(products, &models.Product{ID: 3}) // no name, no link

	if err := p.Process(products); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.All()); got != 2 {
		t.Fatalf("written=%d, want 2", got)
	}
	snapshot := p.GetMetrics()
	validation := snapshot["validation_errors"].(map[string]int)
	if validation["invalid_record"] != 1 {
		t.Fatalf("validation=%v, want one invalid_record", validation)
	}
}

func TestPipelineRejectsAfterClose(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(makeProducts(1)); err != ErrPipelineClosed {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineEmptyInput(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	if err := p.Process(nil); err != nil {
		t.Fatalf("process nil: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(writer.All()); got != 0 {
		t.Fatalf("written=%d, want 0", got)
	}
}
