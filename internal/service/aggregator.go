package service

import (
	"fmt"
	"sync"

	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Aggregator is the only writer of the catalog. Ids are handed out in the
// order results are appended, starting at 1.
type Aggregator struct {
	mu       sync.Mutex
	nextID   int
	sealed   bool
	catalog  domain.Catalog
	failures []domain.CategoryFailure
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		nextID:  1,
		catalog: domain.Catalog{Categories: make([]domain.CategoryResult, 0)},
	}
}

// OnSuccess appends a complete category. Nothing is appended when it fails.
func (a *Aggregator) OnSuccess(name string, products []domain.Product) (domain.CategoryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return domain.CategoryResult{}, fmt.Errorf("catalog is sealed, dropping %s", name)
	}

	result, err := domain.NewCategoryResult(a.nextID, name, products)
	if err != nil {
		return domain.CategoryResult{}, err
	}

	a.catalog.Categories = append(a.catalog.Categories, result)
	a.nextID++

	metrics.CategoriesTotal.WithLabelValues("success").Inc()
	metrics.ProductsTotal.Add(float64(result.Count))
	return result, nil
}

// OnFailure records a category that contributes nothing to the catalog.
func (a *Aggregator) OnFailure(category domain.CategoryTask, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures = append(a.failures, domain.CategoryFailure{
		Name:  category.Name,
		Label: category.Label,
		Cause: cause,
	})

	metrics.CategoriesTotal.WithLabelValues("failure").Inc()
	log.Warnf("❌ Category %s omitted from catalog: %v", category.Name, cause)
}

// Seal marks the pool as quiescent. Later appends are rejected.
func (a *Aggregator) Seal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
}

// Finalize returns the catalog once the aggregator is sealed.
func (a *Aggregator) Finalize() (*domain.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.sealed {
		return nil, domain.ErrNotQuiescent
	}

	categories := make([]domain.CategoryResult, len(a.catalog.Categories))
	copy(categories, a.catalog.Categories)
	return &domain.Catalog{Categories: categories}, nil
}

// Failures returns the categories reported as failed, in report order.
func (a *Aggregator) Failures() []domain.CategoryFailure {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.CategoryFailure(nil), a.failures...)
}
