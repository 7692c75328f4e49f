package domain

import (
	"encoding/json"
	"fmt"
)

// RawPage is one catalog API response. Edges are kept undecoded until
// normalization.
type RawPage struct {
	Offset     int               `json:"offset"`
	TotalCount int               `json:"total_count"`
	Edges      []json.RawMessage `json:"edges"`
}

type CategoryResult struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

// NewCategoryResult builds a result whose Count always matches its products.
func NewCategoryResult(id int, name string, products []Product) (CategoryResult, error) {
	if id < 1 {
		return CategoryResult{}, fmt.Errorf("category %q: id must be positive, got %d", name, id)
	}
	if products == nil {
		products = []Product{}
	}

	return CategoryResult{
		ID:       id,
		Name:     name,
		Count:    len(products),
		Products: products,
	}, nil
}

// Validate reports whether the result still satisfies the count invariant.
func (r CategoryResult) Validate() error {
	if r.Count != len(r.Products) {
		return fmt.Errorf("category %q: count %d does not match %d products", r.Name, r.Count, len(r.Products))
	}
	return nil
}

type Catalog struct {
	Categories []CategoryResult `json:"categories"`
}

// ProductCount returns the number of products across all categories.
func (c *Catalog) ProductCount() int {
	total := 0
	for _, category := range c.Categories {
		total += category.Count
	}
	return total
}

// CategoryFailure names a category that contributed nothing to the catalog.
type CategoryFailure struct {
	Name  string
	Label string
	Cause error
}
