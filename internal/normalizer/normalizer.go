// Package normalizer maps raw catalog API pages onto canonical products.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"carrefour/harvester/internal/domain"
)

// Normalizer is stateless; one instance may be shared by every worker.
type Normalizer struct {
	baseURL string
}

func New(baseURL string) *Normalizer {
	return &Normalizer{baseURL: strings.TrimRight(baseURL, "/")}
}

type productEdge struct {
	Node *productNode `json:"node"`
}

type productNode struct {
	ID     json.RawMessage `json:"id"`
	Name   *string         `json:"name"`
	Slug   *string         `json:"slug"`
	Brand  *productBrand   `json:"brand"`
	Offers *productOffers  `json:"offers"`
}

type productBrand struct {
	Name *string `json:"name"`
}

type productOffers struct {
	LowPrice *float64 `json:"lowPrice"`
}

var errMissingNode = errors.New("edge has no node")

// Normalize flattens the edges of pages, in page order, into products. Missing
// fields become domain.Unknown; only undecodable edges are an error.
func (n *Normalizer) Normalize(pages []*domain.RawPage) ([]domain.Product, error) {
	total := 0
	for _, page := range pages {
		total += len(page.Edges)
	}

	products := make([]domain.Product, 0, total)
	for _, page := range pages {
		for i, raw := range page.Edges {
			product, err := n.normalizeEdge(raw)
			if err != nil {
				return nil, &domain.NormalizeError{Offset: page.Offset, Index: i, Err: err}
			}
			products = append(products, product)
		}
	}
	return products, nil
}

func (n *Normalizer) normalizeEdge(raw json.RawMessage) (domain.Product, error) {
	var edge productEdge
	if err := json.Unmarshal(raw, &edge); err != nil {
		return domain.Product{}, err
	}
	if edge.Node == nil {
		return domain.Product{}, errMissingNode
	}
	node := edge.Node

	product := domain.Product{
		ID:    orUnknown(rawID(node.ID)),
		Name:  orUnknown(deref(node.Name)),
		Slug:  orUnknown(deref(node.Slug)),
		Brand: domain.Unknown,
		Price: domain.UnknownPrice(),
		URL:   domain.Unknown,
	}

	if node.Brand != nil {
		product.Brand = orUnknown(deref(node.Brand.Name))
	}
	// The API reports 0 for items without an active offer.
	if node.Offers != nil && node.Offers.LowPrice != nil && *node.Offers.LowPrice > 0 {
		product.Price = domain.KnownPrice(*node.Offers.LowPrice)
	}
	if product.Slug != domain.Unknown {
		product.URL = n.baseURL + "/" + product.Slug + "/p"
	}

	return product, nil
}

// rawID accepts ids sent either as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return domain.Unknown
	}
	return s
}
