// Package testutil provides a mock storefront and catalog API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

const (
	APIPath  = "/api/graphql"
	RegionID = "v2.TESTREGION"
)

// MockCategory configures how the mock API answers for one category label.
type MockCategory struct {
	Total      int
	StatusCode int           // Non-zero forces this status on every request
	Body       string        // Overrides the generated body when set
	Delay      time.Duration // Applied before answering

	// Mutate edits the generated node of item i.
	Mutate func(i int, node map[string]any)
}

// MockCatalogAPI mimics the store's GraphQL products endpoint and the
// checkout regions endpoint.
type MockCatalogAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	categories map[string]MockCategory
	offsets    map[string][]int
	lastVars   map[string]map[string]any
	inFlight   int
	maxFlight  int

	MenuHTML    string
	RegionsBody string
}

func NewMockCatalogAPI() *MockCatalogAPI {
	m := &MockCatalogAPI{
		categories:  make(map[string]MockCategory),
		offsets:     make(map[string][]int),
		lastVars:    make(map[string]map[string]any),
		RegionsBody: fmt.Sprintf(`[{"id":%q,"sellers":[{"id":"1","name":"carrefour"}]}]`, RegionID),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(APIPath, m.handleProducts)
	mux.HandleFunc("/api/checkout/pub/regions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(m.RegionsBody))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(m.MenuHTML))
	})

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockCatalogAPI) URL() string {
	return m.server.URL
}

func (m *MockCatalogAPI) Close() {
	m.server.Close()
}

func (m *MockCatalogAPI) SetCategory(label string, category MockCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[label] = category
}

// Offsets returns the offsets requested for label, in arrival order.
func (m *MockCatalogAPI) Offsets(label string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.offsets[label]...)
}

// LastVariables returns the decoded variables of the last request for label.
func (m *MockCatalogAPI) LastVariables(label string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastVars[label]
}

// MaxInFlight returns the highest number of concurrent product requests seen.
func (m *MockCatalogAPI) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

func (m *MockCatalogAPI) handleProducts(w http.ResponseWriter, r *http.Request) {
	var vars map[string]any
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars); err != nil {
		http.Error(w, "bad variables", http.StatusBadRequest)
		return
	}

	label := FacetValue(vars, "category-1")
	offset, _ := strconv.Atoi(fmt.Sprint(vars["after"]))
	first := 100
	if f, ok := vars["first"].(float64); ok {
		first = int(f)
	}

	m.mu.Lock()
	m.offsets[label] = append(m.offsets[label], offset)
	m.lastVars[label] = vars
	category, known := m.categories[label]
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if category.Delay > 0 {
		time.Sleep(category.Delay)
	}

	switch {
	case !known:
		http.Error(w, "unknown category", http.StatusNotFound)
		return
	case category.StatusCode != 0:
		http.Error(w, `{"error":"forced"}`, category.StatusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if category.Body != "" {
		_, _ = w.Write([]byte(category.Body))
		return
	}

	edges := make([]map[string]any, 0, first)
	for i := offset; i < offset+first && i < category.Total; i++ {
		node := Node(label, i)
		if category.Mutate != nil {
			category.Mutate(i, node)
		}
		edges = append(edges, map[string]any{"node": node})
	}

	_ = json.NewEncoder(w).Encode(ProductsBody(category.Total, edges))
}

// Node builds a complete product node for item i of label.
func Node(label string, i int) map[string]any {
	slug := fmt.Sprintf("%s-item-%d", label, i)
	return map[string]any{
		"id":     fmt.Sprintf("%s-%d", label, i),
		"name":   fmt.Sprintf("%s item %d", label, i),
		"slug":   slug,
		"brand":  map[string]any{"name": "Marca"},
		"offers": map[string]any{"lowPrice": 1.5 + float64(i)},
	}
}

// ProductsBody wraps edges in the products query response envelope.
func ProductsBody(total int, edges []map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"search": map[string]any{
				"products": map[string]any{
					"pageInfo": map[string]any{"totalCount": total},
					"edges":    edges,
				},
			},
		},
	}
}

// FacetValue returns the value of a selected facet in decoded variables.
func FacetValue(vars map[string]any, key string) string {
	facets, _ := vars["selectedFacets"].([]any)
	for _, f := range facets {
		facet, _ := f.(map[string]any)
		if facet["key"] == key {
			value, _ := facet["value"].(string)
			return value
		}
	}
	return ""
}
