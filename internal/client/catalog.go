package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/metrics"
	"carrefour/harvester/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	productsOperation = "ProductsQuery"
	relevanceSort     = "score_desc"
)

// CatalogClient fetches single pages of a category from the catalog API.
type CatalogClient interface {
	FetchPage(ctx context.Context, category domain.CategoryTask, region domain.RegionContext, offset, pageSize int) (*domain.RawPage, error)
}

// catalogClient is shared by every worker. Rotating the proxy swaps which
// client later requests use; requests already in flight keep theirs.
type catalogClient struct {
	rl            ratelimit.Limiter
	cfg           config.CarrefourConfig
	endpoint      string
	timeout       time.Duration
	proxySupplier proxy.ProxySupplier

	current atomic.Pointer[resty.Client]

	mu      sync.Mutex
	clients map[string]*resty.Client // by proxy URL, "" is direct
}

func NewCatalogClient(cfg config.CarrefourConfig, proxySupplier proxy.ProxySupplier) CatalogClient {
	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	c := &catalogClient{
		rl:            rl,
		cfg:           cfg,
		endpoint:      strings.TrimRight(cfg.BaseURL, "/") + cfg.APIPath,
		timeout:       requestTimeout(cfg),
		proxySupplier: proxySupplier,
		clients:       make(map[string]*resty.Client),
	}
	c.current.Store(c.clientFor(initialProxy(proxySupplier)))
	return c
}

func (c *catalogClient) clientFor(proxyURL string) *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[proxyURL]; ok {
		return client
	}
	client := newHTTPClient(c.cfg, proxyURL).SetHeader("Accept", "application/json")
	c.clients[proxyURL] = client
	return client
}

type selectedFacet struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type productsQueryVariables struct {
	First          int             `json:"first"`
	After          string          `json:"after"`
	Sort           string          `json:"sort"`
	Term           string          `json:"term"`
	SelectedFacets []selectedFacet `json:"selectedFacets"`
}

type channelFacet struct {
	SalesChannel string `json:"salesChannel"`
	RegionID     string `json:"regionId"`
}

type productsQueryResponse struct {
	Data *struct {
		Search struct {
			Products struct {
				PageInfo struct {
					TotalCount *int `json:"totalCount"`
				} `json:"pageInfo"`
				Edges []json.RawMessage `json:"edges"`
			} `json:"products"`
		} `json:"search"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func buildVariables(category domain.CategoryTask, region domain.RegionContext, offset, pageSize int) (string, error) {
	channel, err := json.Marshal(channelFacet{
		SalesChannel: strconv.Itoa(region.SalesChannel),
		RegionID:     region.RegionID,
	})
	if err != nil {
		return "", err
	}

	variables, err := json.Marshal(productsQueryVariables{
		First: pageSize,
		After: strconv.Itoa(offset),
		Sort:  relevanceSort,
		Term:  "",
		SelectedFacets: []selectedFacet{
			{Key: "category-1", Value: category.Label},
			{Key: "channel", Value: string(channel)},
			{Key: "locale", Value: region.Locale},
			{Key: "pharmacy", Value: "false"},
		},
	})
	if err != nil {
		return "", err
	}
	return string(variables), nil
}

func (c *catalogClient) FetchPage(ctx context.Context, category domain.CategoryTask, region domain.RegionContext, offset, pageSize int) (*domain.RawPage, error) {
	fetchErr := func(status int, err error) error {
		return &domain.FetchError{Category: category.Name, Offset: offset, StatusCode: status, Err: err}
	}

	variables, err := buildVariables(category, region, offset, pageSize)
	if err != nil {
		return nil, fetchErr(0, fmt.Errorf("failed to encode query variables: %w", err))
	}

	c.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.current.Load().R().
		SetContext(reqCtx).
		SetQueryParam("operationName", productsOperation).
		SetQueryParam("variables", variables).
		Get(c.endpoint)
	metrics.RequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, fetchErr(0, fmt.Errorf("request cancelled: %w", ctx.Err()))
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fetchErr(0, fmt.Errorf("request timed out after %v: %w", c.timeout, reqCtx.Err()))
		}
		return nil, fetchErr(0, fmt.Errorf("failed to fetch page: %w", err))
	}

	metrics.RequestsTotal.WithLabelValues(metrics.StatusClass(resp.StatusCode())).Inc()

	if resp.IsError() {
		if resp.StatusCode() == 429 {
			c.rotateProxy()
		}
		return nil, fetchErr(resp.StatusCode(), fmt.Errorf("HTTP error: %s", resp.Status()))
	}

	page, err := decodeProductsPage(resp.String())
	if err != nil {
		return nil, fetchErr(resp.StatusCode(), err)
	}
	page.Offset = offset

	log.Debugf("Fetched %s offset %d: %d items of %d", category.Name, offset, len(page.Edges), page.TotalCount)
	return page, nil
}

func decodeProductsPage(body string) (*domain.RawPage, error) {
	var payload productsQueryResponse
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}

	if len(payload.Errors) > 0 {
		messages := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(messages, "; "))
	}

	if payload.Data == nil {
		return nil, fmt.Errorf("malformed response body: missing data")
	}

	products := payload.Data.Search.Products
	if products.PageInfo.TotalCount == nil {
		return nil, fmt.Errorf("malformed response body: missing totalCount")
	}

	edges := products.Edges
	if edges == nil {
		edges = []json.RawMessage{}
	}

	return &domain.RawPage{
		TotalCount: *products.PageInfo.TotalCount,
		Edges:      edges,
	}, nil
}

func (c *catalogClient) rotateProxy() {
	if c.proxySupplier == nil {
		return
	}
	if newProxy := c.proxySupplier.Get(); newProxy != "" {
		log.Warnf("🚫 Rate limited by catalog API, switching to proxy %s", newProxy)
		c.current.Store(c.clientFor(newProxy))
	}
}
