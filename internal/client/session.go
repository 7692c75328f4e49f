package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/proxy"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// SessionProvider negotiates the store context once before harvesting.
type SessionProvider interface {
	EstablishSession(ctx context.Context) (domain.RegionContext, domain.CategoryTaxonomy, error)
}

type storeSession struct {
	config     config.CarrefourConfig
	baseURL    string
	timeout    time.Duration
	httpClient *resty.Client
	parser     *menuParser
}

func NewSessionProvider(cfg config.CarrefourConfig, proxySupplier proxy.ProxySupplier) SessionProvider {
	return &storeSession{
		config:     cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    requestTimeout(cfg),
		httpClient: newHTTPClient(cfg, initialProxy(proxySupplier)),
		parser:     newMenuParser(cfg.MenuSelector),
	}
}

type region struct {
	ID string `json:"id"`
}

func (s *storeSession) EstablishSession(ctx context.Context) (domain.RegionContext, domain.CategoryTaxonomy, error) {
	regionID, err := s.resolveRegion(ctx)
	if err != nil {
		return domain.RegionContext{}, nil, &domain.SessionError{Stage: "region", Err: err}
	}

	taxonomy, err := s.resolveTaxonomy(ctx)
	if err != nil {
		return domain.RegionContext{}, nil, &domain.SessionError{Stage: "taxonomy", Err: err}
	}

	regionCtx := domain.RegionContext{
		SalesChannel: s.config.SalesChannel,
		RegionID:     regionID,
		Locale:       s.config.Locale,
	}

	log.Infof("🏬 Session established: region %s, sales channel %d, %d categories",
		regionCtx.RegionID, regionCtx.SalesChannel, len(taxonomy))
	log.Debugf("Categories: %s", strings.Join(taxonomy.Names(), ", "))
	return regionCtx, taxonomy, nil
}

func (s *storeSession) resolveRegion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("country", s.config.Country).
		SetQueryParam("postalCode", s.config.PostalCode).
		SetQueryParam("sc", strconv.Itoa(s.config.SalesChannel)).
		Get(s.baseURL + "/api/checkout/pub/regions")
	if err != nil {
		return "", fmt.Errorf("failed to fetch regions: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	var regions []region
	if err := json.Unmarshal([]byte(resp.String()), &regions); err != nil {
		return "", fmt.Errorf("malformed regions body: %w", err)
	}
	if len(regions) == 0 || regions[0].ID == "" {
		return "", fmt.Errorf("no region serves postal code %s", s.config.PostalCode)
	}

	return regions[0].ID, nil
}

func (s *storeSession) resolveTaxonomy(ctx context.Context) (domain.CategoryTaxonomy, error) {
	if len(s.config.Categories) > 0 {
		taxonomy := make(domain.CategoryTaxonomy, 0, len(s.config.Categories))
		for _, c := range s.config.Categories {
			taxonomy = append(taxonomy, domain.CategoryTask{Name: c.Name, Label: c.Label})
		}
		return taxonomy, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(s.baseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch storefront: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return s.parser.ParseTaxonomy(resp.String())
}
