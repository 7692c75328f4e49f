package service

import (
	"context"
	"fmt"

	"carrefour/harvester/internal/client"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/normalizer"
	"carrefour/harvester/internal/pagination"

	log "github.com/sirupsen/logrus"
)

// PaginatedFetcher reads every page of one category, sequentially, starting
// at offset 0.
type PaginatedFetcher struct {
	client   client.CatalogClient
	pageSize int
}

func NewPaginatedFetcher(catalogClient client.CatalogClient, pageSize int) *PaginatedFetcher {
	if pageSize < 1 || pageSize > pagination.MaxPageSize {
		pageSize = pagination.MaxPageSize
	}
	return &PaginatedFetcher{
		client:   catalogClient,
		pageSize: pageSize,
	}
}

// FetchAllPages returns the pages of category in offset order. The first
// failing request aborts the category.
func (f *PaginatedFetcher) FetchAllPages(ctx context.Context, category domain.CategoryTask, region domain.RegionContext) ([]*domain.RawPage, error) {
	first, err := f.client.FetchPage(ctx, category, region, 0, f.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	pageCount := pagination.PageCount(first.TotalCount, f.pageSize)
	pages := make([]*domain.RawPage, 0, pageCount)
	pages = append(pages, first)

	if pageCount > 1 {
		log.Debugf("📄 %s: %d items over %d pages", category.Name, first.TotalCount, pageCount)
	}

	for offset := range pagination.Offsets(first.TotalCount, f.pageSize) {
		page, err := f.client.FetchPage(ctx, category, region, offset, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page at offset %d of %d: %w", offset, first.TotalCount, err)
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// CategoryProcessor turns one category into its products. Implementations
// must not touch shared state.
type CategoryProcessor interface {
	Process(ctx context.Context, category domain.CategoryTask, region domain.RegionContext) ([]domain.Product, error)
}

type categoryHarvester struct {
	fetcher    *PaginatedFetcher
	normalizer *normalizer.Normalizer
}

// NewCategoryHarvester fetches every page of a category and normalizes them.
func NewCategoryHarvester(fetcher *PaginatedFetcher, n *normalizer.Normalizer) CategoryProcessor {
	return &categoryHarvester{
		fetcher:    fetcher,
		normalizer: n,
	}
}

func (h *categoryHarvester) Process(ctx context.Context, category domain.CategoryTask, region domain.RegionContext) ([]domain.Product, error) {
	pages, err := h.fetcher.FetchAllPages(ctx, category, region)
	if err != nil {
		return nil, err
	}

	products, err := h.normalizer.Normalize(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", category.Name, err)
	}
	return products, nil
}
