package repository

import (
	"context"

	"carrefour/harvester/internal/domain"
)

// CatalogRepository receives the finished catalog once per run.
type CatalogRepository interface {
	Persist(ctx context.Context, catalog *domain.Catalog) error
}
