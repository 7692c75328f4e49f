package repository

import (
	"context"
	"fmt"

	"carrefour/harvester/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id             BIGSERIAL PRIMARY KEY,
	harvested_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	category_count INTEGER NOT NULL,
	product_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS harvest_categories (
	run_id        BIGINT NOT NULL REFERENCES harvest_runs (id) ON DELETE CASCADE,
	category_id   INTEGER NOT NULL,
	name          TEXT NOT NULL,
	product_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, category_id)
);

CREATE TABLE IF NOT EXISTS harvest_products (
	run_id      BIGINT NOT NULL,
	category_id INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	product_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL,
	brand       TEXT NOT NULL,
	price       NUMERIC,
	url         TEXT NOT NULL,
	PRIMARY KEY (run_id, category_id, position),
	FOREIGN KEY (run_id, category_id) REFERENCES harvest_categories (run_id, category_id) ON DELETE CASCADE
);`

var productColumns = []string{
	"run_id", "category_id", "position", "product_id", "name", "slug", "brand", "price", "url",
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) CatalogRepository {
	return &postgresRepository{
		db: db,
	}
}

// EnsureSchema creates the harvest tables when they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create harvest schema: %w", err)
	}
	return nil
}

// Persist stores the catalog as one run inside a single transaction.
func (r *postgresRepository) Persist(ctx context.Context, catalog *domain.Catalog) error {
	if err := r.persist(ctx, catalog); err != nil {
		return &domain.PersistError{Sink: "postgres", Err: err}
	}
	return nil
}

func (r *postgresRepository) persist(ctx context.Context, catalog *domain.Catalog) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var runID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO harvest_runs (category_count, product_count) VALUES ($1, $2) RETURNING id`,
		len(catalog.Categories), catalog.ProductCount(),
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert harvest run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, category := range catalog.Categories {
		batch.Queue(
			`INSERT INTO harvest_categories (run_id, category_id, name, product_count) VALUES ($1, $2, $3, $4)`,
			runID, category.ID, category.Name, category.Count,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert categories: %w", err)
	}

	rows := productRows(runID, catalog)
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"harvest_products"}, productColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy products: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit harvest run: %w", err)
	}

	log.Infof("💾 Harvest run %d stored: %d categories, %d products", runID, len(catalog.Categories), copied)
	return nil
}

func productRows(runID int64, catalog *domain.Catalog) [][]any {
	rows := make([][]any, 0, catalog.ProductCount())
	for _, category := range catalog.Categories {
		for position, product := range category.Products {
			var price *float64
			if product.Price.Known {
				v := product.Price.Value
				price = &v
			}
			rows = append(rows, []any{
				runID, category.ID, position, product.ID, product.Name, product.Slug, product.Brand, price, product.URL,
			})
		}
	}
	return rows
}
