package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"carrefour/harvester/internal/domain"

	log "github.com/sirupsen/logrus"
)

type fileRepository struct {
	path string
}

// NewFileRepository writes the catalog as indented JSON to path.
func NewFileRepository(path string) CatalogRepository {
	return &fileRepository{
		path: path,
	}
}

func (r *fileRepository) Persist(ctx context.Context, catalog *domain.Catalog) error {
	if err := ctx.Err(); err != nil {
		return &domain.PersistError{Sink: r.path, Err: err}
	}

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return &domain.PersistError{Sink: r.path, Err: fmt.Errorf("failed to encode catalog: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return &domain.PersistError{Sink: r.path, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	// Readers never see a partial catalog
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &domain.PersistError{Sink: r.path, Err: fmt.Errorf("failed to write catalog: %w", err)}
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return &domain.PersistError{Sink: r.path, Err: fmt.Errorf("failed to move catalog into place: %w", err)}
	}

	log.Infof("💾 Catalog written to %s (%d bytes)", r.path, len(data))
	return nil
}
