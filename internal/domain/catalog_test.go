package domain_test

import (
	"errors"
	"testing"

	"carrefour/harvester/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestNewCategoryResult(t *testing.T) {
	products := []domain.Product{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	result, err := domain.NewCategoryResult(4, "Bebidas", products)
	require.NoError(t, err)
	require.Equal(t, 4, result.ID)
	require.Equal(t, "Bebidas", result.Name)
	require.Equal(t, 3, result.Count)
	require.Len(t, result.Products, 3)
	require.NoError(t, result.Validate())
}

func TestNewCategoryResult_EmptyProducts(t *testing.T) {
	result, err := domain.NewCategoryResult(1, "Vazia", nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.Count)
	require.NotNil(t, result.Products)
}

func TestNewCategoryResult_RejectsNonPositiveID(t *testing.T) {
	_, err := domain.NewCategoryResult(0, "Bebidas", nil)
	require.Error(t, err)
}

func TestCategoryResultValidate(t *testing.T) {
	broken := domain.CategoryResult{ID: 1, Name: "Bebidas", Count: 2, Products: []domain.Product{{ID: "1"}}}
	require.Error(t, broken.Validate())
}

func TestCatalogProductCount(t *testing.T) {
	catalog := &domain.Catalog{Categories: []domain.CategoryResult{
		{ID: 1, Count: 2},
		{ID: 2, Count: 5},
	}}
	require.Equal(t, 7, catalog.ProductCount())
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	var fetchErr *domain.FetchError
	err := error(&domain.FetchError{Category: "Bebidas", Offset: 100, StatusCode: 503, Err: cause})
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "status 503")

	require.ErrorIs(t, &domain.SessionError{Stage: "region", Err: cause}, cause)
	require.ErrorIs(t, &domain.NormalizeError{Err: cause}, cause)
	require.ErrorIs(t, &domain.PersistError{Sink: "file", Err: cause}, cause)
}
