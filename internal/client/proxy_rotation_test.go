package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"carrefour/harvester/internal/client"
	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rotatingSupplier starts direct and hands out proxyURL on every later call.
type rotatingSupplier struct {
	calls    atomic.Int32
	proxyURL string
}

func (s *rotatingSupplier) Get() string {
	if s.calls.Add(1) == 1 {
		return ""
	}
	return s.proxyURL
}

func (s *rotatingSupplier) Len() int {
	return 1
}

func TestFetchPage_RotationDoesNotDisturbSiblings(t *testing.T) {
	api := testutil.NewMockCatalogAPI()
	defer api.Close()

	const perKind = 6
	for i := 0; i < perKind; i++ {
		api.SetCategory(fmt.Sprintf("limitada-%d", i), testutil.MockCategory{StatusCode: http.StatusTooManyRequests})
		api.SetCategory(fmt.Sprintf("saudavel-%d", i), testutil.MockCategory{Total: 350})
	}

	// The mock server doubles as the proxy: it answers absolute-URI requests by path
	supplier := &rotatingSupplier{proxyURL: api.URL()}
	c := client.NewCatalogClient(config.CarrefourConfig{
		BaseURL: api.URL(),
		APIPath: testutil.APIPath,
		Timeout: 5,
	}, supplier)

	var wg sync.WaitGroup
	for i := 0; i < perKind; i++ {
		healthy := domain.CategoryTask{Name: fmt.Sprintf("Saudavel %d", i), Label: fmt.Sprintf("saudavel-%d", i)}
		limited := domain.CategoryTask{Name: fmt.Sprintf("Limitada %d", i), Label: fmt.Sprintf("limitada-%d", i)}

		wg.Add(2)
		go func() {
			defer wg.Done()
			for offset := 0; offset < 350; offset += 100 {
				page, err := c.FetchPage(context.Background(), healthy, testRegion, offset, 100)
				if assert.NoError(t, err) {
					assert.Equal(t, 350, page.TotalCount)
					assert.Equal(t, offset, page.Offset)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 3; attempt++ {
				_, err := c.FetchPage(context.Background(), limited, testRegion, 0, 100)
				var fetchErr *domain.FetchError
				if assert.True(t, errors.As(err, &fetchErr)) {
					assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
				}
			}
		}()
	}
	wg.Wait()

	require.Greater(t, supplier.calls.Load(), int32(1))
	for i := 0; i < perKind; i++ {
		require.ElementsMatch(t, []int{0, 100, 200, 300}, api.Offsets(fmt.Sprintf("saudavel-%d", i)))
	}

	// Requests after rotation go through the proxy and still succeed
	page, err := c.FetchPage(context.Background(), domain.CategoryTask{Name: "Saudavel 0", Label: "saudavel-0"}, testRegion, 0, 100)
	require.NoError(t, err)
	require.Len(t, page.Edges, 100)
}
