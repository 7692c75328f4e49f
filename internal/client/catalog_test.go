package client_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"carrefour/harvester/internal/client"
	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/testutil"

	"github.com/stretchr/testify/require"
)

var testRegion = domain.RegionContext{SalesChannel: 1, RegionID: testutil.RegionID, Locale: "pt-BR"}

func newTestClient(t *testing.T, api *testutil.MockCatalogAPI, timeout int) client.CatalogClient {
	t.Helper()
	return client.NewCatalogClient(config.CarrefourConfig{
		BaseURL: api.URL(),
		APIPath: testutil.APIPath,
		Timeout: timeout,
	}, nil)
}

func TestFetchPage_SendsProtocolFilters(t *testing.T) {
	api := testutil.NewMockCatalogAPI()
	defer api.Close()
	api.SetCategory("refrigerantes", testutil.MockCategory{Total: 250})

	c := newTestClient(t, api, 5)
	category := domain.CategoryTask{Name: "Refrigerantes", Label: "refrigerantes"}

	page, err := c.FetchPage(context.Background(), category, testRegion, 200, 100)
	require.NoError(t, err)
	require.Equal(t, 250, page.TotalCount)
	require.Equal(t, 200, page.Offset)
	require.Len(t, page.Edges, 50)

	vars := api.LastVariables("refrigerantes")
	require.Equal(t, "200", vars["after"])
	require.EqualValues(t, 100, vars["first"])
	require.Equal(t, "score_desc", vars["sort"])
	require.Equal(t, "pt-BR", testutil.FacetValue(vars, "locale"))
	require.Equal(t, "false", testutil.FacetValue(vars, "pharmacy"))
	require.JSONEq(t, `{"salesChannel":"1","regionId":"v2.TESTREGION"}`, testutil.FacetValue(vars, "channel"))
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	api := testutil.NewMockCatalogAPI()
	defer api.Close()
	api.SetCategory("bebidas", testutil.MockCategory{StatusCode: http.StatusServiceUnavailable})

	c := newTestClient(t, api, 5)
	_, err := c.FetchPage(context.Background(), domain.CategoryTask{Name: "Bebidas", Label: "bebidas"}, testRegion, 0, 100)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "Bebidas", fetchErr.Category)
	require.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	require.Equal(t, []int{0}, api.Offsets("bebidas"), "no automatic retry")
}

func TestFetchPage_MalformedBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: `<html>oops</html>`, want: "malformed response body"},
		{name: "graphql errors", body: `{"errors":[{"message":"facet not found"}]}`, want: "facet not found"},
		{name: "missing data", body: `{}`, want: "missing data"},
		{name: "missing total", body: `{"data":{"search":{"products":{"edges":[]}}}}`, want: "missing totalCount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := testutil.NewMockCatalogAPI()
			defer api.Close()
			api.SetCategory("padaria", testutil.MockCategory{Body: tc.body})

			c := newTestClient(t, api, 5)
			_, err := c.FetchPage(context.Background(), domain.CategoryTask{Name: "Padaria", Label: "padaria"}, testRegion, 0, 100)

			var fetchErr *domain.FetchError
			require.ErrorAs(t, err, &fetchErr)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestFetchPage_EmptyCategory(t *testing.T) {
	api := testutil.NewMockCatalogAPI()
	defer api.Close()
	api.SetCategory("vazia", testutil.MockCategory{Total: 0})

	c := newTestClient(t, api, 5)
	page, err := c.FetchPage(context.Background(), domain.CategoryTask{Name: "Vazia", Label: "vazia"}, testRegion, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 0, page.TotalCount)
	require.Empty(t, page.Edges)
}

func TestFetchPage_Timeout(t *testing.T) {
	api := testutil.NewMockCatalogAPI()
	defer api.Close()
	api.SetCategory("lenta", testutil.MockCategory{Total: 1, Delay: 1500 * time.Millisecond})

	c := newTestClient(t, api, 1)
	_, err := c.FetchPage(context.Background(), domain.CategoryTask{Name: "Lenta", Label: "lenta"}, testRegion, 0, 100)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
