package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"carrefour/harvester/internal/config"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadFrom_Defaults(t *testing.T) {
	dir := writeConfig(t, "carrefour:\n  locale: pt-BR\n")

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	require.Equal(t, "https://mercado.carrefour.com.br", cfg.Carrefour.BaseURL)
	require.Equal(t, 1, cfg.Carrefour.SalesChannel)
	require.Equal(t, 0, cfg.Carrefour.MaxRetries)
	require.Equal(t, 100, cfg.Harvest.PageSize)
	require.Equal(t, 5, cfg.Harvest.Concurrency)
	require.Equal(t, config.ModeFull, cfg.Harvest.Mode)
	require.Equal(t, config.DriverFile, cfg.Output.Driver)
	require.False(t, cfg.Redis.Enabled)
}

func TestLoadFrom_Categories(t *testing.T) {
	dir := writeConfig(t, `
harvest:
  concurrency: 2
carrefour:
  categories:
    - name: Refrigerantes
      label: refrigerantes
    - name: Cervejas
      label: cervejas
`)

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Harvest.Concurrency)
	require.Equal(t, []config.CategoryConfig{
		{Name: "Refrigerantes", Label: "refrigerantes"},
		{Name: "Cervejas", Label: "cervejas"},
	}, cfg.Carrefour.Categories)
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	dir := writeConfig(t, "harvest:\n  concurrency: 2\n")
	t.Setenv("HARVEST_CONCURRENCY", "8")

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Harvest.Concurrency)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := config.LoadFrom(t.TempDir())
	require.ErrorContains(t, err, "config.yaml file not found")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  string
	}{
		{name: "zero concurrency", body: "harvest:\n  concurrency: 0\n", err: "harvest.concurrency"},
		{name: "page size above ceiling", body: "harvest:\n  page_size: 150\n", err: "harvest.page_size"},
		{name: "unknown mode", body: "harvest:\n  mode: partial\n", err: "harvest.mode"},
		{name: "retry without redis", body: "harvest:\n  mode: retry\n", err: "requires redis.enabled"},
		{name: "unknown driver", body: "output:\n  driver: s3\n", err: "output.driver"},
		{name: "category without label", body: "carrefour:\n  categories:\n    - name: Bebidas\n", err: "carrefour.categories[0]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFrom(writeConfig(t, tc.body))
			require.ErrorContains(t, err, tc.err)
		})
	}
}

func TestOutputPath(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{Path: "./output/catalog.json"}}
	cfg.Harvest.Mode = config.ModeFull
	require.Equal(t, "./output/catalog.json", cfg.OutputPath())

	cfg.Harvest.Mode = config.ModeRetry
	require.Equal(t, "./output/catalog.retry.json", cfg.OutputPath())
}
