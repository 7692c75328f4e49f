package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Carrefour CarrefourConfig `mapstructure:"carrefour"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Output    OutputConfig    `mapstructure:"output"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// CarrefourConfig holds store and catalog API configuration
type CarrefourConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	APIPath              string   `mapstructure:"api_path"`
	Country              string   `mapstructure:"country"`
	PostalCode           string   `mapstructure:"postal_code"`
	SalesChannel         int      `mapstructure:"sales_channel"`
	Locale               string   `mapstructure:"locale"`
	Timeout              int      `mapstructure:"timeout"` // Seconds per request
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	Proxies              []string `mapstructure:"proxies"`

	// Taxonomy discovery. Configured categories win over the storefront menu.
	MenuSelector string           `mapstructure:"menu_selector"`
	Categories   []CategoryConfig `mapstructure:"categories"`
}

type CategoryConfig struct {
	Name  string `mapstructure:"name"`
	Label string `mapstructure:"label"`
}

// HarvestConfig holds worker pool configuration
type HarvestConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	PageSize           int    `mapstructure:"page_size"`
	Mode               string `mapstructure:"mode"` // full or retry
	MaxCategoryRetries int    `mapstructure:"max_category_retries"`
}

// OutputConfig selects where the finished catalog goes
type OutputConfig struct {
	Driver string `mapstructure:"driver"` // file or postgres
	Path   string `mapstructure:"path"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN returns the pgx connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	ModeFull  = "full"
	ModeRetry = "retry"

	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Load loads configuration from config.yaml in the current directory with
// environment variable overrides
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads configuration from config.yaml in dir
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in %s", dir)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// OutputPath is where the file sink writes. Retry runs only hold the retried
// categories and go next to the full catalog instead of replacing it.
func (c *Config) OutputPath() string {
	if c.Harvest.Mode != ModeRetry {
		return c.Output.Path
	}
	ext := filepath.Ext(c.Output.Path)
	return strings.TrimSuffix(c.Output.Path, ext) + ".retry" + ext
}

// Validate rejects settings the harvester cannot run with
func (c *Config) Validate() error {
	if c.Carrefour.BaseURL == "" {
		return fmt.Errorf("carrefour.base_url is required")
	}
	if c.Harvest.Concurrency < 1 {
		return fmt.Errorf("harvest.concurrency must be >= 1 (got %d)", c.Harvest.Concurrency)
	}
	if c.Harvest.PageSize < 1 || c.Harvest.PageSize > 100 {
		return fmt.Errorf("harvest.page_size must be between 1 and 100 (got %d)", c.Harvest.PageSize)
	}
	switch c.Harvest.Mode {
	case ModeFull:
	case ModeRetry:
		if !c.Redis.Enabled {
			return fmt.Errorf("harvest.mode=retry requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown harvest.mode %q", c.Harvest.Mode)
	}
	switch c.Output.Driver {
	case DriverFile, DriverPostgres:
	default:
		return fmt.Errorf("unknown output.driver %q", c.Output.Driver)
	}
	for i, category := range c.Carrefour.Categories {
		if category.Name == "" || category.Label == "" {
			return fmt.Errorf("carrefour.categories[%d] needs both name and label", i)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("carrefour.base_url", "https://mercado.carrefour.com.br")
	v.SetDefault("carrefour.api_path", "/api/graphql")
	v.SetDefault("carrefour.country", "BRA")
	v.SetDefault("carrefour.postal_code", "01310100")
	v.SetDefault("carrefour.sales_channel", 1)
	v.SetDefault("carrefour.locale", "pt-BR")
	v.SetDefault("carrefour.timeout", 30)
	v.SetDefault("carrefour.max_retries", 0)
	v.SetDefault("carrefour.max_requests_per_second", 10)
	v.SetDefault("carrefour.menu_selector", "a[href*='/colecao/'], nav a[data-testid='menu-link']")

	v.SetDefault("harvest.concurrency", 5)
	v.SetDefault("harvest.page_size", 100)
	v.SetDefault("harvest.mode", ModeFull)
	v.SetDefault("harvest.max_category_retries", 3)

	v.SetDefault("output.driver", DriverFile)
	v.SetDefault("output.path", "./output/catalog.json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "harvester")
	v.SetDefault("database.user", "harvester_user")
	v.SetDefault("database.password", "harvester_pass")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "harvester_consumer")

	v.SetDefault("metrics.listen_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
