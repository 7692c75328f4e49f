package container

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"carrefour/harvester/internal/client"
	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/metrics"
	"carrefour/harvester/internal/normalizer"
	"carrefour/harvester/internal/proxy"
	"carrefour/harvester/internal/queue"
	"carrefour/harvester/internal/repository"
	"carrefour/harvester/internal/service"
	"carrefour/harvester/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Session      client.SessionProvider
	Client       client.CatalogClient
	Repository   repository.CatalogRepository
	Queue        queue.Queue
	StateManager state.StateManager

	Service *service.Service

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Carrefour.Proxies, cfg.Carrefour.BaseURL)
	if len(cfg.Carrefour.Proxies) > 0 && proxySupplier.Len() == 0 {
		log.Warnf("⚠️ None of the %d configured proxies passed validation, connecting directly", len(cfg.Carrefour.Proxies))
	}

	repo, err := container.initRepository(ctx)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Repository = repo

	if cfg.Redis.Enabled {
		if err := container.initRedis(ctx); err != nil {
			container.Close()
			return nil, err
		}
	}

	container.Session = client.NewSessionProvider(cfg.Carrefour, proxySupplier)
	container.Client = client.NewCatalogClient(cfg.Carrefour, proxySupplier)

	harvester := service.NewCategoryHarvester(
		service.NewPaginatedFetcher(container.Client, cfg.Harvest.PageSize),
		normalizer.New(cfg.Carrefour.BaseURL),
	)

	container.Service = service.NewService(
		container.Session,
		service.NewPool(harvester, cfg.Harvest.Concurrency),
		container.Repository,
		container.Queue,
		container.StateManager,
		service.Options{
			Mode:               cfg.Harvest.Mode,
			MaxCategoryRetries: cfg.Harvest.MaxCategoryRetries,
			Consumer:           consumerName(),
		},
	)

	return container, nil
}

func (c *Container) initRepository(ctx context.Context) (repository.CatalogRepository, error) {
	if c.Config.Output.Driver != config.DriverPostgres {
		return repository.NewFileRepository(c.Config.OutputPath()), nil
	}

	db, err := pgxpool.New(ctx, c.Config.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	c.db = db

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	log.Info("✅ Connected to Postgres successfully")
	return repository.NewPostgresRepository(db), nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Config.Redis.Host, c.Config.Redis.Port),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})
	c.redis = rdb

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Queue = redisQueue
	c.StateManager = state.NewRedisStateManager(rdb)
	return nil
}

// Run executes one harvest, serving metrics alongside it when configured
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(ctx)

	g.Go(func() error {
		defer stopMetrics()
		_, err := c.Service.Harvest(ctx)
		return err
	})

	if addr := c.Config.Metrics.ListenAddr; addr != "" {
		g.Go(func() error {
			// A broken metrics endpoint must not abort the harvest
			if err := metrics.Serve(metricsCtx, addr); err != nil {
				log.Errorf("❌ Metrics server stopped: %v", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "harvester"
	}
	return "harvester-" + host
}
