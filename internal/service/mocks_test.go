package service_test

import (
	"context"
	"time"

	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/domain/task"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) FetchPage(ctx context.Context, category domain.CategoryTask, region domain.RegionContext, offset, pageSize int) (*domain.RawPage, error) {
	args := m.Called(ctx, category, region, offset, pageSize)
	page, _ := args.Get(0).(*domain.RawPage)
	return page, args.Error(1)
}

type MockSessionProvider struct {
	mock.Mock
}

func (m *MockSessionProvider) EstablishSession(ctx context.Context) (domain.RegionContext, domain.CategoryTaxonomy, error) {
	args := m.Called(ctx)
	taxonomy, _ := args.Get(1).(domain.CategoryTaxonomy)
	return args.Get(0).(domain.RegionContext), taxonomy, args.Error(2)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Persist(ctx context.Context, catalog *domain.Catalog) error {
	args := m.Called(ctx, catalog)
	return args.Error(0)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) AddTask(ctx context.Context, t task.Task) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *MockQueue) GetTask(ctx context.Context, consumer, taskType string, block time.Duration) (*redis.XMessage, error) {
	args := m.Called(ctx, consumer, taskType, block)
	msg, _ := args.Get(0).(*redis.XMessage)
	return msg, args.Error(1)
}

func (m *MockQueue) AckTask(ctx context.Context, taskType, msgID string) error {
	args := m.Called(ctx, taskType, msgID)
	return args.Error(0)
}

func (m *MockQueue) AutoClaim(ctx context.Context, consumer, taskType string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	args := m.Called(ctx, consumer, taskType, minIdleTime)
	messages, _ := args.Get(0).([]redis.XMessage)
	return messages, args.Error(1)
}

func (m *MockQueue) EnsureStreamsExist(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStateManager struct {
	mock.Mock
}

func (m *MockStateManager) GetCategoryCount(ctx context.Context, name string) (int, bool, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockStateManager) SetCategoryCount(ctx context.Context, name string, count int) error {
	args := m.Called(ctx, name, count)
	return args.Error(0)
}

func (m *MockStateManager) SetLastRun(ctx context.Context, at time.Time) error {
	args := m.Called(ctx, at)
	return args.Error(0)
}

func (m *MockStateManager) GetLastRun(ctx context.Context) (time.Time, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

// processorFunc adapts a function to service.CategoryProcessor.
type processorFunc func(ctx context.Context, category domain.CategoryTask, region domain.RegionContext) ([]domain.Product, error)

func (f processorFunc) Process(ctx context.Context, category domain.CategoryTask, region domain.RegionContext) ([]domain.Product, error) {
	return f(ctx, category, region)
}

func productsOf(label string, n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{ID: label, Name: label, Slug: label, Brand: domain.Unknown, Price: domain.UnknownPrice(), URL: domain.Unknown}
	}
	return products
}
