package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers per-category product counts between runs.
type StateManager interface {
	GetCategoryCount(ctx context.Context, name string) (count int, found bool, err error)
	SetCategoryCount(ctx context.Context, name string, count int) error
	SetLastRun(ctx context.Context, at time.Time) error
	GetLastRun(ctx context.Context) (time.Time, bool, error)
}

type redisStateManager struct {
	redisClient *redis.Client
	countsKey   string
	lastRunKey  string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		countsKey:   "harvester:progress:counts",
		lastRunKey:  "harvester:progress:last_run",
	}
}

func (s *redisStateManager) GetCategoryCount(ctx context.Context, name string) (int, bool, error) {
	val, err := s.redisClient.HGet(ctx, s.countsKey, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil // Category not harvested before
		}
		return 0, false, fmt.Errorf("failed to get count for category %s: %w", name, err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse count for category %s: %w", name, err)
	}

	return count, true, nil
}

func (s *redisStateManager) SetCategoryCount(ctx context.Context, name string, count int) error {
	if err := s.redisClient.HSet(ctx, s.countsKey, name, count).Err(); err != nil {
		return fmt.Errorf("failed to set count for category %s: %w", name, err)
	}
	return nil
}

func (s *redisStateManager) SetLastRun(ctx context.Context, at time.Time) error {
	if err := s.redisClient.Set(ctx, s.lastRunKey, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run: %w", err)
	}
	return nil
}

func (s *redisStateManager) GetLastRun(ctx context.Context) (time.Time, bool, error) {
	val, err := s.redisClient.Get(ctx, s.lastRunKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to get last run: %w", err)
	}

	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last run %q: %w", val, err)
	}
	return at, true, nil
}
