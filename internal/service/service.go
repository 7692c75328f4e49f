package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"carrefour/harvester/internal/client"
	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/domain"
	"carrefour/harvester/internal/domain/task"
	"carrefour/harvester/internal/queue"
	"carrefour/harvester/internal/repository"
	"carrefour/harvester/internal/state"

	log "github.com/sirupsen/logrus"
)

const (
	retryReadBlock = 200 * time.Millisecond
	staleRetryIdle = time.Minute
)

type Options struct {
	Mode               string
	MaxCategoryRetries int
	Consumer           string // Consumer name used on the retry stream
}

type Service struct {
	session    client.SessionProvider
	pool       *Pool
	repository repository.CatalogRepository
	queue      queue.Queue        // nil when Redis is disabled
	state      state.StateManager // nil when Redis is disabled
	opts       Options
}

func NewService(
	session client.SessionProvider,
	pool *Pool,
	repo repository.CatalogRepository,
	q queue.Queue,
	sm state.StateManager,
	opts Options,
) *Service {
	if opts.Mode == "" {
		opts.Mode = config.ModeFull
	}
	if opts.Consumer == "" {
		opts.Consumer = "harvester"
	}
	return &Service{
		session:    session,
		pool:       pool,
		repository: repo,
		queue:      q,
		state:      sm,
		opts:       opts,
	}
}

// retryBatch is what a retry run pulled off the stream.
type retryBatch struct {
	tasks      []domain.CategoryTask
	retryCount map[string]int // by label
	messageIDs []string
}

// Harvest runs one complete harvest and hands the catalog to the repository.
// The catalog is returned even when persisting it fails.
func (s *Service) Harvest(ctx context.Context) (*domain.Catalog, error) {
	started := time.Now()

	log.Info("🔑 Establishing store session...")
	region, taxonomy, err := s.session.EstablishSession(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("✅ Session ready: region %q, %d categories in taxonomy", region.RegionID, len(taxonomy))

	batch := retryBatch{tasks: taxonomy, retryCount: map[string]int{}}
	if s.opts.Mode == config.ModeRetry {
		batch, err = s.drainRetries(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch.tasks) == 0 {
			log.Info("📭 No categories waiting for retry")
			s.ackRetries(ctx, batch.messageIDs)
			return &domain.Catalog{Categories: []domain.CategoryResult{}}, nil
		}
		log.Infof("🔁 Retrying %d failed categories", len(batch.tasks))
	}

	agg := NewAggregator()
	if err := s.pool.Run(ctx, batch.tasks, region, agg); err != nil {
		return nil, err
	}

	catalog, err := agg.Finalize()
	if err != nil {
		return nil, err
	}
	failures := agg.Failures()

	s.publishFailures(ctx, failures, batch.retryCount)
	s.ackRetries(ctx, batch.messageIDs)
	s.recordCounts(ctx, catalog)
	logSummary(len(batch.tasks), catalog, failures, time.Since(started))

	if err := s.repository.Persist(ctx, catalog); err != nil {
		return catalog, err
	}
	return catalog, nil
}

func (s *Service) drainRetries(ctx context.Context) (retryBatch, error) {
	batch := retryBatch{retryCount: map[string]int{}}
	if s.queue == nil {
		return batch, fmt.Errorf("retry mode requires the retry stream")
	}

	// Messages left unacked by an interrupted retry run come first
	messages, err := s.queue.AutoClaim(ctx, s.opts.Consumer, task.CategoryRetryTaskType, staleRetryIdle)
	if err != nil {
		return batch, err
	}

	for {
		msg, err := s.queue.GetTask(ctx, s.opts.Consumer, task.CategoryRetryTaskType, retryReadBlock)
		if err != nil {
			return batch, err
		}
		if msg == nil {
			break
		}
		messages = append(messages, *msg)
	}

	seen := make(map[string]bool)
	for _, msg := range messages {
		batch.messageIDs = append(batch.messageIDs, msg.ID)

		data, err := queue.TaskData(&msg)
		if err != nil {
			log.Errorf("❌ Dropping retry message %s: %v", msg.ID, err)
			continue
		}
		retry, err := task.UnmarshalTask[*task.CategoryRetryTask](data)
		if err != nil || retry == nil {
			log.Errorf("❌ Dropping undecodable retry message %s: %v", msg.ID, err)
			continue
		}
		if retry.RetryCount > s.opts.MaxCategoryRetries {
			log.Errorf("❌ Giving up on category %s after %d failed harvests: %s", retry.Name, retry.RetryCount, retry.Error)
			continue
		}

		if retry.RetryCount > batch.retryCount[retry.Label] {
			batch.retryCount[retry.Label] = retry.RetryCount
		}
		if !seen[retry.Label] {
			seen[retry.Label] = true
			batch.tasks = append(batch.tasks, retry.Category())
		}
	}

	return batch, nil
}

func (s *Service) publishFailures(ctx context.Context, failures []domain.CategoryFailure, retryCount map[string]int) {
	if s.queue == nil {
		return
	}

	for _, failure := range failures {
		next := retryCount[failure.Label] + 1
		if next > s.opts.MaxCategoryRetries {
			log.Errorf("❌ Category %s failed %d times, not scheduling another retry: %v", failure.Name, next, failure.Cause)
			continue
		}

		retry := &task.CategoryRetryTask{
			Name:       failure.Name,
			Label:      failure.Label,
			Error:      failure.Cause.Error(),
			RetryCount: next,
		}
		if _, err := s.queue.AddTask(ctx, retry); err != nil {
			log.Errorf("❌ Failed to schedule retry for %s: %v", failure.Name, err)
			continue
		}
		log.Infof("📮 Scheduled retry %d for category %s", next, failure.Name)
	}
}

func (s *Service) ackRetries(ctx context.Context, messageIDs []string) {
	for _, id := range messageIDs {
		if err := s.queue.AckTask(ctx, task.CategoryRetryTaskType, id); err != nil {
			log.Warnf("⚠️ Failed to ack retry message %s: %v", id, err)
		}
	}
}

func (s *Service) recordCounts(ctx context.Context, catalog *domain.Catalog) {
	if s.state == nil {
		return
	}

	lastRun, found, err := s.state.GetLastRun(ctx)
	if err != nil {
		log.Warnf("⚠️ %v", err)
	} else if found {
		log.Infof("🕑 Comparing with run of %s", lastRun.Format(time.RFC3339))
	}

	for _, category := range catalog.Categories {
		previous, found, err := s.state.GetCategoryCount(ctx, category.Name)
		if err != nil {
			log.Warnf("⚠️ %v", err)
		} else if found && previous != category.Count {
			log.Infof("📈 %s: %d → %d products (%+d)", category.Name, previous, category.Count, category.Count-previous)
		}

		if err := s.state.SetCategoryCount(ctx, category.Name, category.Count); err != nil {
			log.Warnf("⚠️ %v", err)
		}
	}

	if err := s.state.SetLastRun(ctx, time.Now()); err != nil {
		log.Warnf("⚠️ %v", err)
	}
}

func logSummary(attempted int, catalog *domain.Catalog, failures []domain.CategoryFailure, elapsed time.Duration) {
	log.Infof("📦 Harvest finished in %s: %d/%d categories, %d products",
		elapsed.Round(time.Millisecond), len(catalog.Categories), attempted, catalog.ProductCount())

	if len(failures) == 0 {
		return
	}

	names := make([]string, 0, len(failures))
	for _, failure := range failures {
		names = append(names, failure.Name)
	}
	slices.Sort(names)
	log.Warnf("⚠️ %d categories omitted: %s", len(failures), strings.Join(names, ", "))
}
