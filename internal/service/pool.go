package service

import (
	"context"
	"fmt"
	"sync"

	"carrefour/harvester/internal/domain"

	log "github.com/sirupsen/logrus"
)

type categoryOutcome struct {
	task     domain.CategoryTask
	products []domain.Product
	err      error
}

// Pool runs categories on a fixed number of workers and funnels every
// outcome through a single collector into the aggregator.
type Pool struct {
	processor   CategoryProcessor
	concurrency int
}

func NewPool(processor CategoryProcessor, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		processor:   processor,
		concurrency: concurrency,
	}
}

// Run processes every task and seals agg once each one has reported exactly
// once. Cancelling ctx stops dispatch; categories already running finish on
// their own request timeouts and the rest are reported as failures. The
// returned error is non-nil only when dispatch was cut short.
func (p *Pool) Run(ctx context.Context, tasks []domain.CategoryTask, region domain.RegionContext, agg *Aggregator) error {
	outcomes := make(chan categoryOutcome, len(tasks))
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for outcome := range outcomes {
			p.report(agg, outcome)
		}
	}()

	workCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	dispatched := 0
	for _, task := range tasks {
		if !p.acquire(ctx, sem) {
			break
		}

		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			outcomes <- p.work(workCtx, task, region)
		}()
		dispatched++
	}

	var interrupted error
	if dispatched < len(tasks) {
		interrupted = fmt.Errorf("harvest interrupted after dispatching %d of %d categories: %w",
			dispatched, len(tasks), context.Cause(ctx))
		for _, task := range tasks[dispatched:] {
			outcomes <- categoryOutcome{
				task: task,
				err:  fmt.Errorf("not dispatched: %w", context.Cause(ctx)),
			}
		}
	}

	wg.Wait()
	close(outcomes)
	<-collected
	agg.Seal()

	return interrupted
}

func (p *Pool) acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case sem <- struct{}{}:
	}
	if ctx.Err() != nil {
		<-sem
		return false
	}
	return true
}

func (p *Pool) work(ctx context.Context, task domain.CategoryTask, region domain.RegionContext) (outcome categoryOutcome) {
	outcome.task = task
	defer func() {
		if r := recover(); r != nil {
			outcome.products = nil
			outcome.err = fmt.Errorf("panic while harvesting %s: %v", task.Name, r)
		}
	}()

	log.Infof("🚀 Harvesting category %s (%s)", task.Name, task.Label)
	outcome.products, outcome.err = p.processor.Process(ctx, task, region)
	return outcome
}

func (p *Pool) report(agg *Aggregator, outcome categoryOutcome) {
	if outcome.err != nil {
		agg.OnFailure(outcome.task, outcome.err)
		return
	}

	result, err := agg.OnSuccess(outcome.task.Name, outcome.products)
	if err != nil {
		agg.OnFailure(outcome.task, err)
		return
	}
	log.Infof("✅ Category %s harvested: %d products (id %d)", result.Name, result.Count, result.ID)
}
