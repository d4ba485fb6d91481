package build

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
)

// assetTask is one source scheduled for transformation.
type assetTask struct {
	index    int
	source   types.AssetSource
	resource string
}

// taskOutcome is what a worker reports back for a task.
type taskOutcome struct {
	index    int
	result   *transform.Result
	err      error
	skipped  bool
	duration time.Duration
}

// runScope carries the per-invocation values shared by all tasks of a run.
type runScope struct {
	buildID   string
	buildPath string
	// deadline is zero when no time budget applies.
	deadline time.Time
}

// WorkerManager fans asset tasks out to a bounded set of workers and
// collects outcomes by task index.
type WorkerManager struct {
	workers     int
	transformer *transform.Transformer
	metrics     *PipelineMetrics
	logger      logging.Logger
}

// NewWorkerManager creates a worker manager. metrics may be nil.
func NewWorkerManager(
	workers int,
	transformer *transform.Transformer,
	metrics *PipelineMetrics,
	logger logging.Logger,
) *WorkerManager {
	if workers < 1 {
		workers = 1
	}
	return &WorkerManager{
		workers:     workers,
		transformer: transformer,
		metrics:     metrics,
		logger:      logging.OrNop(logger),
	}
}

// Run processes every task and returns the outcomes in task order. Tasks
// that have not started when ctx is done or the deadline passes are marked
// skipped; started tasks always run to completion.
func (wm *WorkerManager) Run(ctx context.Context, scope runScope, tasks []assetTask) []taskOutcome {
	outcomes := make([]taskOutcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	queue := make(chan assetTask, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	workers := wm.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				// Each index is written by exactly one worker.
				outcomes[task.index] = wm.process(ctx, scope, task)
			}
		}()
	}
	wg.Wait()

	return outcomes
}

func (wm *WorkerManager) process(ctx context.Context, scope runScope, task assetTask) taskOutcome {
	outcome := taskOutcome{index: task.index}
	if ctx.Err() != nil || (!scope.deadline.IsZero() && time.Now().After(scope.deadline)) {
		outcome.skipped = true
		return outcome
	}

	start := time.Now()
	outcome.result, outcome.err = wm.transformer.Transform(ctx, transform.Request{
		BuildID:   scope.buildID,
		BuildPath: scope.buildPath,
		Source:    task.source,
		Resource:  task.resource,
	})
	outcome.duration = time.Since(start)

	if wm.metrics != nil {
		if outcome.err != nil {
			wm.metrics.RecordAsset(0, 0, true)
		} else {
			wm.metrics.RecordAsset(outcome.result.Variants, outcome.result.CacheHits, false)
		}
	}
	if outcome.err != nil {
		wm.logger.Warn(ctx, outcome.err, "Asset transform failed", "asset", task.source.Key())
	}

	return outcome
}
