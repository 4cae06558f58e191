package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/eosdis-nasa/earthdata-mirror/internal/fetch"
	"github.com/eosdis-nasa/earthdata-mirror/internal/shutdown"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// DefaultConcurrency bounds in-flight network operations when the
// caller does not choose.
const DefaultConcurrency = 20

// TaskRunner executes one task to a terminal outcome. Satisfied by
// *fetch.Runner.
type TaskRunner interface {
	Run(ctx context.Context, t task.Task) fetch.Outcome
}

// Summary aggregates one run's terminal outcomes.
type Summary struct {
	RunID    string
	Success  int
	Missing  int
	SoftFail int
	HardFail int
	Deferred int
	Skipped  int
	Elapsed  time.Duration
}

// Total returns the number of tasks that resolved.
func (s Summary) Total() int {
	return s.Success + s.Missing + s.SoftFail + s.HardFail + s.Deferred + s.Skipped
}

// Scheduler runs the two waves under a counting admission gate. A task
// holds its slot for the full fetch-and-commit sequence; the commit
// itself happens on the commit pool so a slow storage write never
// blocks the gate logic of other tasks.
type Scheduler struct {
	runner      TaskRunner
	signal      *shutdown.Signal
	logger      *zap.Logger
	concurrency int64
}

// New creates a scheduler. concurrency <= 0 selects the default.
func New(runner TaskRunner, signal *shutdown.Signal, logger *zap.Logger, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:      runner,
		signal:      signal,
		logger:      logger,
		concurrency: int64(concurrency),
	}
}

// Run executes the data wave to completion, then the non-data wave.
func (s *Scheduler) Run(ctx context.Context, data, nonData []task.Task) Summary {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	logger := s.logger.With(zap.String("run_id", summary.RunID))

	logger.Info("run starting",
		zap.Int("data_tasks", len(data)),
		zap.Int("non_data_tasks", len(nonData)),
		zap.Int64("concurrency", s.concurrency),
	)

	s.wave(ctx, logger, "data", data, &summary)
	s.wave(ctx, logger, "non-data", nonData, &summary)

	summary.Elapsed = time.Since(start)
	logger.Info("run complete",
		zap.Int("success", summary.Success),
		zap.Int("missing", summary.Missing),
		zap.Int("soft_fail", summary.SoftFail),
		zap.Int("hard_fail", summary.HardFail),
		zap.Int("deferred", summary.Deferred),
		zap.Int("skipped", summary.Skipped),
		zap.String("elapsed", FormatDuration(summary.Elapsed)),
	)
	return summary
}

// wave fans out every task immediately, gated only by the slot
// limiter, and returns once all of them resolved.
func (s *Scheduler) wave(ctx context.Context, logger *zap.Logger, name string, tasks []task.Task, summary *Summary) {
	if len(tasks) == 0 {
		return
	}
	logger.Info("wave starting", zap.String("wave", name), zap.Int("tasks", len(tasks)))

	sem := semaphore.NewWeighted(s.concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(o fetch.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case fetch.OutcomeSuccess:
			summary.Success++
		case fetch.OutcomeMissing:
			summary.Missing++
		case fetch.OutcomeSoftFail:
			summary.SoftFail++
		case fetch.OutcomeHardFail:
			summary.HardFail++
		case fetch.OutcomeDeferred:
			summary.Deferred++
		case fetch.OutcomeSkipped:
			summary.Skipped++
		}
	}

	for _, t := range tasks {
		wg.Add(1)
		go func(t task.Task) {
			defer wg.Done()

			// Admission: a deferred task issues no request and writes
			// no log entry; the next run picks it up.
			if s.signal.Stopped() {
				record(fetch.OutcomeDeferred)
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				record(fetch.OutcomeDeferred)
				return
			}
			defer sem.Release(1)
			if s.signal.Stopped() {
				record(fetch.OutcomeDeferred)
				return
			}

			record(s.runner.Run(ctx, t))
		}(t)
	}
	wg.Wait()

	logger.Info("wave complete", zap.String("wave", name))
}
