package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eosdis-nasa/earthdata-mirror/internal/fetch"
	"github.com/eosdis-nasa/earthdata-mirror/internal/shutdown"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// fakeRunner records execution for scheduler assertions.
type fakeRunner struct {
	mu      sync.Mutex
	ran     []task.Task
	outcome fetch.Outcome
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	onRun       func(t task.Task)
}

func (f *fakeRunner) Run(ctx context.Context, t task.Task) fetch.Outcome {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.onRun != nil {
		f.onRun(t)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.ran = append(f.ran, t)
	f.mu.Unlock()
	return f.outcome
}

func makeTasks(n int, isData bool) []task.Task {
	tasks := make([]task.Task, n)
	for i := range tasks {
		tasks[i] = task.Task{Index: i, ID: "T", IsData: isData}
	}
	return tasks
}

func TestRunCountsOutcomes(t *testing.T) {
	runner := &fakeRunner{outcome: fetch.OutcomeSuccess}
	s := New(runner, shutdown.New(nil), zaptest.NewLogger(t), 4)

	summary := s.Run(context.Background(), makeTasks(5, true), makeTasks(3, false))
	if summary.Success != 8 {
		t.Errorf("success count: got %d, want 8", summary.Success)
	}
	if summary.Total() != 8 {
		t.Errorf("total: got %d, want 8", summary.Total())
	}
	if summary.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestConcurrencyBound(t *testing.T) {
	runner := &fakeRunner{outcome: fetch.OutcomeSuccess, delay: 10 * time.Millisecond}
	s := New(runner, shutdown.New(nil), zaptest.NewLogger(t), 3)

	s.Run(context.Background(), makeTasks(20, true), nil)

	if max := runner.maxInFlight.Load(); max > 3 {
		t.Errorf("observed %d concurrent tasks, gate is 3", max)
	}
}

func TestDataWaveDrainsBeforeNonData(t *testing.T) {
	var dataDone atomic.Int32

	runner := &fakeRunner{outcome: fetch.OutcomeSuccess, delay: 5 * time.Millisecond}
	runner.onRun = func(tk task.Task) {
		if tk.IsData {
			defer dataDone.Add(1)
			return
		}
		if dataDone.Load() != 6 {
			t.Errorf("non-data task started with %d/6 data tasks done", dataDone.Load())
		}
	}

	s := New(runner, shutdown.New(nil), zaptest.NewLogger(t), 2)
	s.Run(context.Background(), makeTasks(6, true), makeTasks(4, false))
}

func TestStopBeforeSchedulingIssuesNothing(t *testing.T) {
	runner := &fakeRunner{outcome: fetch.OutcomeSuccess}
	sig := shutdown.New(nil)
	sig.Stop()

	s := New(runner, sig, zaptest.NewLogger(t), 4)
	summary := s.Run(context.Background(), makeTasks(5, true), makeTasks(5, false))

	if len(runner.ran) != 0 {
		t.Errorf("expected zero executed tasks, got %d", len(runner.ran))
	}
	if summary.Deferred != 10 {
		t.Errorf("deferred: got %d, want 10", summary.Deferred)
	}
}

func TestStopMidRunDefersUnadmittedOnly(t *testing.T) {
	sig := shutdown.New(nil)
	runner := &fakeRunner{outcome: fetch.OutcomeSuccess, delay: 20 * time.Millisecond}

	var once sync.Once
	runner.onRun = func(task.Task) {
		once.Do(sig.Stop)
	}

	// Concurrency 1 serializes admission, so everything after the
	// first admitted task observes the flag.
	s := New(runner, sig, zaptest.NewLogger(t), 1)
	summary := s.Run(context.Background(), makeTasks(5, true), nil)

	if len(runner.ran) == 0 {
		t.Fatal("expected the in-flight task to complete")
	}
	if summary.Success != len(runner.ran) {
		t.Errorf("admitted tasks must be logged normally: %d success, %d ran", summary.Success, len(runner.ran))
	}
	if summary.Deferred == 0 {
		t.Error("expected unadmitted tasks to defer")
	}
	if summary.Success+summary.Deferred != 5 {
		t.Errorf("outcomes do not cover the task set: %+v", summary)
	}
}

func TestEmptyWaves(t *testing.T) {
	runner := &fakeRunner{outcome: fetch.OutcomeSuccess}
	s := New(runner, shutdown.New(nil), zaptest.NewLogger(t), 4)

	summary := s.Run(context.Background(), nil, nil)
	if summary.Total() != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}
