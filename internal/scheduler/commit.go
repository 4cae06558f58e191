package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eosdis-nasa/earthdata-mirror/internal/store"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// ErrPoolClosed is returned by Commit after Close.
var ErrPoolClosed = errors.New("commit pool closed")

type commitJob struct {
	task  task.Task
	body  io.Reader
	reply chan commitResult
}

type commitResult struct {
	n   int64
	err error
}

// CommitPool performs final storage writes on dedicated workers so a
// blocking synchronous write never stalls the concurrency-limited
// fetch path. The fetch goroutine still waits for its own result and
// keeps holding its slot until the commit resolves.
type CommitPool struct {
	store   *store.Store
	jobs    chan commitJob
	group   *errgroup.Group
	bytes   atomic.Int64
	started atomic.Bool
}

// NewCommitPool creates a pool with the given worker count (minimum 1).
func NewCommitPool(st *store.Store, workers int) *CommitPool {
	if workers <= 0 {
		workers = 1
	}
	p := &CommitPool{
		store: st,
		jobs:  make(chan commitJob),
		group: &errgroup.Group{},
	}
	p.group.SetLimit(workers)
	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}
	p.started.Store(true)
	return p
}

func (p *CommitPool) worker() error {
	for job := range p.jobs {
		n, err := p.store.Put(context.Background(), job.task.Destination, job.body)
		if err == nil {
			p.bytes.Add(n)
		}
		job.reply <- commitResult{n: n, err: err}
	}
	return nil
}

// Commit hands the buffered body to a worker and blocks until the
// write resolves or ctx ends.
func (p *CommitPool) Commit(ctx context.Context, t task.Task, body io.Reader) (int64, error) {
	if !p.started.Load() {
		return 0, ErrPoolClosed
	}

	job := commitJob{task: t, body: body, reply: make(chan commitResult, 1)}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	res := <-job.reply
	return res.n, res.err
}

// TotalBytes returns the bytes committed so far.
func (p *CommitPool) TotalBytes() int64 { return p.bytes.Load() }

// Close drains the workers. Call only after all tasks resolved.
func (p *CommitPool) Close() error {
	if p.started.CompareAndSwap(true, false) {
		close(p.jobs)
	}
	return p.group.Wait()
}
