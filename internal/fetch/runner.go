package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/eosdis-nasa/earthdata-mirror/internal/journal"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// Outcome is the terminal state of one task execution.
type Outcome int

const (
	// OutcomeSuccess: asset committed, or resolved as an out-of-scope
	// redirect. Appended to the Success log.
	OutcomeSuccess Outcome = iota
	// OutcomeMissing: origin returned 404. Appended to the Missing log,
	// never retried.
	OutcomeMissing
	// OutcomeSoftFail: a non-data task failed. Retried next run.
	OutcomeSoftFail
	// OutcomeHardFail: a data task failed. Retried next run.
	OutcomeHardFail
	// OutcomeDeferred: the stop flag was observed before admission; no
	// request was issued and nothing was logged.
	OutcomeDeferred
	// OutcomeSkipped: a dry-run fetcher declined to issue the request.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeMissing:
		return "missing"
	case OutcomeSoftFail:
		return "soft_fail"
	case OutcomeHardFail:
		return "hard_fail"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Committer performs the final storage write. Implementations run the
// write off the fetch path; Commit blocks until the write resolves.
type Committer interface {
	Commit(ctx context.Context, t task.Task, body io.Reader) (int64, error)
}

// CommitterFunc adapts a function to the Committer interface.
type CommitterFunc func(ctx context.Context, t task.Task, body io.Reader) (int64, error)

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, t task.Task, body io.Reader) (int64, error) {
	return f(ctx, t, body)
}

// RunnerOptions configures the per-task state machine.
type RunnerOptions struct {
	Client    *Client
	Fetcher   Fetcher
	Journal   *journal.Journal
	Committer Committer
	Logger    *zap.Logger

	// SpoolMemory is the in-memory buffer threshold before a download
	// spills to disk. Default: 32 MiB.
	SpoolMemory int64

	// ChunkSize is the body read size. Default: 1 MiB.
	ChunkSize int
}

// Runner drives one task through fetch, classification, streaming and
// commit. Every fault is contained: Run never panics and never
// returns an error, only an outcome.
type Runner struct {
	client    *Client
	fetcher   Fetcher
	journal   *journal.Journal
	committer Committer
	logger    *zap.Logger
	spoolMem  int64
	chunkSize int
}

// NewRunner creates a runner with defaults applied.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.SpoolMemory <= 0 {
		opts.SpoolMemory = 32 * 1024 * 1024
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1024 * 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		client:    opts.Client,
		fetcher:   opts.Fetcher,
		journal:   opts.Journal,
		committer: opts.Committer,
		logger:    opts.Logger,
		spoolMem:  opts.SpoolMemory,
		chunkSize: opts.ChunkSize,
	}
}

// Run executes one task to a terminal outcome.
func (r *Runner) Run(ctx context.Context, t task.Task) (outcome Outcome) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			outcome = r.fail(t, "panic", "panic", fmt.Sprint(p), string(debug.Stack()))
		}
	}()

	// The watchdog cancels the request unless reset by progress. It
	// covers connection, headers, and every body read; the overall
	// transfer deadline stays unbounded.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(r.client.StallTimeout(), cancel)
	defer watchdog.Stop()

	res, err := r.fetcher.Fetch(ctx, r.client, t)
	if err != nil {
		return r.fail(t, "transport", fmt.Sprintf("%T", err), err.Error(), "")
	}
	if res.Skipped {
		r.logger.Debug("dry run, request skipped", zap.String("task", t.ID), zap.String("url", t.URL))
		return OutcomeSkipped
	}

	resp := res.Response
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		if err := r.journal.Missing(t.URL); err != nil {
			r.logger.Error("journal append failed", zap.String("task", t.ID), zap.Error(err))
		}
		r.logger.Info("asset missing at origin", zap.String("task", t.ID), zap.String("url", t.URL))
		return OutcomeMissing
	}

	if resp.StatusCode >= 300 {
		return r.fail(t, "bad_status", "http", resp.Status, "")
	}

	finalURL := resp.Request.URL.String()
	if matchesIgnore(finalURL, t.Ignore) {
		// The server redirected into an out-of-scope domain. At the
		// protocol level this is indistinguishable from success, so it
		// counts as one: retrying forever would never produce bytes.
		if err := r.journal.Redirect(journal.RedirectRecord{OriginalURL: t.URL, FinalURL: finalURL}); err != nil {
			r.logger.Error("journal append failed", zap.String("task", t.ID), zap.Error(err))
		}
		if err := r.journal.Success(t.URL); err != nil {
			r.logger.Error("journal append failed", zap.String("task", t.ID), zap.Error(err))
		}
		r.logger.Info("redirected out of scope",
			zap.String("task", t.ID),
			zap.String("url", t.URL),
			zap.String("final_url", finalURL),
		)
		return OutcomeSuccess
	}

	spool := NewSpool(r.spoolMem)
	defer spool.Close()

	n, err := r.stream(resp.Body, spool, watchdog)
	if err != nil {
		return r.fail(t, "stream", fmt.Sprintf("%T", err), err.Error(), "")
	}
	if n == 0 {
		// A broken link masquerading as HTTP success. Not journaled
		// anywhere, so the next run retries it.
		r.emptyBody(t)
		if t.IsData {
			return OutcomeHardFail
		}
		return OutcomeSoftFail
	}
	watchdog.Stop()

	body, err := spool.Reader()
	if err != nil {
		return r.fail(t, "spool", fmt.Sprintf("%T", err), err.Error(), "")
	}
	written, err := r.committer.Commit(ctx, t, body)
	if err != nil {
		return r.fail(t, "commit", fmt.Sprintf("%T", err), err.Error(), "")
	}

	if err := r.journal.Success(t.URL); err != nil {
		r.logger.Error("journal append failed", zap.String("task", t.ID), zap.Error(err))
	}
	r.logger.Info("asset mirrored",
		zap.String("task", t.ID),
		zap.String("url", t.URL),
		zap.String("destination", t.Destination),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return OutcomeSuccess
}

// stream copies the body into the spool in fixed-size reads, resetting
// the watchdog on every unit of progress.
func (r *Runner) stream(body io.Reader, spool *Spool, watchdog *time.Timer) (int64, error) {
	buf := make([]byte, r.chunkSize)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			watchdog.Reset(r.client.StallTimeout())
			if _, werr := spool.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// fail records a structured error and reports the severity-appropriate
// outcome. The error logs never feed filtering, so the task is
// implicitly retried next run.
func (r *Runner) fail(t task.Task, reason, category, message, stack string) Outcome {
	if err := r.journal.Error(journal.ErrorRecord{
		Reason:   reason,
		Category: category,
		Message:  message,
		Task:     t,
	}); err != nil {
		r.logger.Error("journal append failed", zap.String("task", t.ID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("task", t.ID),
		zap.String("url", t.URL),
		zap.String("reason", reason),
		zap.String("message", message),
	}
	if t.IsData {
		if stack != "" {
			fields = append(fields, zap.String("stack", stack))
		}
		r.logger.Error("data task failed", fields...)
		return OutcomeHardFail
	}
	r.logger.Warn("non-data task failed", fields...)
	return OutcomeSoftFail
}

func (r *Runner) emptyBody(t task.Task) {
	fields := []zap.Field{
		zap.String("task", t.ID),
		zap.String("url", t.URL),
	}
	if t.IsData {
		r.logger.Error("empty response body", fields...)
		return
	}
	r.logger.Warn("empty response body", fields...)
}
