// Package shutdown provides the cooperative stop flag consulted at
// task admission.
//
// The first interrupt sets the flag: tasks not yet past slot
// acquisition defer to the next run, while tasks already executing
// finish untouched. A second interrupt cancels the run context and
// abandons in-flight transfers. The flag is process-local, so every
// run starts cleared.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Signal is a process-wide cooperative cancellation flag.
type Signal struct {
	stopped atomic.Bool
	logger  *zap.Logger
}

// New creates an unset signal.
func New(logger *zap.Logger) *Signal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signal{logger: logger}
}

// Install registers SIGINT/SIGTERM handling and returns a context that
// is canceled only on a second signal (or when parent ends).
func (s *Signal) Install(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)

		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.Stop()
			s.logger.Info("shutdown requested, draining in-flight tasks")
		}

		select {
		case <-ctx.Done():
		case <-ch:
			s.logger.Warn("second signal, abandoning in-flight tasks")
			cancel()
		}
	}()

	return ctx
}

// Stop sets the flag directly. Exposed for tests and embedding.
func (s *Signal) Stop() { s.stopped.Store(true) }

// Stopped reports whether shutdown was requested. Checked once per
// task, before slot acquisition; work already admitted never consults
// it again.
func (s *Signal) Stopped() bool { return s.stopped.Load() }
