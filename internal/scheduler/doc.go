// Package scheduler executes the filtered task set.
//
// Execution happens in two sequential waves, data tasks first, so
// payload integrity and bandwidth take priority over ancillary assets.
// Within a wave every task is fanned out immediately and gated by a
// weighted semaphore; the cooperative stop flag is consulted at
// admission only, so work already admitted always runs to completion.
// Final storage writes go through the CommitPool's dedicated workers.
package scheduler
