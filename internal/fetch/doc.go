// Package fetch implements the per-task state machine:
//
//	Pending → Requesting → {Success, Missing, SoftFail, HardFail, Deferred}
//
// A task fetches its URL with a bounded connect timeout and a per-read
// stall watchdog but no overall deadline, classifies the response,
// streams the body into a spooled buffer, and commits the fully
// buffered content as a single storage write. Every fault is contained
// to the task: one bad URL never aborts the batch.
//
// The Fetcher registry maps a config task_class name to a request
// behavior, so per-host quirks (signed-URL hosts, dry runs) stay
// pluggable without dynamic resolution.
package fetch
