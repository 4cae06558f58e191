// Package store abstracts the mirror destination behind gocloud blob
// storage.
//
// A local output directory and a cloud bucket behave identically from
// the task's point of view: one buffered asset in, one object write
// out. Keeping commits to a single write matters for object stores
// where partial writes are costly (multi-part upload semantics).
package store
