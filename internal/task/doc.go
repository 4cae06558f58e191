// Package task turns hierarchical catalog metadata into the flat,
// indexable task set the scheduler executes.
//
// Extraction is deterministic: for a fixed metadata snapshot and fixed
// ignore/fix rules, task indices form a contiguous permutation of
// 0..N-1 and destinations never change between runs. That stability is
// what makes index-range partitioning across machines and resume
// filtering against the completion logs safe.
package task
