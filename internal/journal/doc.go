// Package journal persists per-namespace completion logs.
//
// Two kinds of logs exist. The URL lists (success.txt, missing.txt)
// are the resume state: read once at run start, appended during the
// run, never revoked. The structured logs (data_error.jsonl,
// non_data_error.jsonl, redirect.jsonl) are diagnostic output; nothing
// filters on them, so every recorded error is implicitly retried by
// the next run.
package journal
