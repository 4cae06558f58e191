package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// File names within the job namespace directory. Success and Missing
// are consumed by the next run's filter; error and redirect records
// are for operators and later metadata reconciliation only.
const (
	successFile      = "success.txt"
	missingFile      = "missing.txt"
	dataErrorFile    = "data_error.jsonl"
	nonDataErrorFile = "non_data_error.jsonl"
	redirectFile     = "redirect.jsonl"
)

// ErrorRecord is one structured failure entry. Field names are stable:
// the persisted file is parsed by external tooling.
type ErrorRecord struct {
	Reason   string    `json:"reason"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Task     task.Task `json:"task"`
	Time     time.Time `json:"time"`
}

// RedirectRecord notes a request that resolved, via redirection, into
// an out-of-scope domain. Used for metadata reconciliation, never for
// control flow.
type RedirectRecord struct {
	OriginalURL string    `json:"original_url"`
	FinalURL    string    `json:"final_url"`
	Time        time.Time `json:"time"`
}

// Journal owns the per-namespace completion logs. All appenders are
// safe for concurrent use; each append is a single line write, which
// is all the synchronization cross-task isolation requires.
type Journal struct {
	success     *lineLog
	missing     *lineLog
	dataErr     *recordLog
	nonDataErr  *recordLog
	redirectLog *recordLog
}

// Open creates (if needed) the namespace directory and opens all five
// logs for appending.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	j := &Journal{}
	var err error
	if j.success, err = openLineLog(filepath.Join(dir, successFile)); err != nil {
		return nil, err
	}
	if j.missing, err = openLineLog(filepath.Join(dir, missingFile)); err != nil {
		j.Close()
		return nil, err
	}
	if j.dataErr, err = openRecordLog(filepath.Join(dir, dataErrorFile)); err != nil {
		j.Close()
		return nil, err
	}
	if j.nonDataErr, err = openRecordLog(filepath.Join(dir, nonDataErrorFile)); err != nil {
		j.Close()
		return nil, err
	}
	if j.redirectLog, err = openRecordLog(filepath.Join(dir, redirectFile)); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// Load reads the Success and Missing sets. Called once at run start;
// the journal is never read mid-run.
func (j *Journal) Load() (success, missing map[string]bool, err error) {
	success, err = readLines(j.success.path)
	if err != nil {
		return nil, nil, err
	}
	missing, err = readLines(j.missing.path)
	if err != nil {
		return nil, nil, err
	}
	return success, missing, nil
}

// Success records a completed URL. Duplicate appends are harmless;
// membership is never revoked.
func (j *Journal) Success(url string) error { return j.success.append(url) }

// Missing records a URL that resolved to HTTP 404. Terminal: the URL
// is excluded from every future run.
func (j *Journal) Missing(url string) error { return j.missing.append(url) }

// Error appends rec to the data or non-data error log per the task's
// kind. These logs never feed filtering, so every entry is implicitly
// retried on the next run.
func (j *Journal) Error(rec ErrorRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if rec.Task.IsData {
		return j.dataErr.append(rec)
	}
	return j.nonDataErr.append(rec)
}

// Redirect appends a redirect record.
func (j *Journal) Redirect(rec RedirectRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	return j.redirectLog.append(rec)
}

// Close releases all file handles.
func (j *Journal) Close() error {
	var first error
	for _, c := range []interface{ close() error }{j.success, j.missing, j.dataErr, j.nonDataErr, j.redirectLog} {
		if c == nil || isNil(c) {
			continue
		}
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isNil(c interface{ close() error }) bool {
	switch v := c.(type) {
	case *lineLog:
		return v == nil
	case *recordLog:
		return v == nil
	}
	return false
}

func readLines(path string) (map[string]bool, error) {
	set := make(map[string]bool)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return set, nil
}
