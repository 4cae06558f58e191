package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eosdis-nasa/earthdata-mirror/internal/journal"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// memCommitter collects committed assets in memory.
type memCommitter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	panics  bool
}

func (m *memCommitter) Commit(ctx context.Context, t task.Task, body io.Reader) (int64, error) {
	if m.panics {
		panic("committer exploded")
	}
	if m.err != nil {
		return 0, m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[t.Destination] = data
	return int64(len(data)), nil
}

type testEnv struct {
	runner    *Runner
	committer *memCommitter
	dir       string
}

func newTestEnv(t *testing.T, opts ClientOptions) *testEnv {
	t.Helper()
	dir := t.TempDir()

	j, err := journal.Open(dir)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	committer := &memCommitter{}
	fetcher, err := NewFetcher("default")
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	return &testEnv{
		runner: NewRunner(RunnerOptions{
			Client:    NewClient(opts),
			Fetcher:   fetcher,
			Journal:   j,
			Committer: committer,
			Logger:    zaptest.NewLogger(t),
		}),
		committer: committer,
		dir:       dir,
	}
}

func (e *testEnv) fileLines(t *testing.T, name string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", name, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRunSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ab"))
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	tk := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", Destination: "archive/a.hdf", IsData: true}

	if got := env.runner.Run(context.Background(), tk); got != OutcomeSuccess {
		t.Fatalf("outcome: got %v, want success", got)
	}

	if string(env.committer.objects["archive/a.hdf"]) != "ab" {
		t.Error("committed content mismatch")
	}
	if lines := env.fileLines(t, "success.txt"); len(lines) != 1 || lines[0] != tk.URL {
		t.Errorf("success.txt: %v", lines)
	}
	if lines := env.fileLines(t, "missing.txt"); len(lines) != 0 {
		t.Errorf("missing.txt should be empty, got %v", lines)
	}
}

func TestRunNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	tk := task.Task{ID: "G1:0", URL: server.URL + "/gone.hdf", IsData: true}

	if got := env.runner.Run(context.Background(), tk); got != OutcomeMissing {
		t.Fatalf("outcome: got %v, want missing", got)
	}
	if lines := env.fileLines(t, "missing.txt"); len(lines) != 1 || lines[0] != tk.URL {
		t.Errorf("missing.txt: %v", lines)
	}
	if len(env.committer.objects) != 0 {
		t.Error("404 must not commit anything")
	}
	// Never retried, but also never an error record.
	if lines := env.fileLines(t, "data_error.jsonl"); len(lines) != 0 {
		t.Errorf("data_error.jsonl should be empty, got %v", lines)
	}
}

func TestRunBadStatusSeverity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})

	dataTask := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", IsData: true}
	if got := env.runner.Run(context.Background(), dataTask); got != OutcomeHardFail {
		t.Fatalf("data outcome: got %v, want hard_fail", got)
	}

	docTask := task.Task{ID: "C1:0", URL: server.URL + "/a.pdf", IsData: false}
	if got := env.runner.Run(context.Background(), docTask); got != OutcomeSoftFail {
		t.Fatalf("non-data outcome: got %v, want soft_fail", got)
	}

	var rec journal.ErrorRecord
	dataLines := env.fileLines(t, "data_error.jsonl")
	if len(dataLines) != 1 {
		t.Fatalf("data_error.jsonl: %v", dataLines)
	}
	if err := json.Unmarshal([]byte(dataLines[0]), &rec); err != nil {
		t.Fatalf("decode error record: %v", err)
	}
	if rec.Reason != "bad_status" || rec.Task.ID != "G1:0" {
		t.Errorf("unexpected record: %+v", rec)
	}

	if lines := env.fileLines(t, "non_data_error.jsonl"); len(lines) != 1 {
		t.Errorf("non_data_error.jsonl: %v", lines)
	}
	// Neither populates Success/Missing: both retried next run.
	if lines := env.fileLines(t, "success.txt"); len(lines) != 0 {
		t.Errorf("success.txt should be empty, got %v", lines)
	}
}

func TestRunIgnoredRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.hdf", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/urs/oauth/authorize", http.StatusFound)
	})
	mux.HandleFunc("/urs/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>sign in</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	tk := task.Task{
		ID:          "G1:0",
		URL:         server.URL + "/a.hdf",
		Destination: "archive/a.hdf",
		IsData:      true,
		Ignore:      []string{"/urs/"},
	}

	if got := env.runner.Run(context.Background(), tk); got != OutcomeSuccess {
		t.Fatalf("outcome: got %v, want success", got)
	}

	if len(env.committer.objects) != 0 {
		t.Error("ignored redirect must not write content")
	}
	if lines := env.fileLines(t, "success.txt"); len(lines) != 1 || lines[0] != tk.URL {
		t.Errorf("success.txt: %v", lines)
	}

	redirects := env.fileLines(t, "redirect.jsonl")
	if len(redirects) != 1 {
		t.Fatalf("expected exactly one redirect record, got %v", redirects)
	}
	var rec journal.RedirectRecord
	if err := json.Unmarshal([]byte(redirects[0]), &rec); err != nil {
		t.Fatalf("decode redirect record: %v", err)
	}
	if rec.OriginalURL != tk.URL || !strings.Contains(rec.FinalURL, "/urs/oauth/authorize") {
		t.Errorf("unexpected redirect record: %+v", rec)
	}
}

func TestRunEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	tk := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", Destination: "archive/a.hdf", IsData: true}

	if got := env.runner.Run(context.Background(), tk); got != OutcomeHardFail {
		t.Fatalf("outcome: got %v, want hard_fail", got)
	}

	// Distinct failure: no content, no success, no missing, no error
	// record. The next run retries it.
	if len(env.committer.objects) != 0 {
		t.Error("empty body must not be written")
	}
	for _, name := range []string{"success.txt", "missing.txt", "data_error.jsonl", "non_data_error.jsonl"} {
		if lines := env.fileLines(t, name); len(lines) != 0 {
			t.Errorf("%s should be empty, got %v", name, lines)
		}
	}
}

func TestRunCommitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	env.committer.err = io.ErrClosedPipe

	tk := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", IsData: true}
	if got := env.runner.Run(context.Background(), tk); got != OutcomeHardFail {
		t.Fatalf("outcome: got %v, want hard_fail", got)
	}

	lines := env.fileLines(t, "data_error.jsonl")
	if len(lines) != 1 {
		t.Fatalf("data_error.jsonl: %v", lines)
	}
	var rec journal.ErrorRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Reason != "commit" {
		t.Errorf("reason: got %q, want commit", rec.Reason)
	}
}

func TestRunPanicRecovered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{})
	env.committer.panics = true

	tk := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", IsData: true}
	if got := env.runner.Run(context.Background(), tk); got != OutcomeHardFail {
		t.Fatalf("outcome: got %v, want hard_fail", got)
	}

	lines := env.fileLines(t, "data_error.jsonl")
	if len(lines) != 1 {
		t.Fatalf("data_error.jsonl: %v", lines)
	}
	var rec journal.ErrorRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Reason != "panic" || !strings.Contains(rec.Message, "committer exploded") {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRunStalledBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte("y"))
	}))
	defer server.Close()

	env := newTestEnv(t, ClientOptions{StallTimeout: 50 * time.Millisecond})
	tk := task.Task{ID: "G1:0", URL: server.URL + "/a.hdf", IsData: false}

	if got := env.runner.Run(context.Background(), tk); got != OutcomeSoftFail {
		t.Fatalf("outcome: got %v, want soft_fail", got)
	}
	if lines := env.fileLines(t, "non_data_error.jsonl"); len(lines) != 1 {
		t.Errorf("expected one error record for the stall, got %v", lines)
	}
}

func TestRunSkippedWritesNothing(t *testing.T) {
	env := newTestEnv(t, ClientOptions{})
	fetcher, _ := NewFetcher("noop")
	env.runner.fetcher = fetcher

	tk := task.Task{ID: "G1:0", URL: "https://never.example.gov/a.hdf"}
	if got := env.runner.Run(context.Background(), tk); got != OutcomeSkipped {
		t.Fatalf("outcome: got %v, want skipped", got)
	}
	for _, name := range []string{"success.txt", "missing.txt", "data_error.jsonl", "non_data_error.jsonl", "redirect.jsonl"} {
		if lines := env.fileLines(t, name); len(lines) != 0 {
			t.Errorf("%s should be empty after dry run, got %v", name, lines)
		}
	}
}
