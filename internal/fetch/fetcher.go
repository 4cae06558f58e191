package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

// ErrUnknownTaskClass is returned when a config names a fetch behavior
// the registry does not know. Fatal: a typo here would silently change
// what a run does.
var ErrUnknownTaskClass = errors.New("unknown task_class")

// Result is what a Fetcher hands back to the task runner.
type Result struct {
	// Response is the final HTTP response. Nil when Skipped.
	Response *http.Response

	// Skipped marks a dry-run variant that issued no request at all.
	Skipped bool
}

// Fetcher issues the request(s) for a task. Variants exist for hosts
// with quirky access patterns; the config's task_class selects one by
// name from the static registry.
type Fetcher interface {
	Fetch(ctx context.Context, c *Client, t task.Task) (Result, error)
}

var registry = map[string]func() Fetcher{
	"default": func() Fetcher { return defaultFetcher{} },
	"echo":    func() Fetcher { return echoFetcher{} },
	"noop":    func() Fetcher { return noopFetcher{} },
}

// NewFetcher resolves a task_class name to a fetcher.
func NewFetcher(name string) (Fetcher, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownTaskClass, name, knownClasses())
	}
	return ctor(), nil
}

func knownClasses() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultFetcher performs a single GET.
type defaultFetcher struct{}

func (defaultFetcher) Fetch(ctx context.Context, c *Client, t task.Task) (Result, error) {
	resp, err := c.Get(ctx, t.URL)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: resp}, nil
}

// echoFetcher re-requests the resolved URL once. Some hosts answer the
// first GET with a short-lived signed location that only serves bytes
// on a fresh request.
type echoFetcher struct{}

func (echoFetcher) Fetch(ctx context.Context, c *Client, t task.Task) (Result, error) {
	first, err := c.Get(ctx, t.URL)
	if err != nil {
		return Result{}, err
	}

	final := first.Request.URL.String()
	if first.StatusCode >= 300 || final == t.URL || matchesIgnore(final, t.Ignore) {
		return Result{Response: first}, nil
	}

	io.Copy(io.Discard, first.Body)
	first.Body.Close()

	second, err := c.Get(ctx, final)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: second}, nil
}

// noopFetcher never touches the network. Dry runs exercise extraction,
// filtering and scheduling without issuing requests or journal writes.
type noopFetcher struct{}

func (noopFetcher) Fetch(ctx context.Context, c *Client, t task.Task) (Result, error) {
	return Result{Skipped: true}, nil
}

func matchesIgnore(url string, ignore []string) bool {
	for _, s := range ignore {
		if s != "" && strings.Contains(url, s) {
			return true
		}
	}
	return false
}
