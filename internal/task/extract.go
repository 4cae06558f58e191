package task

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/eosdis-nasa/earthdata-mirror/internal/catalog"
	"github.com/eosdis-nasa/earthdata-mirror/internal/config"
)

// ErrUnmappedHost is returned when a non-ignored URL's host has no
// entry in hosts_to_paths. This is a configuration gap, not a per-task
// fault: the whole run aborts so the missing rule gets added instead
// of silently dropping assets.
var ErrUnmappedHost = errors.New("host not present in hosts_to_paths")

// Extractor flattens catalog search results into the ordered task
// list.
type Extractor struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewExtractor creates an extractor for the given job config.
func NewExtractor(cfg *config.Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract walks collections fully before granules and, within each
// record, its related URLs in order. Emitted tasks receive contiguous
// indices; skipped (ignored) URLs leave no gap.
func (e *Extractor) Extract(result *catalog.Result) ([]Task, error) {
	var tasks []Task
	seen := make(map[string]string) // destination → task id, for collision warnings

	emit := func(rec catalog.Record, n int, ru catalog.RelatedURL) error {
		fixed := e.cfg.ApplyFixes(ru.URL)
		if e.cfg.Ignored(fixed) {
			return nil
		}

		dest, err := e.destination(fixed)
		if err != nil {
			return fmt.Errorf("task %s: %w", rec.TaskID(n), err)
		}

		if prev, ok := seen[dest]; ok {
			e.logger.Warn("destination collision, last writer wins",
				zap.String("destination", dest),
				zap.String("task", rec.TaskID(n)),
				zap.String("previous_task", prev),
			)
		}
		seen[dest] = rec.TaskID(n)

		tasks = append(tasks, Task{
			Index:       len(tasks),
			ID:          rec.TaskID(n),
			URL:         fixed,
			Destination: dest,
			IsData:      ru.Kind.IsData(),
			Namespace:   e.cfg.Name,
			Ignore:      e.cfg.Ignore,
		})
		return nil
	}

	for _, rec := range result.Collections {
		for n, ru := range rec.RelatedURLs {
			if err := emit(rec, n, ru); err != nil {
				return nil, err
			}
		}
	}
	for _, rec := range result.Granules {
		for n, ru := range rec.RelatedURLs {
			if err := emit(rec, n, ru); err != nil {
				return nil, err
			}
		}
	}

	e.logger.Info("extracted tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}

// destination maps a URL to its storage key: the host's configured
// path root joined with the URL path, with the query string appended
// after "?" when present.
func (e *Extractor) destination(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}

	root, ok := e.cfg.HostsToPaths[u.Host]
	if !ok {
		return "", fmt.Errorf("%w: %q (url %s)", ErrUnmappedHost, u.Host, raw)
	}

	dest := path.Join(root, strings.TrimPrefix(u.Path, "/"))
	if u.RawQuery != "" {
		dest += "?" + u.RawQuery
	}
	return dest, nil
}
