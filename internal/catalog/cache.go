package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	collectionsFile = "collections.json"
	granulesFile    = "granules.json"
)

// Cache persists search results under a job namespace directory so a
// multi-hour mirror run never repeats the catalog query. Deleting the
// cached documents forces a refresh on the next run.
type Cache struct {
	dir    string
	logger *zap.Logger
}

// NewCache creates a cache rooted at dir, creating it if needed.
func NewCache(dir string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Load returns the cached result when both documents exist, otherwise
// runs the query through s and persists what it returns. A partial
// cache (one document of two) is treated as stale and refreshed
// entirely.
func (c *Cache) Load(ctx context.Context, s Searcher, query map[string]string) (*Result, error) {
	cached, err := c.read()
	if err == nil {
		c.logger.Info("using cached search results",
			zap.Int("collections", len(cached.Collections)),
			zap.Int("granules", len(cached.Granules)),
		)
		return cached, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	c.logger.Info("querying catalog", zap.Any("query", query))

	collections, err := s.SearchCollections(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search collections: %w", err)
	}
	granules, err := s.SearchGranules(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search granules: %w", err)
	}

	result := &Result{Collections: collections, Granules: granules}
	if err := c.write(result); err != nil {
		return nil, err
	}

	c.logger.Info("cached search results",
		zap.Int("collections", len(result.Collections)),
		zap.Int("granules", len(result.Granules)),
	)
	return result, nil
}

func (c *Cache) read() (*Result, error) {
	var result Result
	if err := readJSON(filepath.Join(c.dir, collectionsFile), &result.Collections); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(c.dir, granulesFile), &result.Granules); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Cache) write(result *Result) error {
	if err := writeJSON(filepath.Join(c.dir, collectionsFile), result.Collections); err != nil {
		return err
	}
	return writeJSON(filepath.Join(c.dir, granulesFile), result.Granules)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
