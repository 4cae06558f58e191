package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eosdis-nasa/earthdata-mirror/internal/catalog"
	"github.com/eosdis-nasa/earthdata-mirror/internal/config"
	"github.com/eosdis-nasa/earthdata-mirror/internal/fetch"
	"github.com/eosdis-nasa/earthdata-mirror/internal/journal"
	"github.com/eosdis-nasa/earthdata-mirror/internal/scheduler"
	"github.com/eosdis-nasa/earthdata-mirror/internal/shutdown"
	"github.com/eosdis-nasa/earthdata-mirror/internal/store"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

const commitWorkers = 4

type runOptions struct {
	configPath    string
	outputDir     string
	concurrency   int
	startIndex    int
	endIndex      int
	whitelistFile string
	stateDir      string
	verbose       bool
}

func defaultRunOptions() runOptions {
	return runOptions{
		concurrency: scheduler.DefaultConcurrency,
		startIndex:  0,
		endIndex:    -1,
		stateDir:    ".",
	}
}

// errNoSearcher stands in when no catalog search collaborator is
// wired: the run then requires pre-cached search results.
var errNoSearcher = errors.New("no cached search results and no catalog searcher configured")

type unavailableSearcher struct{}

func (unavailableSearcher) SearchCollections(context.Context, map[string]string) ([]catalog.Record, error) {
	return nil, errNoSearcher
}

func (unavailableSearcher) SearchGranules(context.Context, map[string]string) ([]catalog.Record, error) {
	return nil, errNoSearcher
}

// runMirror assembles and executes one mirror run. Per-task faults are
// contained inside the scheduler; only configuration and setup
// failures surface as errors here.
func runMirror(ctx context.Context, opts runOptions, searcher catalog.Searcher, logger *zap.Logger) (scheduler.Summary, error) {
	if searcher == nil {
		searcher = unavailableSearcher{}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return scheduler.Summary{}, err
	}

	nsDir := filepath.Join(opts.stateDir, cfg.Name)
	logger = logger.With(zap.String("job", cfg.Name))

	cache, err := catalog.NewCache(nsDir, logger)
	if err != nil {
		return scheduler.Summary{}, err
	}
	result, err := cache.Load(ctx, searcher, cfg.Query)
	if err != nil {
		return scheduler.Summary{}, err
	}

	tasks, err := task.NewExtractor(cfg, logger).Extract(result)
	if err != nil {
		return scheduler.Summary{}, err
	}

	j, err := journal.Open(nsDir)
	if err != nil {
		return scheduler.Summary{}, err
	}
	defer j.Close()

	success, missing, err := j.Load()
	if err != nil {
		return scheduler.Summary{}, err
	}
	excluded := make(map[string]bool, len(success)+len(missing))
	for url := range success {
		excluded[url] = true
	}
	for url := range missing {
		excluded[url] = true
	}

	whitelist, err := loadWhitelist(opts.whitelistFile)
	if err != nil {
		return scheduler.Summary{}, err
	}

	data, nonData := task.Filter{
		Excluded:  excluded,
		Whitelist: whitelist,
		Start:     opts.startIndex,
		End:       opts.endIndex,
	}.Apply(tasks)

	logger.Info("task set ready",
		zap.Int("extracted", len(tasks)),
		zap.Int("excluded", len(excluded)),
		zap.Int("data", len(data)),
		zap.Int("non_data", len(nonData)),
	)

	st, err := store.Open(ctx, opts.outputDir)
	if err != nil {
		return scheduler.Summary{}, err
	}
	defer st.Close()

	fetcher, err := fetch.NewFetcher(cfg.TaskClass)
	if err != nil {
		return scheduler.Summary{}, err
	}

	pool := scheduler.NewCommitPool(st, commitWorkers)
	runner := fetch.NewRunner(fetch.RunnerOptions{
		Client:    fetch.NewClient(fetch.ClientOptions{Credential: credentialFromEnv()}),
		Fetcher:   fetcher,
		Journal:   j,
		Committer: pool,
		Logger:    logger,
	})

	sig := shutdown.New(logger)
	ctx = sig.Install(ctx)

	summary := scheduler.New(runner, sig, logger, opts.concurrency).Run(ctx, data, nonData)

	if err := pool.Close(); err != nil {
		logger.Error("commit pool shutdown", zap.Error(err))
	}
	logger.Info("mirrored bytes", zap.String("total", scheduler.FormatBytes(pool.TotalBytes())))

	return summary, nil
}

// credentialFromEnv reads the shared origin credential. Acquisition
// (token refresh, login flows) happens outside this tool.
func credentialFromEnv() fetch.Credential {
	return fetch.Credential{
		Token:    os.Getenv("EARTHDATA_TOKEN"),
		Username: os.Getenv("EARTHDATA_USERNAME"),
		Password: os.Getenv("EARTHDATA_PASSWORD"),
	}
}

func loadWhitelist(path string) (map[string]bool, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open whitelist: %w", err)
	}
	defer f.Close()

	urls := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			urls[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}
	return urls, nil
}
