package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/finstat/internal/extract"
	"github.com/sells-group/finstat/internal/fetch"
	"github.com/sells-group/finstat/internal/normalize"
	"github.com/sells-group/finstat/internal/store"
	"github.com/sells-group/finstat/internal/worker"
	anthropicpkg "github.com/sells-group/finstat/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline collaborators needed
// by the worker/compile/serve commands.
type pipelineEnv struct {
	Store      store.Store
	Activities *worker.Activities
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "finstat.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, fetchers, extractor and discoverer, and
// bundles them as worker activities. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	normalizer, err := initNormalizer()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPOptions{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		DefaultRate: rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSecond), cfg.Fetch.RateBurst),
	})
	ftpFetcher := fetch.NewFTPFetcher(fetch.FTPOptions{
		Timeout: time.Duration(cfg.Fetch.FTPTimeoutSecs) * time.Second,
	})
	dispatcher := fetch.NewDispatcher(httpFetcher, ftpFetcher)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	extractor := extract.NewLLMExtractor(anthropicClient, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	if cfg.Fetch.IndexBaseURL == "" {
		zap.L().Warn("FINSTAT_FETCH_INDEX_BASE_URL not set, document discovery disabled")
	}

	return &pipelineEnv{
		Store: st,
		Activities: &worker.Activities{
			Store:       st,
			Normalizer:  normalizer,
			Fetcher:     dispatcher,
			Extractor:   extractor,
			Discoverer:  fetch.NewIndexDiscoverer(httpFetcher, cfg.Fetch.IndexBaseURL),
			DownloadDir: cfg.Fetch.DownloadDir,
			Concurrency: cfg.Worker.DocumentConcurrency,
		},
	}, nil
}

func initNormalizer() (*normalize.Normalizer, error) {
	opts := normalize.Options{Threshold: cfg.Normalize.SimilarityThreshold}
	if path := cfg.Normalize.ManualMappingsPath; path != "" {
		manual, err := normalize.LoadManualMappings(path)
		if err != nil {
			return nil, err
		}
		opts.Manual = manual
		zap.L().Info("loaded manual name mappings", zap.Int("count", len(manual)))
	}
	return normalize.New(opts), nil
}

func initTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dial temporal")
	}
	return c, nil
}
