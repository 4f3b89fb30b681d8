package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repeateval/repeat/internal/cache"
	"github.com/repeateval/repeat/internal/config"
	"github.com/repeateval/repeat/internal/evaluation"
	"github.com/repeateval/repeat/internal/metrics"
	"github.com/repeateval/repeat/internal/pkg/logger"
	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/store"
)

// app holds the services shared by every command of one run.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	storage *store.FileStorage
	cache   cache.Cache
	svc     *query.Service
	agg     *evaluation.Aggregator
	metrics *metrics.Metrics

	format      string
	dumpMetrics bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	storeRoot, _ := flags.GetString("store")
	cacheType, _ := flags.GetString("cache")
	format, _ := flags.GetString("format")
	logLevel, _ := flags.GetString("log-level")
	verbose, _ := flags.GetBool("verbose")
	dumpMetrics, _ := flags.GetBool("metrics")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override from flags
	if storeRoot != "" {
		cfg.Store.Root = storeRoot
	}
	if cacheType != "" {
		cfg.Cache.Type = cacheType
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if format != formatCSV && format != formatJSON {
		return nil, fmt.Errorf("invalid format: %s (must be csv or json)", format)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	layout := store.NewLayout(cfg.Store.Root)
	layout.LabelsSuffix = cfg.Store.LabelsSuffix
	storage := store.NewFileStorageWithLayout(layout)

	c, err := newCache(cfg)
	if err != nil {
		return nil, err
	}
	loader := cache.NewLoader(c, cache.Kind(cfg.Cache.Type))

	svc := query.NewService(storage, loader, log, query.Config{
		DefaultMeasures: cfg.Query.DefaultMeasures,
		StrictParams:    cfg.Query.StrictParams,
	})

	a := &app{
		cfg:         cfg,
		log:         log,
		storage:     storage,
		cache:       c,
		svc:         svc,
		agg:         evaluation.NewAggregator(storage, svc, log),
		format:      format,
		dumpMetrics: dumpMetrics,
	}
	if cfg.Metrics.Enabled || dumpMetrics {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
		svc.SetMetrics(a.metrics)
	}

	log.Debug("Store opened", "root", cfg.Store.Root, "cache", cfg.Cache.Type)
	return a, nil
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cache.Kind(cfg.Cache.Type) {
	case cache.KindMemory:
		return cache.NewMemory(cfg.CacheTTL(), cfg.CacheCleanupInterval()), nil
	case cache.KindRedis:
		c, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.KeyPrefix, cfg.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect fragment cache: %w", err)
		}
		return c, nil
	default:
		return cache.None{}, nil
	}
}

// close releases the cache and prints the metrics when asked to.
func (a *app) close() {
	if a.dumpMetrics && a.metrics != nil {
		if err := a.metrics.WriteText(os.Stderr); err != nil {
			a.log.Warn("Failed to write metrics", "error", err)
		}
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("Failed to close fragment cache", "error", err)
	}
}
