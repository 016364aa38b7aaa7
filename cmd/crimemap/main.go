package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crime-map/internal/adapter/csvstore"
	httpadapter "github.com/couchcryptid/crime-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crime-map/internal/adapter/kafka"
	"github.com/couchcryptid/crime-map/internal/adapter/postcode"
	"github.com/couchcryptid/crime-map/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/crime-map/internal/adapter/redis"
	"github.com/couchcryptid/crime-map/internal/config"
	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
	"github.com/couchcryptid/crime-map/internal/pipeline"
	"github.com/couchcryptid/crime-map/internal/query"
)

// recordStore is both the record source and the writeback sink.
type recordStore interface {
	pipeline.BatchExtractor
	pipeline.BatchLoader
}

// readiness reports ready only when every check passes.
type readiness []interface {
	CheckReadiness(ctx context.Context) error
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer

	store, closeStore, err := newRecordStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open record source", "source", cfg.RecordSource, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	builder := query.NewBuilder()
	loaders := []pipeline.BatchLoader{store, builder}
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		loaders = append(loaders, writer)
		closers = append(closers, writer)
		logger.Info("kafka publication enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(store, pipeline.NewTransformer(logger, metrics), loaders, logger, metrics, cfg.BatchSize)
	if _, err := p.Run(ctx); err != nil {
		logger.Error("classification failed", "error", err)
		os.Exit(1)
	}

	engine := query.NewEngine(builder.Build(), cfg.DefaultArea, metrics)
	logger.Info("incident corpus ready", "areas", len(engine.Areas()), "period", engine.Period())

	lookup, lookupClosers := newAreaLookup(ctx, cfg, metrics, logger)
	closers = append(closers, lookupClosers...)
	resolver := domain.NewPostcodeResolver(lookup, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, readiness{p, engine}, engine, resolver, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newRecordStore opens the configured record source.
func newRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordStore, func(), error) {
	switch cfg.RecordSource {
	case config.SourcePostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("record source: postgres")
		return postgres.NewStore(pool, logger), pool.Close, nil
	case config.SourceCSV:
		logger.Info("record source: csv", "dir", cfg.CSVDir, "pattern", cfg.CSVPattern)
		return csvstore.New(cfg.CSVDir, cfg.CSVPattern, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown record source %q", cfg.RecordSource)
	}
}

// newAreaLookup builds the postcode lookup chain: in-process LRU, then Redis
// when configured, then the lookup page.
func newAreaLookup(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.AreaLookup, []io.Closer) {
	var (
		lookup  domain.AreaLookup = postcode.NewClient(cfg.PostcodeLookupURL, cfg.PostcodeTimeout, metrics, logger)
		closers []io.Closer
	)

	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis postcode cache disabled", "error", err)
		} else {
			lookup = redisadapter.NewCachedLookup(lookup, rdb, cfg.PostcodeCacheTTL, metrics, logger)
			closers = append(closers, rdb)
			logger.Info("redis postcode cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.PostcodeCacheTTL)
		}
	}

	if cfg.PostcodeCacheSize > 0 {
		lookup = postcode.NewCachedLookup(lookup, cfg.PostcodeCacheSize, metrics)
		logger.Info("postcode lru cache enabled", "size", cfg.PostcodeCacheSize)
	}

	return lookup, closers
}
