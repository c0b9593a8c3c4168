package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service", "port", cfg.Server.Port, "catalog_source", cfg.Catalog.Source)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}
	checker := health.NewChecker(0)

	source, closeSource, err := openSource(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeSource()

	var queryCache *cache.QueryCache
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
				Failures: cfg.Redis.BreakerFailures,
				Reset:    cfg.Redis.BreakerReset,
			})
			queryCache = cache.New(cache.WithBreaker(redisClient, breaker), cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	engineOpts := []indexer.Option{
		indexer.WithMetrics(m),
		indexer.WithNormalizer(normalizer.New(normalizer.Options{
			ExtraChars:          cfg.Search.ExtraChars,
			StripLeadingArticle: cfg.Search.StripLeadingArticle,
		})),
	}
	if queryCache != nil {
		engineOpts = append(engineOpts, indexer.WithRebuildHook(func(ctx context.Context, snap *indexer.Snapshot) {
			// Old versions can no longer be hit; free their memory.
			if _, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after rebuild failed", "version", snap.Version, "error", err)
			}
		}))
	}
	var producers []*kafka.Producer
	defer func() {
		for _, p := range producers {
			_ = p.Close()
		}
	}()
	if cfg.Kafka.Enabled() {
		notices := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt)
		producers = append(producers, notices)
		engineOpts = append(engineOpts, indexer.WithPublisher(notices))
	}
	engine := indexer.NewEngine(source, engineOpts...)

	err = resilience.Retry(ctx, "initial index build", resilience.RetryConfig{
		MaxAttempts:  cfg.Catalog.LoadAttempts,
		InitialDelay: 500 * time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, apperrors.ErrDuplicateID) },
	}, func(ctx context.Context) error {
		_, err := engine.Rebuild(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("building initial index: %w", err)
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := engine.Current()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("version %d, %d titles", snap.Version, snap.Index.Len()),
		}
	})
	engine.StartRefreshLoop(ctx, cfg.Catalog.RefreshInterval)

	g, gctx := errgroup.WithContext(ctx)

	var collector *analytics.Collector
	if cfg.Kafka.Enabled() {
		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		producers = append(producers, events)
		collector = analytics.NewCollector(events, 10000, 100, 5*time.Second, m)
		collector.Start(gctx)
		defer collector.Close()

		// Every replica holds its own index, so each needs every change event.
		changesCfg := cfg.Kafka
		changesCfg.ConsumerGroup = instanceGroup(cfg.Kafka.ConsumerGroup)
		changes := kafka.NewConsumer(changesCfg, cfg.Kafka.Topics.CatalogChanged, consumer.HandleMessage(engine))
		g.Go(func() error { return changes.Start(gctx) })
		slog.Info("kafka integration enabled", "brokers", cfg.Kafka.Brokers, "group", changesCfg.ConsumerGroup)
	}

	exec := executor.New(engine, cfg.Search, m)
	mux := http.NewServeMux()
	handler.New(exec, engine, queryCache, collector, m).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
		chain = middleware.RateLimit(limiter, "/api/v1/search", proxies, m)(chain)
	}
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// instanceGroup derives a consumer group unique to this host.
func instanceGroup(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return base + "-" + host
}

// openSource builds the configured catalog source and registers its health
// check. The returned func releases its resources.
func openSource(ctx context.Context, cfg *config.Config, checker *health.Checker) (catalog.Source, func(), error) {
	switch cfg.Catalog.Source {
	case config.SourceCSV:
		slog.Info("loading catalog from csv", "path", cfg.Catalog.CSVPath)
		return catalog.NewCSVSource(cfg.Catalog.CSVPath), func() {}, nil
	default:
		var client *postgres.Client
		err := resilience.Retry(ctx, "connect postgres", resilience.RetryConfig{MaxAttempts: cfg.Catalog.LoadAttempts}, func(ctx context.Context) error {
			var err error
			client, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to catalog database: %w", err)
		}
		checker.Register("postgres", health.Ping(client.Ping, true))
		slog.Info("catalog database connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return catalog.NewPostgresSource(client, cfg.Catalog.Query), func() { _ = client.Close() }, nil
	}
}
