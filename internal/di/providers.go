package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"MacoPull/internal/domain/repository"
	"MacoPull/internal/handler/api"
	internalrepo "MacoPull/internal/repository"
	"MacoPull/internal/service/finnhub"
	"MacoPull/internal/service/provider"
	"MacoPull/internal/service/ratelimit"
	"MacoPull/internal/service/yahoo"
	"MacoPull/internal/usecase"
	"MacoPull/pkg/blob"
	"MacoPull/pkg/blob/gcs"
	"MacoPull/pkg/blob/local"
	"MacoPull/pkg/blob/redisblob"
	"MacoPull/pkg/cache"
	pkgch "MacoPull/pkg/clickhouse"
	"MacoPull/pkg/config"
	xhttp "MacoPull/pkg/http"
	pkgkafka "MacoPull/pkg/kafka"
	applogger "MacoPull/pkg/logger"
	"MacoPull/pkg/metrics"
	"MacoPull/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRedisCache connects to Redis when enabled. Nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache prefers Redis and falls back to an in-process cache.
func ProvideCache(rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		return rc, func() {}
	}
	mc := cache.NewMemoryCache()
	return mc, func() { _ = mc.Close() }
}

// ProvideBlobStore selects the object store backend.
func ProvideBlobStore(cfg *config.Config, rc *cache.RedisCache) (blob.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		var opts []gcs.Option
		if cfg.Storage.GCS.CredentialsFile != "" {
			opts = append(opts, gcs.WithCredentialsFile(cfg.Storage.GCS.CredentialsFile))
		}
		st, err := gcs.New(context.Background(), cfg.Storage.GCS.Bucket, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	case "redis":
		if rc == nil {
			return nil, nil, fmt.Errorf("redis blob store: redis is not enabled")
		}
		return redisblob.New(rc.Client(), cfg.Storage.Redis.KeyPrefix), func() {}, nil
	default:
		st, err := local.New(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, fmt.Errorf("local store: %w", err)
		}
		return st, func() {}, nil
	}
}

// ProvideSeriesStore creates the versioned CSV series store.
func ProvideSeriesStore(store blob.Store, cfg *config.Config, l *applogger.Logger) repository.SeriesStore {
	return internalrepo.NewBlobSeriesStore(store, cfg.Storage.Prefix, l)
}

// ProvideSummaryStore creates the JSON summary store.
func ProvideSummaryStore(store blob.Store, cfg *config.Config) repository.SummaryStore {
	return internalrepo.NewBlobSummaryStore(store, cfg.Storage.Prefix)
}

func providerPolicy(cfg *config.Config) provider.Policy {
	return provider.Policy{
		MaxRetries:     cfg.MarketData.MaxRetries,
		BackoffInitial: cfg.MarketData.BackoffInitial,
		BackoffMax:     cfg.MarketData.BackoffMax,
		RatePerSec:     cfg.MarketData.RatePerSec,
		Burst:          cfg.MarketData.Burst,
	}
}

// ProvideMarketData creates the configured market data client.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger) (repository.MarketData, error) {
	switch cfg.MarketData.Provider {
	case "yahoo":
		return yahoo.New(yahoo.Config{
			BaseURL:     cfg.Yahoo.BaseURL,
			ProbeSymbol: cfg.Yahoo.ProbeSymbol,
			Timeout:     cfg.MarketData.Timeout,
			SymbolMap:   cfg.Yahoo.SymbolMap,
			Policy:      providerPolicy(cfg),
		}, l), nil
	case "finnhub":
		return finnhub.New(finnhub.Config{
			APIKey:      cfg.Finnhub.APIKey,
			BaseURL:     cfg.Finnhub.BaseURL,
			ProbeSymbol: cfg.Finnhub.ProbeSymbol,
			Timeout:     cfg.MarketData.Timeout,
			SymbolMap:   cfg.Finnhub.SymbolMap,
			Policy:      providerPolicy(cfg),
		}, l), nil
	}
	return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects to ClickHouse when the warehouse is enabled
// and creates the signal table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.Warehouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.SignalTableDDL(cfg.ClickHouse.Database, cfg.Warehouse.Table)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideWarehouse returns the signal warehouse, or nil when ClickHouse is off.
func ProvideWarehouse(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.WarehouseSink {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHWarehouse(ch, cfg.Warehouse.Table, l)
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAutoCreateTopic(true),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideSignalPublisher returns the Kafka signal publisher, or nil when Kafka is off.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePipeline builds the batch orchestrator with its optional side outputs.
func ProvidePipeline(
	cfg *config.Config,
	market repository.MarketData,
	series repository.SeriesStore,
	summaries repository.SummaryStore,
	m repository.Metrics,
	warehouse repository.WarehouseSink,
	publisher repository.SignalPublisher,
	lock cache.Service,
	l *applogger.Logger,
) (*usecase.Pipeline, error) {
	res, err := repository.ParseResolution(cfg.MarketData.Resolution)
	if err != nil {
		return nil, err
	}

	var opts []usecase.PipelineOption
	if warehouse != nil {
		opts = append(opts, usecase.WithWarehouse(warehouse))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	if cfg.Pipeline.Lock.Enabled {
		opts = append(opts, usecase.WithRunLock(lock))
	}

	return usecase.NewPipeline(usecase.PipelineConfig{
		Symbols:          cfg.Pipeline.Symbols,
		Resolution:       res,
		ShortWindow:      cfg.Pipeline.ShortWindow,
		LongWindow:       cfg.Pipeline.LongWindow,
		ForecastLookback: cfg.Pipeline.ForecastLookback,
		SeedHorizon:      cfg.Pipeline.SeedHorizon,
		FailureBackoff:   cfg.Pipeline.FailureBackoff,
		ConflictRetries:  cfg.Pipeline.ConflictRetries,
		LockEnabled:      cfg.Pipeline.Lock.Enabled,
		LockKey:          cfg.Pipeline.Lock.Key,
		LockTTL:          cfg.Pipeline.Lock.TTL,
	}, market, series, summaries, m, l, opts...), nil
}

// ProvideSeriesQuery creates the read-side series use case.
func ProvideSeriesQuery(series repository.SeriesStore, cfg *config.Config) *usecase.SeriesQuery {
	return usecase.NewSeriesQuery(series, cfg.Pipeline.ShortWindow, cfg.Pipeline.LongWindow, cfg.Pipeline.ForecastLookback)
}

// ProvidePipelineHandler creates the HTTP API handler.
func ProvidePipelineHandler(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	query *usecase.SeriesQuery,
	summaries repository.SummaryStore,
	warehouse repository.WarehouseSink,
	c cache.Service,
) *api.PipelineHandler {
	opts := []api.HandlerOption{
		api.WithSummaryCache(c, cfg.Server.SummaryCacheTTL),
		api.WithRunLimiter(ratelimit.New(cfg.Server.RunBurst, cfg.Server.RunRefillPerSec)),
	}
	if warehouse != nil {
		opts = append(opts, api.WithWarehouseReader(warehouse))
	}
	return api.NewPipelineHandler(l, pipeline, query, summaries, opts...)
}

// ProvideHTTPServer creates the echo server with the API routes.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.PipelineHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application.
func ProvideApp(cfg *config.Config, l *applogger.Logger, pipeline *usecase.Pipeline, srv *xhttp.Server) *server.App {
	return server.New(cfg, l, pipeline, srv)
}
