package di

import (
	"context"
	"fmt"
	"time"

	"HistPull/internal/domain/repository"
	internalrepo "HistPull/internal/repository"
	"HistPull/internal/service/maticalgos"
	"HistPull/internal/service/ratelimit"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	pkgch "HistPull/pkg/clickhouse"
	"HistPull/pkg/config"
	pkgkafka "HistPull/pkg/kafka"
	applogger "HistPull/pkg/logger"
	"HistPull/pkg/metrics"
	"HistPull/pkg/server"
)

// ProvideLogger builds the process logger. The cleanup closes the log file.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideVendorClient creates the vendor session. Login happens in the app.
func ProvideVendorClient(cfg *config.Config, l *applogger.Logger) *maticalgos.Client {
	return maticalgos.New(maticalgos.Config{
		BaseURL:  cfg.Source.BaseURL,
		Email:    cfg.Source.Email,
		Password: cfg.Source.Password,
		Timeout:  cfg.Source.Timeout,
		MaxRPS:   cfg.Source.MaxRPS,
	}, maticalgos.WithLogger(l), maticalgos.WithLimiter(ratelimit.New()))
}

// ProvideSession exposes the vendor client as a login-capable session.
func ProvideSession(c *maticalgos.Client) repository.Session {
	return c
}

// ProvideDataSource returns the fetch side of the session, serialized when
// the vendor session must not be shared between workers.
func ProvideDataSource(cfg *config.Config, c *maticalgos.Client) repository.DataSource {
	if cfg.Source.SerializeFetch {
		return usecase.Serialize(c)
	}
	return c
}

// ProvidePathPlanner creates the directory planner for the output root.
func ProvidePathPlanner(cfg *config.Config) repository.PathPlanner {
	return internalrepo.NewDirPlanner(cfg.Download.RootDir)
}

// ProvidePersister creates the file persister for the configured format.
func ProvidePersister(cfg *config.Config) (repository.Persister, error) {
	enc, err := internalrepo.NewEncoder(cfg.Download.Format)
	if err != nil {
		return nil, err
	}
	return internalrepo.NewFilePersister(enc), nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.Download.MaxWorkers+1, cfg.Download.MaxWorkers),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.MarketRowsSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRowSinks lists the enabled row sinks.
func ProvideRowSinks(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) []repository.RowSink {
	var sinks []repository.RowSink
	if ch != nil {
		sinks = append(sinks, internalrepo.NewClickHouseSink(ch, cfg.ClickHouse.Database, l))
	}
	return sinks
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config, rec *metrics.Recorder) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(rec.Registry()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher returns the Kafka publisher or a no-op one.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return usecase.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(256), cache.WithMemoryCleanup(time.Minute))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideReportStore creates the batch report store.
func ProvideReportStore(cfg *config.Config, c cache.Service) repository.ReportStore {
	return internalrepo.NewCacheReportStore(c, cfg.Redis.ReportTTL)
}

// ProvideBatchDownloader wires the per-task pipeline and worker pool.
func ProvideBatchDownloader(
	cfg *config.Config,
	src repository.DataSource,
	planner repository.PathPlanner,
	persister repository.Persister,
	sinks []repository.RowSink,
	pub repository.EventPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.BatchDownloader {
	return usecase.NewBatchDownloader(src, planner, persister,
		usecase.WithMaxWorkers(cfg.Download.MaxWorkers),
		usecase.WithSinks(sinks...),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(rec),
		usecase.WithLogger(l),
	)
}

// ProvideDownloadService creates the run-level service.
func ProvideDownloadService(
	cfg *config.Config,
	session repository.Session,
	downloader *usecase.BatchDownloader,
	store repository.ReportStore,
	pub repository.EventPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.DownloadService {
	push := usecase.PushTarget{Job: cfg.Metrics.Job}
	if cfg.Metrics.Enabled {
		push.URL = cfg.Metrics.PushURL
	}
	return usecase.NewDownloadService(session, downloader, store, pub, rec, push, cfg.Download.Instruments, l)
}

// ProvideApp creates the application.
func ProvideApp(cfg *config.Config, svc *usecase.DownloadService, rec *metrics.Recorder, l *applogger.Logger) *server.App {
	return server.New(cfg, svc, rec, l)
}
