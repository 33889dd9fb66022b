package di

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "time"

    "SignalForge/internal/backtest"
    "SignalForge/internal/domain/models"
    domrepo "SignalForge/internal/domain/repository"
    domsvc "SignalForge/internal/domain/service"
    "SignalForge/internal/evaluator"
    "SignalForge/internal/handler/api"
    "SignalForge/internal/indicator"
    mid "SignalForge/internal/middleware"
    internalrepo "SignalForge/internal/repository"
    icache "SignalForge/internal/service/cache"
    "SignalForge/internal/services/notify"
    "SignalForge/internal/strategy"
    "SignalForge/internal/usecase"
    pkgcache "SignalForge/pkg/cache"
    pkgch "SignalForge/pkg/clickhouse"
    "SignalForge/pkg/config"
    xhttp "SignalForge/pkg/http"
    pkgkafka "SignalForge/pkg/kafka"
    applogger "SignalForge/pkg/logger"
    "SignalForge/pkg/metrics"
    pkgpg "SignalForge/pkg/postgres"
    "SignalForge/pkg/queue"
    "SignalForge/pkg/server"

    "github.com/redis/go-redis/v9"
    kafkago "github.com/segmentio/kafka-go"
    "gorm.io/gorm"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	table := db + "." + cfg.ClickHouse.BarsTable
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + table +
			" (symbol String, ts DateTime, open Float64, high Float64, low Float64, close Float64, volume Float64)" +
			" ENGINE=MergeTree ORDER BY (symbol, ts)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePostgres opens the relational database and migrates the schema.
func ProvidePostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := pkgpg.New(&pkgpg.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		Database:        cfg.Postgres.Database,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pkgpg.Migrate(db,
		&models.IndicatorSnapshot{},
		&models.SignalRecord{},
		&models.Subscriber{},
		&models.SentNotification{},
		&models.BacktestSummary{},
	); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return db, nil
}

// ProvideRedisClient creates a Redis client when enabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCacheService creates the shared cache behind the scheduler run
// lock, the snapshot cache and the dispatch cooldown fast path. Redis-backed
// when available so multiple instances coordinate, in-memory otherwise.
func ProvideCacheService(cfg *config.Config, l *applogger.Logger) pkgcache.Service {
	if cfg.Redis.Enabled {
		if host, portStr, err := net.SplitHostPort(cfg.Redis.Addr); err == nil {
			port, _ := strconv.Atoi(portStr)
			rc, err := pkgcache.NewRedisCache(
				pkgcache.WithRedisHost(host),
				pkgcache.WithRedisPort(port),
				pkgcache.WithRedisPassword(cfg.Redis.Password),
				pkgcache.WithRedisDB(cfg.Redis.DB),
			)
			if err == nil {
				return pkgcache.NewLayeredCache(rc)
			}
			l.Warn("redis cache unavailable, using in-memory cache", applogger.Error(err))
		}
	}
	return pkgcache.NewMemoryCache()
}

// ProvideBarStore creates the ClickHouse bar repository, or the in-memory
// store for dev profiles running without ClickHouse.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) (domrepo.BarStore, error) {
	if chClient == nil {
		return internalrepo.NewMemoryBarStore(), nil
	}
	store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.BarsTable)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store init: %w", err)
	}
	return store, nil
}

// ProvideSnapshotStore creates the indicator snapshot repository.
func ProvideSnapshotStore(db *gorm.DB) domrepo.SnapshotStore {
	return internalrepo.NewPGSnapshotStore(db)
}

// ProvideSignalStore creates the signal repository.
func ProvideSignalStore(db *gorm.DB) domrepo.SignalStore {
	return internalrepo.NewPGSignalStore(db)
}

// ProvideSubscriberStore creates the subscriber repository.
func ProvideSubscriberStore(db *gorm.DB) domrepo.SubscriberStore {
	return internalrepo.NewPGSubscriberStore(db)
}

// ProvideNotificationLedger creates the sent-notification ledger.
func ProvideNotificationLedger(db *gorm.DB) domrepo.NotificationLedger {
	return internalrepo.NewPGNotificationLedger(db)
}

// ProvideBacktestStore creates the backtest summary repository.
func ProvideBacktestStore(db *gorm.DB) domrepo.BacktestStore {
	return internalrepo.NewPGBacktestStore(db)
}

// ProvideStrategyRegistry builds the symbol -> strategy mapping from config.
func ProvideStrategyRegistry(cfg *config.Config) *strategy.Registry {
	params := make(map[string]strategy.Params, len(cfg.Strategies.Params))
	for kind, p := range cfg.Strategies.Params {
		params[kind] = strategy.Params{
			BuyRSI:   p.BuyRSI,
			SellRSI:  p.SellRSI,
			MACDBuy:  p.MACDBuy,
			MACDSell: p.MACDSell,
		}
	}
	return strategy.NewRegistry(cfg.Strategies.Assign, params)
}

// ProvideIndicatorEngine builds the indicator engine from config.
func ProvideIndicatorEngine(cfg *config.Config) *indicator.Engine {
	return indicator.NewEngine(
		cfg.Indicators.RSIPeriod,
		cfg.Indicators.EMAFast,
		cfg.Indicators.EMASlow,
		cfg.Indicators.MACDSignal,
	)
}

// ProvideEvaluator creates the signal evaluator.
func ProvideEvaluator(reg *strategy.Registry) *evaluator.Evaluator {
	return evaluator.New(reg)
}

// ProvideReplayer creates the backtest replayer.
func ProvideReplayer(eval *evaluator.Evaluator) *backtest.Replayer {
	return backtest.NewReplayer(eval)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	tracing := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
	observe := pkgkafka.HookFuncs{
		After: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			if start, ok := ctx.Value(pkgkafka.CtxStartTime).(time.Time); ok {
				m.RecordLatency("consume_"+topic, time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			m.RecordError("kafka_consume")
			l.Warn("kafka message error", applogger.String("topic", topic), applogger.Error(err))
		},
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(tracing, observe))
	return consumer, nil
}

// ProvideIngestPipeline builds the bar ingest pipeline over the bar store.
func ProvideIngestPipeline(bars domrepo.BarStore, m domrepo.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(bars, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideKafkaBarsHandler registers the handler for the bars topic.
func ProvideKafkaBarsHandler(pipe *mid.IngestPipeline, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, pipe, m)
}

// ProvideExplainQueue creates the background explanation queue when both
// Redis and the explainer are enabled.
func ProvideExplainQueue(
	cfg *config.Config,
	rdb *redis.Client,
	signals domrepo.SignalStore,
	l *applogger.Logger,
) *queue.RedisQueue {
	if rdb == nil || !cfg.Explainer.Enabled || cfg.Explainer.URL == "" {
		return nil
	}
	gen := notify.NewHTTPExplanationGenerator(cfg)
	job := notify.NewExplainJob(gen, signals, l)
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    2,
		QueueSize:  1024,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rdb, []queue.Job{job}, queue.WithKeyPrefix("signalforge:queue"))
}

// ProvideDeliveryTransport creates the notification delivery client.
func ProvideDeliveryTransport(cfg *config.Config) domsvc.DeliveryTransport {
	return notify.NewHTTPDeliveryTransport(cfg)
}

// ProvideSignalPipeline assembles the recompute-and-evaluate pipeline.
func ProvideSignalPipeline(
	bars domrepo.BarStore,
	snaps domrepo.SnapshotStore,
	signals domrepo.SignalStore,
	engine *indicator.Engine,
	eval *evaluator.Evaluator,
	m domrepo.Metrics,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	explainQ *queue.RedisQueue,
	cacheSvc pkgcache.Service,
	cfg *config.Config,
) *usecase.SignalPipeline {
	opts := []usecase.SignalPipelineOption{
		usecase.WithWindow(cfg.Indicators.Window),
	}
	if cacheSvc != nil {
		opts = append(opts, usecase.WithSnapshotCache(cacheSvc))
	}
	if producer != nil {
		opts = append(opts, usecase.WithPublisher(producer, cfg.Kafka.SignalsTopic))
	}
	if explainQ != nil {
		opts = append(opts, usecase.WithExplainQueue(explainQ))
	} else if cfg.Explainer.Enabled && cfg.Explainer.URL != "" {
		opts = append(opts, usecase.WithExplainer(notify.NewHTTPExplanationGenerator(cfg)))
	}
	return usecase.NewSignalPipeline(bars, snaps, signals, engine, eval, m, l, opts...)
}

// ProvideDispatcher assembles the notification dispatcher.
func ProvideDispatcher(
	signals domrepo.SignalStore,
	subscribers domrepo.SubscriberStore,
	ledger domrepo.NotificationLedger,
	transport domsvc.DeliveryTransport,
	m domrepo.Metrics,
	l *applogger.Logger,
	cacheSvc pkgcache.Service,
	cfg *config.Config,
) *usecase.NotificationDispatcher {
	opts := []usecase.DispatcherOption{
		usecase.WithMinStrength(cfg.Notifier.MinStrength),
		usecase.WithLookback(cfg.Notifier.Lookback),
		usecase.WithCooldown(cfg.Notifier.Cooldown),
	}
	if cacheSvc != nil {
		opts = append(opts, usecase.WithCooldownCache(cacheSvc))
	}
	return usecase.NewNotificationDispatcher(signals, subscribers, ledger, transport, m, l, opts...)
}

// ProvideReplayUseCase assembles the historical replay use case.
func ProvideReplayUseCase(
	bars domrepo.BarStore,
	snaps domrepo.SnapshotStore,
	signals domrepo.SignalStore,
	backtests domrepo.BacktestStore,
	engine *indicator.Engine,
	replayer *backtest.Replayer,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ReplayUseCase {
	return usecase.NewReplayUseCase(bars, snaps, signals, backtests, engine, replayer, m, l)
}

// ProvideOpsHandler builds the operational HTTP surface.
func ProvideOpsHandler(
	l *applogger.Logger,
	pipeline *usecase.SignalPipeline,
	dispatcher *usecase.NotificationDispatcher,
	replay *usecase.ReplayUseCase,
	bars domrepo.BarStore,
	signals domrepo.SignalStore,
	rdb *redis.Client,
	cfg *config.Config,
) xhttp.Handler {
	h := api.NewOpsEchoHandler(l, pipeline, dispatcher, replay, bars, signals, cfg.Strategies.Symbols)
	if rdb != nil {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    pipeline *usecase.SignalPipeline,
    dispatcher *usecase.NotificationDispatcher,
    consumer *pkgkafka.Consumer,
    kh *usecase.KafkaBarsHandler,
    ingest *mid.IngestPipeline,
    producer *pkgkafka.Producer,
    chClient *pkgch.Client,
    explainQ *queue.RedisQueue,
    handler xhttp.Handler,
    runLock pkgcache.Service,
) *server.App {
    var mh pkgkafka.MessageHandler
    if consumer != nil {
        mh = kh
    }
    app := server.New(cfg, pipeline, dispatcher, consumer, mh)
    app.SetHTTPHandler(handler)
    app.SetIngestPipeline(ingest)
    app.SetRunLock(runLock)
    if explainQ != nil {
        app.SetExplainQueue(explainQ)
    }
    if chClient != nil {
        app.AddCloser(chClient)
    }
    if producer != nil {
        app.AddCloser(producer)
    }
    return app
}
