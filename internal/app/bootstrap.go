package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gunvolt24/resto_sync/config"
	cachemem "github.com/Gunvolt24/resto_sync/internal/cache/memory"
	"github.com/Gunvolt24/resto_sync/internal/connectivity"
	"github.com/Gunvolt24/resto_sync/internal/docstore"
	docmem "github.com/Gunvolt24/resto_sync/internal/docstore/memory"
	pgstore "github.com/Gunvolt24/resto_sync/internal/docstore/postgres"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/kafka"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/internal/queue"
	"github.com/Gunvolt24/resto_sync/internal/realtime"
	"github.com/Gunvolt24/resto_sync/internal/retry"
	"github.com/Gunvolt24/resto_sync/internal/storage/local"
	"github.com/Gunvolt24/resto_sync/internal/syncer"
	rest "github.com/Gunvolt24/resto_sync/internal/transport/http"
	"github.com/Gunvolt24/resto_sync/internal/usecase"
	"github.com/Gunvolt24/resto_sync/internal/worker"
	"github.com/Gunvolt24/resto_sync/pkg/logger"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"github.com/Gunvolt24/resto_sync/pkg/telemetry"
	"github.com/Gunvolt24/resto_sync/pkg/validate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App — собранное приложение: серверы, консьюмер и фоновые задачи.
type App struct {
	Logger        ports.Logger     // логгер
	HTTPServer    *http.Server     // API
	WorkerServer  *http.Server     // кэширующий воркер; nil — выключен
	MetricsServer *http.Server     // отдельный /metrics; nil — только на API
	KafkaConsumer ports.ChangeFeed // лента изменений; nil — Kafka выключена
	Background    []Component      // фоновые циклы до отмены контекста
	Syncer        *syncer.Manager  // стартует в Run, чтобы разобрать очередь с прошлого запуска

	gracefulTimeout time.Duration // время ожидания завершения серверов
}

// Component — именованный фоновый цикл; возвращает ctx.Err() после отмены.
type Component struct {
	Name string
	Run  func(ctx context.Context) error
}

// Cleanup — функция освобождения ресурсов.
type Cleanup func()

// applyGinMode — устанавливает режим Gin по строке;
// неизвестное значение → debug и предупреждение в лог.
func applyGinMode(ctx context.Context, mode string, log ports.Logger) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	case "", "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.DebugMode)
		log.Warnf(ctx, "unknown GIN_MODE=%q, fallback to debug", mode)
	}
}

// closers — освобождение ресурсов в обратном порядке.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// Bootstrap — собирает зависимости и возвращает приложение, функцию очистки и ошибку.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, Cleanup, error) {
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		return nil, func() {}, err
	}
	var cl closers
	cl.add(func() {
		if cErr := cleanupLogger(); cErr != nil {
			logg.Warnf(context.Background(), "cleanup logger: %v", cErr)
		}
	})
	fail := func(err error) (*App, Cleanup, error) {
		cl.run()
		return nil, func() {}, err
	}

	metrics.MustRegister()

	manifest, err := config.LoadManifest(cfg.Worker.ManifestPath)
	if err != nil {
		return fail(fmt.Errorf("worker manifest: %w", err))
	}

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию — no-op.
	shutdownTrace := telemetry.Shutdown(telemetry.Noop)
	if cfg.Tracing.Enabled {
		setup, tErr := telemetry.SetupTracing(ctx, telemetry.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Version:     manifest.Version,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if tErr != nil {
			logg.Warnf(ctx, "failed to setup tracing: %v", tErr)
		} else {
			logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
				cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
			shutdownTrace = setup
		}
	}
	cl.add(func() {
		if tErr := shutdownTrace(context.Background()); tErr != nil {
			logg.Warnf(context.Background(), "shutdown tracing: %v", tErr)
		}
	})

	// Локальное долговременное хранилище: очередь синхронизации и зеркало кэша.
	// Разделы воркера живут в своём каталоге, чтобы не вытеснять несинхронизированные операции.
	durable, workerStorage, err := openDurable(cfg)
	if err != nil {
		return fail(err)
	}

	ordersCache := cachemem.NewTTLCache("orders", cfg.Cache.Capacity, cfg.Cache.TTL,
		cachemem.WithClone(domain.CloneOrders),
		cachemem.WithLogger[[]*domain.Order](logg),
		cachemem.WithMirror[[]*domain.Order](durable, cfg.Cache.MirrorPrefix, cfg.Cache.MirrorTTL),
	)
	hub := realtime.NewHub(logg, realtime.WithInvalidator(ordersCache))

	// Лента изменений: с Kafka хаб получает события через консьюмера, без неё — напрямую.
	notifier := docstore.Notifier{Hub: hub, Log: logg}
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(&kafka.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.ProcessTimeout,
		})
		notifier.Publisher = publisher
		cl.add(func() {
			if pErr := publisher.Close(); pErr != nil {
				logg.Warnf(context.Background(), "kafka publisher close error: %v", pErr)
			}
		})

		consumerCfg := kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			Topic:          cfg.Kafka.Topic,
			StartOffset:    cfg.Kafka.StartOffset,
			ProcessTimeout: cfg.Kafka.ProcessTimeout,
			RetryInitial:   cfg.Kafka.RetryInitial,
			RetryMax:       cfg.Kafka.RetryMax,
		}
		if vErr := consumerCfg.Validate(); vErr != nil {
			return fail(vErr)
		}
		consumer = kafka.NewConsumer(&consumerCfg, hub, logg.Named("kafka"))
		cl.add(func() {
			if cErr := consumer.Close(); cErr != nil {
				logg.Warnf(context.Background(), "kafka consumer close error: %v", cErr)
			}
		})
	}

	var background []Component

	store, storeRun, err := openStore(ctx, cfg, notifier, logg, &cl)
	if err != nil {
		return fail(err)
	}
	if storeRun != nil {
		background = append(background, Component{Name: "docstore ping", Run: storeRun})
	}

	// Монитор: собственные пробы плюс сигналы доступности хранилища. Ping хранилища
	// входит в пробу, иначе удачный HTTP-запрос вернул бы online при лежащей базе.
	var httpProbe, storeProbe connectivity.Prober
	if cfg.Monitor.ProbeURL != "" {
		httpProbe = connectivity.HTTPProber(&http.Client{Timeout: cfg.Monitor.ProbeTimeout}, cfg.Monitor.ProbeURL)
	}
	if p, ok := store.(interface {
		Probe(context.Context) (time.Duration, error)
	}); ok {
		storeProbe = p.Probe
	}
	monitor := connectivity.NewMonitor(true, connectivity.AllProbers(httpProbe, storeProbe), connectivity.Options{
		Interval:             cfg.Monitor.Interval,
		ProbeTimeout:         cfg.Monitor.ProbeTimeout,
		MaxReconnectAttempts: cfg.Monitor.MaxReconnectAttempts,
	}, logg)
	background = append(background,
		Component{Name: "connectivity probe", Run: monitor.Run},
		Component{Name: "connectivity watch", Run: func(ctx context.Context) error {
			return monitor.Watch(ctx, store.Connectivity())
		}},
	)

	exec := retry.NewExecutor(retry.Options{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		AttemptTimeout: cfg.Retry.Timeout,
	}, logg)

	var queueOpts []queue.QueueOption
	if cfg.RateLimit.Enabled {
		limiter := queue.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window,
			queue.WithPollInterval(cfg.RateLimit.PollInterval))
		queueOpts = append(queueOpts, queue.WithLimiter(limiter))
	}
	opQueue := queue.NewOperationQueue(queue.Options{
		BatchSize:  cfg.Queue.BatchSize,
		BatchDelay: cfg.Queue.BatchDelay,
	}, logg, queueOpts...)
	cl.add(opQueue.Close)

	// При переполнении хранилища освобождаем место уборкой зеркала кэша.
	syncMgr := syncer.NewManager(durable, monitor, exec, logg.Named("syncer"),
		syncer.WithStorageKey(cfg.Sync.StorageKey),
		syncer.WithEvictor(func() { ordersCache.PurgeExpired() }),
	)

	orderService := usecase.NewOrderService(usecase.Deps{
		Store:     store,
		Cache:     ordersCache,
		Executor:  exec,
		Queue:     opQueue,
		Syncer:    syncMgr,
		Monitor:   monitor,
		Validator: validate.NewOrderValidator(),
		Log:       logg,
	})
	syncMgr.Register(domain.OpOrder, orderService.ReplayOrder)
	syncMgr.Register(domain.OpStatus, orderService.ReplayStatus)
	syncMgr.Register(domain.OpUpdate, syncer.HTTPReplayer(&http.Client{Timeout: cfg.Sync.HTTPTimeout}))

	background = append(background, Component{
		Name: "cache cleanup",
		Run:  cleanupLoop(cfg.Cache.CleanupInterval, ordersCache, logg),
	})

	applyGinMode(ctx, cfg.HTTP.GinMode, logg)

	// Имя сервиса для otelgin (только при включённом трейсинге).
	otelServiceName := ""
	if cfg.Tracing.Enabled {
		otelServiceName = cfg.Tracing.ServiceName
	}

	// Кэширующий воркер перед API.
	var (
		cacheWorker  *worker.Worker
		workerServer *http.Server
	)
	if cfg.Worker.Enabled {
		origin, uErr := url.Parse(cfg.Worker.Origin)
		if uErr != nil {
			return fail(fmt.Errorf("worker origin: %w", uErr))
		}
		cacheWorker = worker.New(manifest, origin, logg.Named("worker"), worker.WithStorage(workerStorage))
		workerServer = newServer(cfg.HTTP, cfg.Worker.Addr,
			worker.NewRouter(worker.NewHandler(cacheWorker, logg), otelServiceName))
		background = append(background, Component{
			Name: "worker install",
			Run:  installLoop(cacheWorker, exec, logg),
		})
	}

	stats := &statsSource{monitor: monitor, caches: []namedCache{ordersCache}, syncer: syncMgr, queue: opQueue, worker: cacheWorker}
	httpHandler := rest.NewHandler(orderService, syncMgr, monitor, stats, logg, cfg.HTTP.HandlerTimeout)
	router := rest.NewRouter(httpHandler, cfg.HTTP.StaticDir, otelServiceName)

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.HTTP.Addr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout}
	}

	app := &App{
		Logger:          logg,
		HTTPServer:      newServer(cfg.HTTP, cfg.HTTP.Addr, router),
		WorkerServer:    workerServer,
		MetricsServer:   metricsServer,
		Background:      background,
		Syncer:          syncMgr,
		gracefulTimeout: cfg.HTTP.GracefulTimeout,
	}
	if consumer != nil {
		app.KafkaConsumer = consumer
	}

	return app, Cleanup(cl.run), nil
}

// openStore — хранилище документов по Store.Driver; для postgres — ещё и цикл пинга.
func openStore(ctx context.Context, cfg *config.Config, n docstore.Notifier, log ports.Logger, cl *closers) (ports.DocumentStore, func(context.Context) error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "memory":
		log.Warnf(ctx, "document store: in-memory driver, data is lost on restart")
		return docmem.New(docmem.WithNotifier(n)), nil, nil
	case "", "postgres":
		pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
			DSN:          cfg.Postgres.DSN,
			MaxConns:     cfg.Postgres.MaxConns,
			ConnLifetime: cfg.Postgres.ConnLifetime,
			ConnIdleTime: cfg.Postgres.ConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		cl.add(pool.Close)

		applied, err := pgstore.Migrate(ctx, pool)
		if err != nil {
			return nil, nil, err
		}
		log.Infof(ctx, "document store: postgres, %d migrations applied", applied)

		store := pgstore.New(pool, log, pgstore.WithNotifier(n), pgstore.WithPingInterval(cfg.Store.PingInterval))
		return store, store.Run, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openDurable — хранилище очереди синхронизации и отдельное хранилище разделов воркера.
func openDurable(cfg *config.Config) (*local.FileStore, *local.FileStore, error) {
	if filepath.Clean(cfg.Storage.Dir) == filepath.Clean(cfg.Worker.StorageDir) {
		return nil, nil, fmt.Errorf("worker storage dir must differ from %s", cfg.Storage.Dir)
	}
	durable, err := local.OpenFileStore(cfg.Storage.Dir, cfg.Storage.QuotaBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("open local storage: %w", err)
	}
	workerStorage, err := local.OpenFileStore(cfg.Worker.StorageDir, cfg.Worker.StorageQuotaBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("open worker storage: %w", err)
	}
	return durable, workerStorage, nil
}

func newServer(c config.HTTP, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		IdleTimeout:       c.IdleTimeout,
	}
}

// cleanupLoop — периодическая уборка истёкших записей кэша и его зеркала.
func cleanupLoop(every time.Duration, c interface{ PurgeExpired() int }, log ports.Logger) func(context.Context) error {
	if every <= 0 {
		every = 5 * time.Minute
	}
	return func(ctx context.Context) error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n := c.PurgeExpired(); n > 0 {
					log.Infof(ctx, "cache cleanup: %d expired entries removed", n)
				}
			}
		}
	}
}

// installLoop — установка воркера с повторами: API может подняться позже воркера.
// После успеха ждёт отмены, чтобы не считаться упавшим компонентом.
func installLoop(w *worker.Worker, exec *retry.Executor, log ports.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := exec.Do(ctx, w.Install); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// без предзагрузки воркер остаётся прозрачным прокси
			log.Errorf(ctx, "worker install gave up: %v", err)
		}
		<-ctx.Done()
		return ctx.Err()
	}
}
