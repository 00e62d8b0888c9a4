// Package app wires the application together. It opens the event store and
// projection databases, selects the hypervisor backend, and builds the
// command handlers, the list query, the saga and the projection rebuilder
// from one Config, so every CLI command composes the same object graph.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vmgatelabs/vmgate/config"
	"github.com/vmgatelabs/vmgate/eventstore/postgresengine"
	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/features/command/approverequest"
	"github.com/vmgatelabs/vmgate/internal/features/command/cancelrequest"
	"github.com/vmgatelabs/vmgate/internal/features/command/createrequest"
	"github.com/vmgatelabs/vmgate/internal/features/command/markprovisioning"
	"github.com/vmgatelabs/vmgate/internal/features/command/provisionvm"
	"github.com/vmgatelabs/vmgate/internal/features/command/rejectrequest"
	"github.com/vmgatelabs/vmgate/internal/features/query/listrequests"
	"github.com/vmgatelabs/vmgate/internal/hypervisor"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/fake"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/mapping"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/proxmox"
	"github.com/vmgatelabs/vmgate/internal/messaging"
	"github.com/vmgatelabs/vmgate/internal/notify"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/quota"
	"github.com/vmgatelabs/vmgate/internal/saga"
	"github.com/vmgatelabs/vmgate/internal/timeline"
	"github.com/vmgatelabs/vmgate/internal/tracing"
)

// Event store pool sizing. Append and Load are short transactions, so a few
// long-lived connections go a long way.
const (
	storeMaxConnections    = int32(16)
	storeMinConnections    = int32(2)
	storeMaxConnLifetime   = time.Hour
	storeMaxConnIdleTime   = 5 * time.Minute
	storeHealthCheckPeriod = time.Minute
	storeConnectTimeout    = 5 * time.Second
)

const tracerShutdownTimeout = 5 * time.Second

// App holds the wired application graph.
type App struct {
	Config config.Config

	EventStore postgresengine.EventStore
	Projection *projection.Updater
	Reader     *projection.Reader
	Rebuilder  *projection.Rebuilder

	Cache    *cache.RedisCache
	Bus      messaging.Bus
	Notifier notify.Notifier
	Timeline timeline.Recorder
	Tracer   *tracing.Tracer

	CreateRequest    createrequest.CommandHandler
	ApproveRequest   approverequest.CommandHandler
	RejectRequest    rejectrequest.CommandHandler
	CancelRequest    cancelrequest.CommandHandler
	MarkProvisioning markprovisioning.CommandHandler
	ProvisionVM      provisionvm.CommandHandler
	ListRequests     listrequests.QueryHandler
	Saga             saga.Processor

	pool        *pgxpool.Pool
	replicaPool *pgxpool.Pool
	db          *gorm.DB
	readOnlyDB  *gorm.DB
	sender      messaging.Sender
}

// New builds the application from its configuration. On error it releases
// whatever it had already opened.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	tracer, err := tracing.NewTracer(tracing.Config{
		Enabled:       cfg.Tracing.Enabled,
		AppName:       cfg.Tracing.AppName,
		LicenseKey:    cfg.Tracing.LicenseKey,
		LogForwarding: cfg.Tracing.LogForwarding,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize New Relic, continuing without tracing")
	}
	a.Tracer = tracer

	if err := a.initEventStore(ctx, cfg.EventStore); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.initProjectionDatabases(cfg.DB); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.initMessaging(cfg.ServiceBus); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Cache = newListCache(cfg.Redis)
	a.Timeline = newTimelineRecorder(cfg.Elastic)

	backend, err := newHypervisorBackend(cfg.Hypervisor)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.wireHandlers(cfg, backend)

	return a, nil
}

// Close releases all connections. It is safe to call on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Bus != nil {
		if err := a.Bus.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close the notice bus")
		}
	}

	if a.sender != nil {
		if err := a.sender.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close the notification sender")
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close the Redis cache")
		}
	}

	closeGormDB(a.db)
	closeGormDB(a.readOnlyDB)

	if a.pool != nil {
		a.pool.Close()
	}

	if a.replicaPool != nil {
		a.replicaPool.Close()
	}

	a.Tracer.Shutdown(tracerShutdownTimeout)
}

func (a *App) initEventStore(ctx context.Context, cfg config.EventStoreConfig) error {
	pool, err := newPGXPool(ctx, cfg.DSN)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the event store database")
	}
	a.pool = pool

	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(tracing.NewZerologContextualLogger(log.Logger)),
		postgresengine.WithMetrics(tracing.NewMetricsCollector(a.Tracer)),
	}
	if cfg.TableName != "" {
		options = append(options, postgresengine.WithTableName(cfg.TableName))
	}

	if cfg.ReplicaDSN == "" {
		a.EventStore, err = postgresengine.NewEventStoreFromPGXPool(pool, options...)
		return err
	}

	replica, err := newPGXPool(ctx, cfg.ReplicaDSN)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the event store replica")
	}
	a.replicaPool = replica

	a.EventStore, err = postgresengine.NewEventStoreFromPGXPoolWithReplica(pool, replica, options...)

	return err
}

func (a *App) initProjectionDatabases(cfg config.DatabaseConfig) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to connect to the projection database")
	}
	a.db = db

	readDSN := cfg.ReadOnlyDSN
	if readDSN == "" {
		readDSN = cfg.DSN
	}

	readOnlyDB, err := gorm.Open(postgres.Open(readDSN), &gorm.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to connect to the read-only projection database")
	}
	a.readOnlyDB = readOnlyDB

	// Migrations run on the write handle only.
	if err := projection.SetupModels(db); err != nil {
		return err
	}
	if err := mapping.SetupModels(db); err != nil {
		return err
	}

	if err := configurePool(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime); err != nil {
		return err
	}

	// The read side serves the list query; give it more headroom.
	return configurePool(readOnlyDB, cfg.MaxOpenConns*2, cfg.MaxIdleConns*2, cfg.ConnMaxLifetime)
}

func (a *App) initMessaging(cfg config.ServiceBusConfig) error {
	bus, err := messaging.NewBus(messaging.Config{
		ConnectionString: cfg.ConnectionString,
		QueueName:        cfg.NoticeQueue,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize the notice bus")
	}
	a.Bus = bus

	sender, err := messaging.NewSender(messaging.Config{
		ConnectionString: cfg.ConnectionString,
		QueueName:        cfg.NotificationQueue,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize the notification sender")
	}
	a.sender = sender
	a.Notifier = notify.NewQueueNotifier(sender)

	return nil
}

func (a *App) wireHandlers(cfg config.Config, backend hypervisor.Hypervisor) {
	a.Projection = projection.NewUpdater(a.db)
	a.Reader = projection.NewReader(a.readOnlyDB)
	a.Rebuilder = projection.NewRebuilder(a.EventStore, a.Projection)

	mappingStore := mapping.NewStore(a.db, a.readOnlyDB)
	translator := mapping.NewTranslator(mappingStore)
	quotaChecker := newQuotaChecker(cfg.Quota, a.readOnlyDB)

	a.CreateRequest = createrequest.NewCommandHandler(
		a.EventStore,
		createrequest.WithQuotaChecker(quotaChecker),
		createrequest.WithProjection(a.Projection),
		createrequest.WithNotifier(a.Notifier),
		createrequest.WithTimeline(a.Timeline),
		createrequest.WithListCache(a.Cache),
	)

	a.ApproveRequest = approverequest.NewCommandHandler(
		a.EventStore,
		approverequest.WithProjection(a.Projection),
		approverequest.WithNoticePublisher(a.Bus),
		approverequest.WithNotifier(a.Notifier),
		approverequest.WithTimeline(a.Timeline),
		approverequest.WithListCache(a.Cache),
	)

	a.RejectRequest = rejectrequest.NewCommandHandler(
		a.EventStore,
		rejectrequest.WithProjection(a.Projection),
		rejectrequest.WithNotifier(a.Notifier),
		rejectrequest.WithTimeline(a.Timeline),
		rejectrequest.WithListCache(a.Cache),
	)

	a.CancelRequest = cancelrequest.NewCommandHandler(
		a.EventStore,
		cancelrequest.WithProjection(a.Projection),
		cancelrequest.WithTimeline(a.Timeline),
		cancelrequest.WithListCache(a.Cache),
	)

	a.MarkProvisioning = markprovisioning.NewCommandHandler(
		a.EventStore,
		markprovisioning.WithProjection(a.Projection),
		markprovisioning.WithTimeline(a.Timeline),
		markprovisioning.WithListCache(a.Cache),
	)

	a.ProvisionVM = provisionvm.NewCommandHandler(
		a.EventStore,
		translator,
		backend,
		provisionvm.WithProjection(a.Projection),
		provisionvm.WithTimeline(a.Timeline),
		provisionvm.WithListCache(a.Cache),
	)

	a.ListRequests = listrequests.NewQueryHandler(a.Reader, listrequests.WithListCache(a.Cache))

	a.Saga = saga.NewProcessor(a.EventStore, a.MarkProvisioning, a.ProvisionVM)
}

func newPGXPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse the DSN")
	}

	poolConfig.MaxConns = storeMaxConnections
	poolConfig.MinConns = storeMinConnections
	poolConfig.MaxConnLifetime = storeMaxConnLifetime
	poolConfig.MaxConnIdleTime = storeMaxConnIdleTime
	poolConfig.HealthCheckPeriod = storeHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = storeConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to reach the database")
	}

	return pool, nil
}

func configurePool(db *gorm.DB, maxOpen, maxIdle int, maxLifetime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get the underlying DB connection")
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	return nil
}

func closeGormDB(db *gorm.DB) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close a projection database handle")
	}
}

// newListCache falls back to a disabled cache when Redis is unreachable;
// list queries then always hit the read database.
func newListCache(cfg config.RedisConfig) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cache.Config{
		Enabled:  cfg.Enabled,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		return cache.Disabled()
	}

	return redisCache
}

func newTimelineRecorder(cfg config.ElasticConfig) timeline.Recorder {
	if !cfg.Enabled {
		return timeline.Noop{}
	}

	recorder, err := timeline.NewElasticRecorder(timeline.ElasticConfig{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Index:    cfg.Index,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch, continuing without the audit timeline")
		return timeline.Noop{}
	}

	return recorder
}

func newQuotaChecker(cfg config.QuotaConfig, readOnlyDB *gorm.DB) quota.Checker {
	if cfg.MaxActive <= 0 {
		return quota.AllowAll{}
	}

	return quota.NewActiveCountLimit(readOnlyDB, cfg.MaxActive)
}

func newHypervisorBackend(cfg config.HypervisorConfig) (hypervisor.Hypervisor, error) {
	switch cfg.Backend {
	case config.BackendFake:
		return fake.NewAdapter(), nil
	case config.BackendProxmox:
		return proxmox.NewAdapter(proxmox.Config{
			BaseURL:            cfg.Proxmox.BaseURL,
			TokenID:            cfg.Proxmox.TokenID,
			Secret:             cfg.Proxmox.TokenSecret,
			Timeout:            cfg.Proxmox.Timeout,
			TaskPollInterval:   cfg.Proxmox.TaskPollInterval,
			TaskTimeout:        cfg.Proxmox.TaskTimeout,
			InsecureSkipVerify: cfg.Proxmox.InsecureSkipVerify,
			MaxCPU:             cfg.Proxmox.MaxCPU,
			MaxMemoryMB:        cfg.Proxmox.MaxMemoryMB,
		})
	default:
		return nil, errors.Errorf("unknown hypervisor backend %q", cfg.Backend)
	}
}
