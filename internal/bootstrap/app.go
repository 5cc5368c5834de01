package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/blobstore"
	"service-order-attachments/internal/cache"
	"service-order-attachments/internal/config"
	"service-order-attachments/internal/metrics"
	"service-order-attachments/internal/model"
	minioClient "service-order-attachments/internal/platform/minio"
	mysqlClient "service-order-attachments/internal/platform/mysql"
	postgresClient "service-order-attachments/internal/platform/postgres"
	rabbitmqClient "service-order-attachments/internal/platform/rabbitmq"
	redisClient "service-order-attachments/internal/platform/redis"
	"service-order-attachments/internal/platform/supabase"
	"service-order-attachments/internal/repository"
	"service-order-attachments/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	Stores *Stores
	Redis  *redis.Client
	MQConn *amqp.Connection

	Blobs blobstore.Store
	// Objects is nil when objects are served by the managed store.
	Objects blobstore.Reader

	Registry     *prometheus.Registry
	Attachments  *app.AttachmentService
	Controller   *app.Controller
	Auth         *app.AuthService
	OrphanWorker *worker.OrphanCleanupWorker

	StartedAt time.Time
}

// Stores are the record side dependencies. The CLI opens them without the
// rest of the server.
type Stores struct {
	DB        *gorm.DB
	Supabase  *supabase.Client
	Records   app.RecordStore
	Operators *repository.OperatorRepository
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	stores, err := OpenStores(ctx, cfg, cfg.Auth.Enabled)
	if err != nil {
		return err
	}
	a.Stores = stores

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}

	if err := a.initBlobs(ctx); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(a.Registry)
	if err != nil {
		return err
	}

	opts := []app.AttachmentServiceOption{
		app.WithLogger(a.Logger),
		app.WithRecorder(recorder),
	}
	if cfg.RabbitMQ.URL != "" {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.EventQueue, cfg.RabbitMQ.OrphanQueue)
		if err != nil {
			return err
		}
		orphanQueue := rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.OrphanQueue)
		opts = append(opts,
			app.WithEvents(rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.EventQueue)),
			app.WithOrphanQueue(orphanQueue),
		)

		a.OrphanWorker = worker.NewOrphanCleanupWorker(a.MQConn, a.Blobs, orphanQueue, cfg.RabbitMQ.OrphanQueue, cfg.RabbitMQ.OrphanMaxAttempts,
			time.Duration(cfg.RabbitMQ.OrphanRetryBaseSeconds)*time.Second, a.Logger)
		if err := a.OrphanWorker.Start(ctx); err != nil {
			return fmt.Errorf("start orphan cleanup worker failed: %w", err)
		}
	} else {
		a.Logger.Warn("rabbitmq disabled, attachment events and orphan cleanup are off")
	}

	a.Attachments = app.NewAttachmentService(a.Blobs, stores.Records, app.AttachmentServiceConfig{
		PublicBaseURL: cfg.PublicBaseURL(),
		Bucket:        cfg.Storage.Bucket,
		MaxBytes:      cfg.MaxUploadBytes(),
	}, opts...)

	sessions := cache.NewSessionStore(a.Redis,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		time.Duration(cfg.Session.BusyLockSeconds)*time.Second,
	)
	a.Controller = app.NewController(a.Attachments, sessions, a.Logger)

	if stores.Operators != nil {
		a.Auth = app.NewAuthService(stores.Operators, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	}
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.StorageBackendSupabase:
		client, err := a.supabaseClient()
		if err != nil {
			return err
		}
		a.Blobs = client.Bucket(cfg.Storage.Bucket)
	case config.StorageBackendMinIO:
		client, err := minioClient.New(ctx, cfg.Storage.MinIOEndpoint, cfg.Storage.MinIOAccessKey, cfg.Storage.MinIOSecretKey, cfg.Storage.MinIOUseSSL)
		if err != nil {
			return err
		}
		store, err := blobstore.NewMinIOStore(ctx, client, cfg.Storage.Bucket)
		if err != nil {
			return err
		}
		a.Blobs, a.Objects = store, store
	case config.StorageBackendLocal:
		store, err := blobstore.NewLocalStore(cfg.Storage.LocalPath, cfg.Storage.Bucket)
		if err != nil {
			return err
		}
		a.Blobs, a.Objects = store, store
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	a.Logger.Info("blob store ready", slog.String("backend", cfg.Storage.Backend), slog.String("bucket", cfg.Storage.Bucket))
	return nil
}

func (a *App) supabaseClient() (*supabase.Client, error) {
	if a.Stores != nil && a.Stores.Supabase != nil {
		return a.Stores.Supabase, nil
	}
	return newSupabaseClient(a.Config)
}

// OpenStores connects the record store. The database is opened when records
// live there or when operators are needed.
func OpenStores(ctx context.Context, cfg *config.Config, needOperators bool) (*Stores, error) {
	s := &Stores{}

	if cfg.Records.Backend == config.RecordsBackendDatabase || needOperators {
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.DB = db
		if err := db.AutoMigrate(&model.Operator{}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		s.Operators = repository.NewOperatorRepository(db)
	}

	switch cfg.Records.Backend {
	case config.RecordsBackendDatabase:
		attachments := repository.NewAttachmentRepository(s.DB, cfg.Records.Table)
		if err := attachments.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Records = attachments
	case config.RecordsBackendSupabase:
		client, err := newSupabaseClient(cfg)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Supabase = client
		s.Records = client.Table(cfg.Records.Table)
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unsupported records backend %q", cfg.Records.Backend)
	}

	if cfg.Storage.Backend == config.StorageBackendSupabase && s.Supabase == nil {
		client, err := newSupabaseClient(cfg)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Supabase = client
	}
	return s, nil
}

func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.App.Env == "dev" {
		logLevel = gormlogger.Info
	}
	switch cfg.Database.Driver {
	case config.DatabaseDriverPostgres:
		return postgresClient.New(ctx, cfg.PostgresDSN(), logLevel)
	case config.DatabaseDriverMySQL:
		return mysqlClient.New(ctx, cfg.MySQLDSN(), logLevel)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func newSupabaseClient(cfg *config.Config) (*supabase.Client, error) {
	return supabase.NewClient(supabase.Options{
		Endpoint:   cfg.Supabase.Endpoint,
		Credential: cfg.Supabase.Credential,
		Timeout:    time.Duration(cfg.Supabase.TimeoutSeconds) * time.Second,
	})
}

// HealthChecks lists one check per connected dependency.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
	}
	if a.Stores != nil && a.Stores.DB != nil {
		checks[a.Config.Database.Driver] = func(ctx context.Context) error {
			sqlDB, err := a.Stores.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

func (a *App) Close() error {
	var closeErr error
	if a.OrphanWorker != nil {
		a.OrphanWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if err := a.Stores.Close(); err != nil {
		closeErr = err
	}
	return closeErr
}
