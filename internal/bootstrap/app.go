package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docchat/internal/ai"
	appsvc "docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/pkg/pdfextract"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	sqliteClient "docchat/internal/platform/sqlite"
	"docchat/internal/repository"
	"docchat/internal/retrieval"
	"docchat/internal/worker"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Documents       *repository.DocumentRepository
	Messages        *repository.MessageRepository
	ChatService     *appsvc.ChatService
	DocumentService *appsvc.DocumentService
	IngestWorker    *worker.IngestWorker

	StartedAt time.Time
}

type Options struct {
	// StartWorkers runs the ingest consumer when RabbitMQ is enabled. One-shot
	// tools leave it off so they never pick up queued jobs.
	StartWorkers bool
}

// New loads and validates the configuration and builds the server process.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, Options{StartWorkers: true})
}

func NewWithConfig(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db

	a.Messages = repository.NewMessageRepository(db)
	if err := a.Messages.Migrate(); err != nil {
		return err
	}
	a.Documents, err = repository.NewDocumentRepository(cfg.Storage.DocDir)
	if err != nil {
		return err
	}

	var historyCache appsvc.HistoryCache
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		historyCache = cache.NewHistoryCache(a.Redis, cfg.HistoryTTL())
	}

	var publisher appsvc.IngestPublisher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		publisher = rabbitmqClient.NewIngestPublisher(a.MQConn, cfg.RabbitMQ.IngestQueue)
	}

	completer, err := ai.NewCompleter(cfg.LLM)
	if err != nil {
		return err
	}

	limits := appsvc.PageLimits{Default: cfg.Pagination.DefaultLimit, Max: cfg.Pagination.MaxLimit}
	a.ChatService = appsvc.NewChatService(
		a.Messages,
		historyCache,
		retrieval.New(cfg.Context, a.Documents),
		completer,
		limits,
	)
	a.DocumentService, err = appsvc.NewDocumentService(
		a.Documents,
		pdfextract.New(),
		publisher,
		cfg.Storage.PDFDir,
		limits,
	)
	if err != nil {
		return err
	}

	if opts.StartWorkers && a.MQConn != nil {
		a.IngestWorker = worker.NewIngestWorker(a.MQConn, a.DocumentService, cfg.RabbitMQ.IngestQueue)
		if err := a.IngestWorker.Start(ctx); err != nil {
			return fmt.Errorf("start ingest worker failed: %w", err)
		}
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		return mysqlClient.New(ctx, cfg.Database.MySQL)
	case config.DriverSQLite, "":
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
