package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/export"
	infraLark "github.com/garyjia/approval-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/storage"
	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
	"github.com/garyjia/approval-engine/pkg/database"
	"github.com/garyjia/approval-engine/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// LarkBundle holds the notification chain. Client is nil when Lark is disabled.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.MessageSender
	Notifier  port.Notifier
}

// StorageBundle holds archive storage and the exporter writing into it.
type StorageBundle struct {
	FileStorage port.FileStorage
	Exporter    port.HistoryExporter
}

// ProvideDatabase opens the database and applies pending migrations.
// The embedded schema is used unless cfg.MigrationsDir is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(raw, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.Migrate(database.Schema())
	}
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqlite.NewDB(raw.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over one database.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Definition: repository.NewDefinitionRepository(db, logger),
		Instance:   repository.NewInstanceRepository(db.DB, logger),
		History:    repository.NewHistoryRepository(db.DB, logger),
		Member:     repository.NewMemberRepository(db.DB, logger),
	}, nil
}

// ProvideLarkClients builds the card notifier over either the Lark API or a
// log-only messenger.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &LarkBundle{}
	if cfg.Enabled {
		bundle.Client = infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.AppID,
			AppSecret: cfg.AppSecret,
			BaseURL:   cfg.BaseURL,
		}, logger)
		bundle.Messenger = infraLark.NewMessenger(bundle.Client, logger)
	} else {
		logger.Info("Lark disabled, notifications are logged only")
		bundle.Messenger = infraLark.NewLogMessenger(logger)
	}
	bundle.Notifier = infraLark.NewCardNotifier(bundle.Messenger, logger)

	return bundle, nil
}

// ProvideStorage creates the archive storage and the Excel exporter.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.ArchiveDir, logger),
		Exporter:    export.NewExcelHistoryExporter(logger),
	}, nil
}

// ProvideDispatcher creates the in-process event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Named("dispatcher"))), nil
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine publishing to the dispatcher.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow deps are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return workflow.NewEngine(
		deps.Repos.Definition,
		deps.Repos.Instance,
		deps.Repos.History,
		deps.Repos.Member,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(deps.Logger.Named("engine")),
	), nil
}

// ServiceDeps holds dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Lark       *LarkBundle
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// event-driven ones to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Lark == nil || deps.Storage == nil {
		return nil, fmt.Errorf("lark and storage bundles are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := utils.NewKVLogger(deps.Logger)
	definitions := service.NewDefinitionService(deps.Repos.Definition, deps.Repos.Instance, deps.TxManager, logger)

	bundle := &ServiceBundle{
		Definitions:  definitions,
		Members:      service.NewMemberService(deps.Repos.Member, logger),
		Notification: service.NewNotificationService(deps.Repos.Instance, deps.Repos.Member, deps.Lark.Notifier, logger),
		Archive: service.NewArchiveService(
			deps.Repos.Definition,
			deps.Repos.Instance,
			deps.Repos.History,
			deps.Storage.Exporter,
			deps.Storage.FileStorage,
			logger,
		),
		Seeder: service.NewSeeder(definitions, deps.Repos.Member, logger),
	}

	if deps.Dispatcher != nil {
		bundle.Notification.Register(deps.Dispatcher)
		bundle.Archive.Register(deps.Dispatcher)
	}

	return bundle, nil
}

// WorkerDeps holds dependencies for background workers.
type WorkerDeps struct {
	Engine    worker.StallScanner
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers registers the background workers. They are started by the caller.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker deps are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger.Named("workers"))
	if deps.WorkerCfg.StallScanEnabled {
		manager.Register(worker.NewStallScannerWorker(
			deps.Engine,
			deps.WorkerCfg.StallScanSchedule,
			deps.WorkerCfg.StallScanThreshold,
			deps.Logger.Named("stall-scanner"),
		))
	}
	return manager, nil
}
