package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/notification"
	"ofsync/internal/domain/openfinance"
	"ofsync/internal/domain/transaction"
	"ofsync/internal/infrastructure/firebase"
	ofclient "ofsync/internal/infrastructure/openfinance"
	"ofsync/internal/infrastructure/postgres"
	"ofsync/internal/infrastructure/postgres/listener"
	httphandlers "ofsync/internal/interfaces/http"
	"ofsync/internal/interfaces/scheduler"
	"ofsync/internal/shared/auth"
	"ofsync/internal/shared/config"
	"ofsync/internal/shared/middleware"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	OpenFinanceHandler *httphandlers.OpenFinanceHandler
	LinkHandler        *httphandlers.LinkHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
	SummaryHandler     *httphandlers.SummaryHandler
	HealthHandler      *httphandlers.HealthHandler

	// Auth
	IdentityVerifier middleware.IdentityVerifier
	ServiceKeys      *auth.ServiceKeyVerifier

	// Background sync
	SyncEngine *openfinance.SyncEngine
	Pool       *scheduler.WorkerPool
	Listener   *listener.SyncListener

	// Repositories (for scheduler job provider)
	LinkRepo *postgres.LinkRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Dependencies, error) {
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	deps := &Dependencies{DB: db}
	if err := deps.wire(ctx, cfg, log); err != nil {
		db.Close()
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) wire(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Repositories
	linkRepo := postgres.NewLinkRepository(d.DB)
	accountRepo := postgres.NewAccountRepository(d.DB)
	transactionRepo := postgres.NewTransactionRepository(d.DB)
	syncLogRepo := postgres.NewSyncLogRepository(d.DB)
	d.LinkRepo = linkRepo

	// Aggregator client
	client := ofclient.NewClient(ofclient.Config{
		BaseURL:      cfg.Aggregator.BaseURL,
		ClientID:     cfg.Aggregator.ClientID,
		ClientSecret: cfg.Aggregator.ClientSecret,
		Timeout:      cfg.Aggregator.Timeout,
	})

	// Firebase: push notifications and, optionally, identity
	var messenger notification.Messenger
	var firebaseVerifier *firebase.AuthVerifier
	if cfg.Firebase.CredentialsFile != "" {
		app, err := firebase.NewApp(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		fcm, err := firebase.NewClient(ctx, app)
		if err != nil {
			return err
		}
		messenger = fcm
		log.Info("push notifications enabled")

		if cfg.Auth.Provider == config.AuthProviderFirebase {
			if firebaseVerifier, err = firebase.NewAuthVerifier(ctx, app); err != nil {
				return err
			}
		}
	} else {
		log.Info("push notifications disabled: FIREBASE_CREDENTIALS_FILE not set")
	}

	switch cfg.Auth.Provider {
	case config.AuthProviderFirebase:
		d.IdentityVerifier = firebaseVerifier
	default:
		d.IdentityVerifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	}
	d.ServiceKeys = auth.NewServiceKeyVerifier(cfg.Auth.ServiceKeyHash)
	if !d.ServiceKeys.Enabled() {
		log.Warn("SERVICE_KEY_HASH not set: the sync endpoint will reject every request")
	}

	// Domain services
	d.SyncEngine = openfinance.NewSyncEngine(client, linkRepo, accountRepo, transactionRepo, syncLogRepo,
		postgres.NewAdvisoryLocker(d.DB),
		openfinance.SyncConfig{
			RunTimeout:  cfg.Sync.RunTimeout,
			PageSize:    cfg.Sync.PageSize,
			MaxPages:    cfg.Sync.MaxPages,
			Concurrency: cfg.Sync.Concurrency,
		},
	)

	// The worker pool runs webhook-triggered syncs and scheduled sweeps.
	d.Pool = scheduler.NewWorkerPool(scheduler.WorkerPoolConfig{
		Workers:    cfg.Scheduler.WorkerCount,
		JobDelay:   cfg.Scheduler.JobDelay,
		QueueSize:  cfg.Scheduler.QueueSize,
		JobTimeout: cfg.Sync.RunTimeout + syncJobMargin,
	})
	poolQueue := scheduler.NewPoolQueue(d.Pool, d.SyncEngine)

	var queue openfinance.SyncQueue = poolQueue
	if cfg.Sync.Queue == config.SyncQueueNotify {
		queue = listener.NewNotifyQueue(d.DB)
		d.Listener = listener.NewSyncListener(cfg.Database.ConnectionString(), poolQueue)
		log.Info("webhook syncs dispatched through LISTEN/NOTIFY", zap.String("queue", cfg.Sync.Queue))
	}

	connectService := openfinance.NewConnectService(client, linkRepo, openfinance.ConnectConfig{
		ProviderName: cfg.Aggregator.ProviderName,
		ConnectURL:   cfg.Aggregator.ConnectURL,
		WebhookURL:   cfg.Aggregator.WebhookURL,
	})
	webhooks := openfinance.NewWebhookProcessor(linkRepo, queue, notification.NewService(messenger), cfg.Aggregator.WebhookSecret)
	if !webhooks.SignatureRequired() {
		log.Warn("WEBHOOK_SECRET not set: webhook signatures will not be verified")
	}
	summaries := openfinance.NewSummaryService(linkRepo, accountRepo, transactionRepo, cfg.Summary.BalancePolicy)

	// Handlers
	d.OpenFinanceHandler = httphandlers.NewOpenFinanceHandler(connectService, webhooks, d.SyncEngine)
	d.LinkHandler = httphandlers.NewLinkHandler(link.NewService(linkRepo), syncLogRepo)
	d.AccountHandler = httphandlers.NewAccountHandler(account.NewService(accountRepo))
	d.TransactionHandler = httphandlers.NewTransactionHandler(transaction.NewService(transactionRepo))
	d.SummaryHandler = httphandlers.NewSummaryHandler(summaries)
	d.HealthHandler = httphandlers.NewHealthHandler(d.DB)

	return nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
