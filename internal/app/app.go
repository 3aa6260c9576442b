package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongoadapter "github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/mongo"
	natsadapter "github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/nats"
	redisadapter "github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/redis"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/service"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/worker"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	cfg         *config.Config
	log         logger.Logger
	metrics     *metrics.Manager
	expiry      *worker.OfferExpiry
	mongoClient *mongo.Client
	redisClient *redis.Client
	natsConn    *natsgo.Conn

	ListingService     service.ListingService
	OfferService       service.OfferService
	TransactionService service.TransactionService
	DisputeService     service.DisputeService
	ReviewService      service.ReviewService
	ModerationService  service.ModerationService
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logCfg := logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	appLogger, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s, Metrics Port: %s", cfg.Env, cfg.Metrics.Port)

	appLogger.Info("Initializing MongoDB client...")
	mongoClient, err := mongoadapter.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		appLogger.Errorf("Failed to initialize MongoDB client: %v", err)
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}
	appLogger.Info("MongoDB client initialized successfully")

	appLogger.Info("Initializing Redis client...")
	redisClient, err := redisadapter.NewClient(ctx, cfg.Redis)
	if err != nil {
		appLogger.Errorf("Failed to initialize Redis client: %v", err)
		return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
	}
	appLogger.Info("Redis client initialized successfully")

	appLogger.Info("Initializing NATS connection...")
	natsConn, err := natsadapter.NewConnection(cfg.NATS)
	if err != nil {
		appLogger.Errorf("Failed to connect to NATS: %v", err)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	msgPublisher, err := natsadapter.NewNATSPublisher(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	appLogger.Info("NATS publisher initialized successfully")

	listingRepo := mongoadapter.NewListingRepository(mongoClient, cfg.MongoDB)
	offerRepo := mongoadapter.NewOfferRepository(mongoClient, cfg.MongoDB)
	transactionRepo := mongoadapter.NewTransactionRepository(mongoClient, cfg.MongoDB)
	messageRepo := mongoadapter.NewMessageRepository(mongoClient, cfg.MongoDB)
	reviewRepo := mongoadapter.NewReviewRepository(mongoClient, cfg.MongoDB)
	reactionRepo := mongoadapter.NewReactionRepository(mongoClient, cfg.MongoDB)
	reportRepo := mongoadapter.NewReviewReportRepository(mongoClient, cfg.MongoDB)
	aggregateRepo := mongoadapter.NewReviewAggregateRepository(mongoClient, cfg.MongoDB)
	alertRepo := mongoadapter.NewFraudAlertRepository(mongoClient, cfg.MongoDB)
	transactor := mongoadapter.NewTransactor(mongoClient)
	aggregateCache := redisadapter.NewReviewAggregateCache(redisClient)
	appLogger.Info("Repositories initialized")

	metricsManager := metrics.NewManager("exchange_service")

	listingService := service.NewListingService(listingRepo, msgPublisher, appLogger)
	offerService := service.NewOfferService(offerRepo, listingRepo, transactionRepo, transactor, msgPublisher, metricsManager, appLogger)
	transactionService := service.NewTransactionService(transactionRepo, listingRepo, messageRepo, msgPublisher, metricsManager, appLogger, cfg.Policy.RelistOnCancel)
	disputeService := service.NewDisputeService(transactionRepo, messageRepo, msgPublisher, metricsManager, appLogger)
	reviewService := service.NewReviewService(reviewRepo, reactionRepo, reportRepo, aggregateRepo, aggregateCache, alertRepo, msgPublisher, metricsManager, appLogger, cfg.Reviews.AggregateCacheTTL)
	moderationService := service.NewModerationService(alertRepo, listingRepo, reviewService, msgPublisher, metricsManager, appLogger)
	appLogger.Info("Services initialized")

	expiryWorker := worker.NewOfferExpiry(offerService, cfg.Offers.SweepInterval, appLogger)

	application := &App{
		cfg:         cfg,
		log:         appLogger,
		metrics:     metricsManager,
		expiry:      expiryWorker,
		mongoClient: mongoClient,
		redisClient: redisClient,
		natsConn:    natsConn,

		ListingService:     listingService,
		OfferService:       offerService,
		TransactionService: transactionService,
		DisputeService:     disputeService,
		ReviewService:      reviewService,
		ModerationService:  moderationService,
	}

	return application, nil
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	a.expiry.Start(runCtx)
	a.log.Info("Offer expiry worker started in a goroutine")

	go func() {
		if err := metrics.StartServer(a.cfg.Metrics.Port, a.log, a.metrics.Registry); err != nil {
			a.log.Errorf("Metrics server stopped: %v", err)
		}
	}()
	a.log.Infof("Metrics server started on port %s", a.cfg.Metrics.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	a.log.Infof("Received shutdown signal: %v. Shutting down application...", receivedSignal)

	a.expiry.Stop()
	a.log.Info("Offer expiry worker stopped successfully")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.log.Info("Closing connections...")

	if a.natsConn != nil {
		a.natsConn.Close()
		a.log.Info("NATS connection closed successfully")
	}

	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
			a.log.Errorf("Error disconnecting from MongoDB: %v", err)
		} else {
			a.log.Info("MongoDB connection closed successfully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}

	a.log.Info("Application shut down successfully")
}
