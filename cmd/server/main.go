package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/gateway"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/store/memory"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// repository is what main needs from either store driver
type repository interface {
	service.Repository
	CreateProduct(ctx context.Context, product *models.Product) error
	Close() error
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer repo.Close()
	log.Printf("Store ready (driver=%s)", cfg.Database.Driver)

	if err := seedCatalog(ctx, repo, cfg.Business); err != nil {
		logger.Warn("Catalog seed skipped", zap.Error(err))
	}

	var locker service.Locker = service.NewLocalLocker()
	var idempotency service.IdempotencyStore
	var cache api.Pinger
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process locks and no idempotency keys", zap.Error(err))
	} else {
		defer redisClient.Close()
		locker = redisClient
		idempotency = redisClient
		cache = redisClient
		log.Println("Redis connected")
	}

	var events service.EventPublisher = service.NopPublisher{}
	var notificationProducer *broker.Producer
	if cfg.Kafka.Enabled {
		eventProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStoreEvents)
		defer eventProducer.Close()
		events = broker.NewEventPublisher(eventProducer)

		notificationProducer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
		defer notificationProducer.Close()
		log.Println("Kafka producers initialized")
	}

	var mail interface {
		service.RestockNotifier
		service.OrderMailer
	} = mailer.NewLogMailer()
	if cfg.Mail.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From, cfg.Gateway.FrontendURL)
	}

	gw := gateway.NewClient(cfg.Gateway.APIURL, cfg.Gateway.AccessToken, cfg.Gateway.Timeout)

	dispatchQueue := worker.NewTaskQueue("restock-dispatch", cfg.Business.DispatchWorkers, cfg.Business.DispatchQueueSize)
	webhookQueue := worker.NewTaskQueue("payment-webhooks", cfg.Business.DispatchWorkers, cfg.Business.DispatchQueueSize)

	ids := service.UUIDGenerator{}
	dispatcher := service.NewRestockDispatcher(repo, mail, locker, events, cfg.Business.MaxConcurrentSends, cfg.Business.DispatchLockTTL)
	variantService := service.NewVariantService(repo, ids, dispatchQueue, dispatcher, events, service.VariantDefaults{
		RestockDays:  cfg.Business.DefaultRestockDays,
		PreorderDays: cfg.Business.DefaultPreorderDays,
	})
	orderService := service.NewOrderService(repo, ids, events)
	reconciler := service.NewPaymentReconciler(orderService, gw)
	checkoutService := service.NewCheckoutService(orderService, repo, gw, mail, idempotency, ids, service.CheckoutConfig{
		FrontendURL:     cfg.Gateway.FrontendURL,
		BackendURL:      cfg.Gateway.BackendURL,
		SendOrderEmails: cfg.Mail.SendOrderEmails,
		IdempotencyTTL:  cfg.Business.IdempotencyTTL,
	})

	var sink service.PaymentNotificationSink = reconciler
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var paymentWorker *worker.PaymentWorker
	if notificationProducer != nil {
		sink = broker.NewNotificationPublisher(notificationProducer)

		paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
		paymentWorker = worker.NewPaymentWorker(paymentConsumer, reconciler)
		go func() {
			if err := paymentWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				log.Printf("Payment worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Variants:      variantService,
		Subscriptions: service.NewSubscriptionService(repo, ids, cfg.Business.DefaultSubscriptionQ),
		Dispatcher:    dispatcher,
		Orders:        orderService,
		Checkout:      checkoutService,
		Webhooks:      service.NewWebhookIntake(webhookQueue, sink, cfg.Business.WebhookAckDeadline),
		EarlyAccess:   service.NewEarlyAccessService(repo, ids),
		Store:         repo,
		Cache:         cache,
	}, api.Options{
		ServiceName:    "storefront-service",
		PublicKey:      cfg.Gateway.PublicKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := webhookQueue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Webhook queue did not drain: %v", err)
	}
	if err := dispatchQueue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Dispatch queue did not drain: %v", err)
	}

	workerCancel()
	if paymentWorker != nil {
		paymentWorker.Stop()
	}

	log.Println("Server exited")
}

func openRepository(ctx context.Context, cfg *config.Config) (repository, error) {
	if cfg.Database.Driver == "memory" {
		return memory.NewStore(), nil
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return db, nil
}

// seedCatalog creates the configured product when the catalog is empty
func seedCatalog(ctx context.Context, repo repository, cfg config.BusinessConfig) error {
	if cfg.SeedProductName == "" {
		return nil
	}
	products, err := repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		return nil
	}

	price, err := decimal.NewFromString(cfg.SeedProductPrice)
	if err != nil {
		return fmt.Errorf("invalid SEED_PRODUCT_PRICE: %w", err)
	}
	product := &models.Product{
		ID:                    uuid.NewString(),
		Name:                  cfg.SeedProductName,
		Price:                 price,
		BatchStatus:           models.BatchAvailable,
		EstimatedRestockDays:  cfg.DefaultRestockDays,
		EstimatedPreorderDays: cfg.DefaultPreorderDays,
	}
	if err := repo.CreateProduct(ctx, product); err != nil {
		return err
	}
	log.Printf("Seeded product %s (%s)", product.Name, product.ID)
	return nil
}
