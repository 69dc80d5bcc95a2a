package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/shivbardolabs/ShipOS-sub002/internal/config"
	"github.com/shivbardolabs/ShipOS-sub002/internal/handler"
	"github.com/shivbardolabs/ShipOS-sub002/internal/kafka"
	"github.com/shivbardolabs/ShipOS-sub002/internal/logger"
	"github.com/shivbardolabs/ShipOS-sub002/internal/metrics"
	"github.com/shivbardolabs/ShipOS-sub002/internal/ratelimit"
	"github.com/shivbardolabs/ShipOS-sub002/internal/router"
	"github.com/shivbardolabs/ShipOS-sub002/internal/service"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
	"github.com/shivbardolabs/ShipOS-sub002/internal/template"
	"github.com/shivbardolabs/ShipOS-sub002/internal/transport"
	"github.com/shivbardolabs/ShipOS-sub002/pkg/observability"
)

const serviceName = "notifier"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.NewLogger()
	slog.SetDefault(logr)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- OpenTelemetry tracing ----
	if cfg.OTLPEndpoint != "" {
		_, tracerShutdown, err := observability.NewTracerProvider(ctx, serviceName, cfg.OTLPEndpoint, logr)
		if err != nil {
			logr.Error("Failed to initialize TracerProvider", slog.Any("error", err))
			os.Exit(1)
		}
		defer tracerShutdown()
	}

	// ---- Storage ----
	db, err := store.ConnectPostgres(cfg.DB)
	if err != nil {
		logr.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	notifStore := store.NewNotificationStorage(db)
	customerStore := store.NewCustomerStorage(db)

	// ---- Rate limiter ----
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logr.Error("Failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb)
	default:
		limiter = ratelimit.NewMemoryLimiter()
	}
	logr.Info("Rate limiter initialized", slog.String("backend", cfg.RateLimit.Backend))

	// ---- Channel adapters ----
	emailSender := transport.NewResendSender(cfg.Transport.ResendAPIKey, cfg.Transport.EmailFrom, logr)
	smsSender := transport.NewTwilioSender(
		cfg.Transport.TwilioAccountSID,
		cfg.Transport.TwilioAuthToken,
		cfg.Transport.TwilioFromNumber,
		cfg.Transport.SMSBusinessName,
		cfg.Transport.SMSBrandedDomain,
		logr,
	)

	// ---- Kafka ----
	var events service.EventPublisher
	var consumerGroup sarama.ConsumerGroup

	if len(cfg.Kafka.Brokers) > 0 {
		saramaCfg := sarama.NewConfig()
		saramaCfg.Version = sarama.V2_1_0_0
		saramaCfg.Producer.Return.Successes = true
		saramaCfg.Producer.Return.Errors = true

		asyncProducer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, saramaCfg)
		if err != nil {
			logr.Error("Failed to create Kafka producer", slog.Any("error", err))
			os.Exit(1)
		}
		producer := kafka.NewEventProducer(asyncProducer, cfg.Kafka.EventTopic, logr, &sync.WaitGroup{})
		producer.Start(ctx)
		defer producer.Close()
		events = producer

		consumerGroup, err = sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, saramaCfg)
		if err != nil {
			logr.Error("Failed to create Kafka consumer group", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// ---- Services ----
	dispatcher := service.NewDispatchService(
		customerStore,
		notifStore,
		limiter,
		template.Default(),
		emailSender,
		smsSender,
		events,
		cfg.Transport.SendTimeout,
		logr,
	)
	retrier := service.NewRetryService(
		notifStore,
		dispatcher,
		cfg.Retry.Interval,
		cfg.Retry.BatchSize,
		cfg.Retry.MaxAge,
		cfg.Retry.Workers,
		logr,
	)
	receipts := service.NewReceiptService(notifStore, events, logr)
	healthSvc := service.NewHealthService(notifStore)

	var consumer *kafka.Consumer
	if consumerGroup != nil {
		consumer = kafka.NewConsumer(cfg.Kafka.RequestTopic, consumerGroup, dispatcher, logr)
	}

	// ---- HTTP ----
	nh := handler.NewNotificationHandler(dispatcher, retrier, receipts, notifStore, logr)
	rlh := handler.NewRateLimitHandler(limiter, logr)
	hh := handler.NewHealthHandler(healthSvc)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.NewRouter(nh, rlh, hh),
	}

	var wg sync.WaitGroup

	// Retry worker.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := retrier.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("Retry worker stopped with error", slog.Any("error", err))
		}
	}()

	// Kafka consumer.
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("Kafka consumer stopped with error", slog.Any("error", err))
			}
		}()
	}

	// HTTP server.
	wg.Add(1)
	go func() {
		defer wg.Done()
		logr.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	// Wait for a termination signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logr.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	cancel()
	wg.Wait()
	logr.Info("Service shut down gracefully")
}
