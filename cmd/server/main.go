package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-gateway/config"
	"storefront-gateway/internal/api"
	"storefront-gateway/internal/broker"
	"storefront-gateway/internal/redisclient"
	"storefront-gateway/internal/service"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/store"
	"storefront-gateway/internal/upstream"
	"storefront-gateway/internal/util"
	"storefront-gateway/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer("storefront-gateway", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	sessions := session.NewStore(redisClient.GetClient(), cfg.Session.TTL)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments)
	defer producer.Close()
	publisher := broker.NewEventPublisher(producer)

	backend := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout)

	cartService := service.NewCartService(backend, redisClient)
	paymentService := service.NewPaymentService(backend, db, publisher, service.PollConfig{
		Interval:    cfg.Payments.PollInterval,
		MaxAttempts: cfg.Payments.PollMaxAttempts,
	})
	authService := service.NewAuthService(backend, sessions)

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ConsumerGroup)
	checkoutWorker := worker.NewCheckoutWorker(consumer, cartService, sessions, db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go func() {
		if err := checkoutWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Checkout worker stopped", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	handler := api.NewHandler(cartService, paymentService, authService, sessions)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := checkoutWorker.Stop(); err != nil {
		logger.Error("Failed to stop checkout worker", zap.Error(err))
	}

	paymentService.Shutdown()

	logger.Info("Server exited")
}
