package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice/config"
	"backoffice/internal/api"
	"backoffice/internal/broker"
	"backoffice/internal/gateway"
	"backoffice/internal/mongostore"
	"backoffice/internal/redisclient"
	"backoffice/internal/service"
	"backoffice/internal/store"
	"backoffice/internal/util"
	"backoffice/internal/worker"

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
	logger.Info("Starting backoffice service", zap.String("instance", cfg.Gateway.InstanceID))

	tp, err := util.InitTracer("backoffice", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	handlerChecks := map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	}

	var backend service.SequenceBackend
	switch cfg.Business.CounterBackend {
	case config.CounterBackendPostgres:
		backend = db
	case config.CounterBackendRedis:
		backend = redisClient
	case config.CounterBackendMongo:
		mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		counters, err := mongostore.Connect(mongoCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = counters.Close(closeCtx)
		}()
		handlerChecks["mongo"] = counters
		backend = counters
		logger.Info("MongoDB connected")
	default:
		log.Fatalf("Unknown COUNTER_BACKEND %q", cfg.Business.CounterBackend)
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicNotifications))

	eventPublisher := broker.NewEventPublisher(producer)

	sequenceService := service.NewSequenceService(backend, cfg.Business.CounterBackend)
	orderService := service.NewOrderService(db, sequenceService, eventPublisher, cfg.Business.OrderCreateAttempts)
	inventoryService := service.NewInventoryService(db, eventPublisher)

	hub := gateway.NewHub(orderService, redisClient, gateway.Options{
		SendBuffer:     cfg.Gateway.SendBuffer,
		PongTimeout:    cfg.Gateway.PongTimeout,
		WriteTimeout:   cfg.Gateway.WriteTimeout,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	relay := worker.NewNotificationRelay(consumer, hub)
	go func() {
		if err := relay.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Notification relay stopped", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, inventoryService, sequenceService, redisClient, hub.ServeWS)
	for name, p := range handlerChecks {
		handler.AddReadinessCheck(name, p)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	hub.Close()
	workerCancel()
	relay.Stop()

	logger.Info("Server exited")
}
