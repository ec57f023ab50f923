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

	"github.com/shualoalumin/dics-camp/config"
	"github.com/shualoalumin/dics-camp/internal/api"
	"github.com/shualoalumin/dics-camp/internal/broker"
	"github.com/shualoalumin/dics-camp/internal/redisclient"
	"github.com/shualoalumin/dics-camp/internal/service"
	"github.com/shualoalumin/dics-camp/internal/store"
	"github.com/shualoalumin/dics-camp/internal/toss"
	"github.com/shualoalumin/dics-camp/internal/util"
	"github.com/shualoalumin/dics-camp/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting camp registration service")

	tp, err := util.InitTracer("dics-camp", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	ctx := context.Background()
	if err := redisClient.InitSlots(ctx, cfg.Camp.Capacity); err != nil {
		log.Printf("Failed to seed camp slot pool: %v", err)
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	tossClient := toss.NewClient(cfg.Toss.APIBaseURL, cfg.Toss.SecretKey)

	registrationService := service.NewRegistrationService(db, redisClient, eventPublisher, cfg.Camp.FeeAmount, cfg.Camp.AppBaseURL)
	paymentService := service.NewPaymentService(db, redisClient, tossClient, eventPublisher, cfg.Camp.AppBaseURL)
	webhookService := service.NewWebhookService(db, redisClient, eventPublisher, cfg.Toss.WebhookSecret)
	sweeper := service.NewSweeper(db, redisClient, eventPublisher, cfg.Camp.PendingTimeout)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeperWorker := worker.NewSweeperWorker(sweeper, cfg.Camp.SweepInterval)
	go func() {
		if err := sweeperWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sweeper worker error: %v", err)
		}
	}()

	notifierConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notifierWorker := worker.NewNotifierWorker(notifierConsumer, db)
	go func() {
		if err := notifierWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Notifier worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(registrationService, paymentService, webhookService, sweeper)
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

	workerCancel()
	notifierWorker.Stop()

	log.Println("Server exited")
}
