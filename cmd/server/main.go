package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"planner/internal/ai"
	"planner/internal/api"
	"planner/internal/assistant"
	"planner/internal/config"
	"planner/internal/event"
	"planner/internal/mqhandler"
	"planner/internal/repository"
	"planner/internal/service"
	"planner/internal/util"
	"planner/pkg/crypto"
	"planner/pkg/db"
	"planner/pkg/logger"
	"planner/pkg/mq"
	"planner/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting planner server...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ publisher for domain events
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Crypto for stored profile API keys
	encryptor, err := crypto.NewKeyEncryptor(cfg.Crypto.Key)
	if err != nil {
		log.Fatal("Failed to init key encryptor", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbConn, log)
	profileRepo := repository.NewProfileRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	deliverableRepo := repository.NewDeliverableRepository(dbConn, log)
	reportRepo := repository.NewReportRepository(dbConn, log)

	// AI gateway
	aiClient := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.WhisperModel, log)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret)
	profileService := service.NewProfileService(profileRepo, encryptor)
	aiResolver := service.NewAIResolver(aiClient, profileService, log)
	projectService := service.NewProjectService(projectRepo)
	deliverableService := service.NewDeliverableService(
		deliverableRepo, reportRepo, projectRepo,
		aiResolver, publisher, log,
	)

	summaryCache := service.NewRedisSummaryCache(rdb)
	summaryService := service.NewSummaryService(
		projectRepo, deliverableRepo, reportRepo,
		aiResolver, summaryCache,
		time.Duration(cfg.Summary.CacheTTLMinutes)*time.Minute,
		log,
	)

	assistantStore := assistant.NewStore(
		time.Duration(cfg.Assistant.CaptureMaxSeconds)*time.Second,
		time.Duration(cfg.Assistant.SessionTTLMinutes)*time.Minute,
		aiClient, aiClient, log,
	)

	// MQ consumers invalidating cached summaries on domain events, one
	// queue per routing key so dedupe stays scoped per event kind.
	deduper := util.NewDeduper(rdb, 10*time.Minute)

	type invalidation struct {
		queue      string
		routingKey string
	}
	var consumers []*mq.Consumer
	for _, inv := range []invalidation{
		{"planner.summary.created.q", event.RoutingKeyDeliverableCreated},
		{"planner.summary.completed.q", event.RoutingKeyDeliverableCompleted},
		{"planner.summary.report.q", event.RoutingKeyReportCreated},
	} {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, inv.queue, inv.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer",
				zap.String("routing_key", inv.routingKey),
				zap.Error(err),
			)
		}
		defer consumer.Close()

		consumer.SetHandler(mqhandler.NewSummaryCacheHandler(summaryCache, deduper, inv.routingKey, log).Handle)
		go func(c *mq.Consumer, key string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("routing_key", key), zap.Error(err))
			}
		}(consumer, inv.routingKey)
		consumers = append(consumers, consumer)
	}

	// Handlers
	handlers := api.Handlers{
		Auth:        api.NewAuthHandler(authService, log),
		Project:     api.NewProjectHandler(projectService, deliverableService, summaryService, log),
		Board:       api.NewBoardHandler(deliverableService, log),
		Deliverable: api.NewDeliverableHandler(deliverableService, log),
		Assistant:   api.NewAssistantHandler(assistantStore, log),
		Transcribe:  api.NewTranscribeHandler(aiResolver, log),
		Profile:     api.NewProfileHandler(profileService, log),
	}

	router := api.NewRouter(handlers, cfg.JWT.Secret, log, dbConn, consumers[0])

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down planner server gracefully...")

	for _, c := range consumers {
		c.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Planner server shutdown complete")
}
