package main

import (
	"context"
	"time"

	heraldconfig "newsdesk/internal/config"
	"newsdesk/internal/gateway"
	"newsdesk/internal/imagegen"
	"newsdesk/internal/ledger"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/queue"
	"newsdesk/internal/rewrite"
	"newsdesk/internal/social"
	"newsdesk/internal/store"
	"newsdesk/internal/telegram"
	"newsdesk/internal/worker"
	"newsdesk/pkg/cache"
	"newsdesk/pkg/config"
	"newsdesk/pkg/database"
	"newsdesk/pkg/kafka"
	"newsdesk/pkg/llm"
	"newsdesk/pkg/logging"
	"newsdesk/pkg/monitoring"
	"newsdesk/pkg/server"
	"newsdesk/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GetShortCommit(),
	}).Info("Starting Herald (content moderation and publishing)")

	cfg := heraldconfig.LoadConfig()
	cfg.TelegramBotToken = config.RequireEnv("TELEGRAM_BOT_TOKEN")
	cfg.WebhookSecret = config.RequireEnv("TELEGRAM_WEBHOOK_SECRET")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	if err := database.ApplySchema(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":            cfg.DatabaseURL,
		"TELEGRAM_BOT_TOKEN":      cfg.TelegramBotToken,
		"TELEGRAM_WEBHOOK_SECRET": cfg.WebhookSecret,
	}))

	// Telegram client serves both moderation chat and channel publishing
	tgClient := telegram.NewClient(telegram.Config{
		BotToken: cfg.TelegramBotToken,
		BaseURL:  cfg.TelegramAPIURL,
	}, logger)

	// Social publishers
	var publishers []social.Publisher
	if len(cfg.ChannelIDs) > 0 {
		publishers = append(publishers, social.NewTelegramPublisher(tgClient, cfg.ChannelIDs))
	} else {
		logger.Warn("No Telegram channels configured - channel publishing disabled")
	}
	if cfg.XBearerToken != "" {
		publishers = append(publishers, social.NewXPublisher(social.XConfig{BearerToken: cfg.XBearerToken}))
	} else {
		logger.Warn("X_BEARER_TOKEN not set - X publishing disabled")
	}
	registry := social.NewRegistry(publishers...)

	// LLM-backed rewriter
	llmProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.LLMAPIKey,
		APIURL:   cfg.LLMAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize LLM provider - rewrites will fail")
		llmProvider = nil
	}
	rewriter := rewrite.NewRewriter(rewrite.Config{LLM: llmProvider, Logger: logger})

	imageGen := imagegen.NewGenerator(imagegen.Config{
		BaseURL: cfg.ImageAPIURL,
		APIKey:  cfg.ImageAPIKey,
		Logger:  logger,
	})
	if cfg.ImageAPIURL == "" {
		logger.Warn("IMAGE_API_URL not set - items will publish without images")
	}

	// Domain stores and queue
	contentStore := store.NewContentStore(db)
	postLedger := ledger.NewLedger(db)
	publishQueue := queue.NewQueue(db, logger)

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Store:       contentStore,
		Ledger:      postLedger,
		Rewriter:    rewriter,
		Images:      imageGen,
		Publishers:  registry,
		Logger:      logger,
		Metrics:     pipeline.NewMetrics(metricsCollector),
		PostTimeout: cfg.PostTimeout,
	})

	backgroundWorker := worker.NewWorker(worker.Config{
		Pipeline:    orchestrator,
		Notifier:    tgClient,
		Queue:       publishQueue,
		Store:       contentStore,
		Logger:      logger,
		TaskTimeout: cfg.TaskTimeout,
	})

	// Task transport: durable Kafka queue when brokers are configured,
	// in-process goroutines otherwise.
	var dispatcher worker.Dispatcher
	var inProcess *worker.InProcessDispatcher
	if cfg.KafkaEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClusterID, "herald", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer func() { _ = producer.Close() }()

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "herald-workers", "herald", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer func() { _ = consumer.Close() }()

		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))

		taskConsumer := worker.NewTaskConsumer(consumer, producer, backgroundWorker,
			cfg.TaskTopic, cfg.TaskDLQTopic, logger)
		go func() {
			if err := taskConsumer.Start(context.Background()); err != nil && err != context.Canceled {
				logger.WithError(err).Error("Task consumer stopped")
			}
		}()

		dispatcher = worker.NewKafkaDispatcher(producer, cfg.TaskTopic, logger)
		logger.WithField("topic", cfg.TaskTopic).Info("Using durable Kafka task queue")
	} else {
		inProcess = worker.NewInProcessDispatcher(backgroundWorker, logger)
		dispatcher = inProcess
		logger.Info("KAFKA_BROKERS not set - running tasks in process")
	}

	// Queue admissions launch publish tasks through the dispatcher.
	publishQueue.SetStarter(worker.NewLauncher(contentStore, dispatcher, logger))

	// Resume anything left queued by a previous run.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	publishQueue.Kick(startupCtx)
	startupCancel()

	scheduler := gateway.NewScheduler(logger)
	defer scheduler.Stop()

	gw := gateway.NewGateway(gateway.Config{
		Store:            contentStore,
		Queue:            publishQueue,
		Dispatcher:       dispatcher,
		Telegram:         tgClient,
		Scheduler:        scheduler,
		Updates:          cache.New(cache.Options{TTL: 10 * time.Minute, MaxEntries: config.GetEnvInt("UPDATE_DEDUP_CACHE_SIZE", 4096)}, cache.MetricsHooks{}),
		Ledger:           postLedger,
		Logger:           logger,
		ModerationChatID: cfg.ModerationChatID,
		WebhookSecret:    cfg.WebhookSecret,
		ServiceToken:     cfg.ServiceToken,
	})

	// Setup router with unified monitoring (health/metrics only)
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)
	gw.RegisterRoutes(router)

	serverConfig := server.DefaultConfig("herald", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	if inProcess != nil {
		inProcess.Wait()
	}
}
