package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/scamshield-ai/honeypot-platform/cmd/mainconfig"
	"github.com/scamshield-ai/honeypot-platform/internal/api/router"
	"github.com/scamshield-ai/honeypot-platform/internal/archive"
	appconfig "github.com/scamshield-ai/honeypot-platform/internal/config"
	"github.com/scamshield-ai/honeypot-platform/internal/honeypot"
	"github.com/scamshield-ai/honeypot-platform/internal/notify"
	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/internal/report"
	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting honeypot-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	engagementMetrics := metrics.NewEngagementMetrics(nil)

	// Session repository
	var repo session.Repository
	if cfg.UseMemoryInfra {
		repo = session.NewMemoryRepository()
		logger.Info("using in-memory session repository")
	} else {
		repo = session.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable, logger)
	}

	// Report dispatch
	if cfg.ReportSinkURL == "" {
		logger.Error("REPORT_SINK_URL is required")
		os.Exit(1)
	}
	sink := report.NewHTTPSink(cfg.ReportSinkURL, cfg.ReportSinkAuthToken, 10*time.Second, logger)

	var dispatcher *report.Dispatcher
	if cfg.UseMemoryInfra || cfg.ReportQueueURL == "" {
		dispatcher = report.NewDispatcher(report.NewMemoryQueue(cfg.ReportDispatchBuffer), sink,
			cfg.ReportWorkerCount, logger, report.WithDispatcherMetrics(engagementMetrics))
		logger.Info("using in-memory report queue")
	} else {
		dispatcher = report.NewDispatcher(report.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReportQueueURL),
			sink, cfg.ReportWorkerCount, logger, report.WithDispatcherMetrics(engagementMetrics))
	}
	dispatcher.Start()

	// LLM failover backends, ordered Bedrock regions first, Gemini keys after.
	var backends []honeypot.LLMClient
	regions := appconfig.KeyList(cfg.BedrockRegions)
	if len(regions) == 0 && cfg.BedrockModelID != "" {
		regions = []string{cfg.AWSRegion}
	}
	for _, region := range regions {
		regionCfg := awsCfg.Copy()
		regionCfg.Region = region
		backends = append(backends, honeypot.NewBedrockLLMClient(bedrockruntime.NewFromConfig(regionCfg)))
	}
	for _, key := range appconfig.KeyList(cfg.GeminiAPIKeys) {
		client, err := honeypot.NewGeminiLLMClient(ctx, key, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to build gemini backend", "error", err)
			continue
		}
		backends = append(backends, client)
	}
	if len(backends) == 0 {
		logger.Error("no llm backends configured; set BEDROCK_MODEL_ID or GEMINI_API_KEYS")
		os.Exit(1)
	}

	replyPool := honeypot.NewFailoverClient("reply", backends, logger,
		honeypot.WithFailoverMetrics(engagementMetrics))
	extractPool := honeypot.NewFailoverClient("extraction", backends, logger,
		honeypot.WithFailoverMetrics(engagementMetrics))
	decisionPool := honeypot.NewFailoverClient("decision", backends, logger,
		honeypot.WithFailoverMetrics(engagementMetrics))
	summaryPool := honeypot.NewFailoverClient("summary", backends, logger,
		honeypot.WithFailoverMetrics(engagementMetrics))
	classifyPool := honeypot.NewFailoverClient("classification", backends, logger,
		honeypot.WithFailoverMetrics(engagementMetrics))

	// Transcript context cache
	var cache *honeypot.ContextCache
	if !cfg.UseMemoryInfra && cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = honeypot.NewContextCache(redis.NewClient(opts), cfg.ContextWindow, nil)
	}

	// Engagement archive
	var stores []archive.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open archive database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		stores = append(stores, archive.NewPostgresStore(db, logger))
	}
	if cfg.ArchiveBucket != "" {
		stores = append(stores, archive.NewS3Store(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger))
	}
	var archiver honeypot.Archiver
	if len(stores) > 0 {
		archiver = archive.NewMulti(stores...)
	}

	// Ops notification
	var notifier honeypot.Notifier
	if cfg.SESFromEmail != "" && cfg.ReportOpsEmail != "" && !cfg.UseMemoryInfra {
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		notifier = notify.NewReportNotifier(sender, cfg.ReportOpsEmail, logger)
	}

	extractor := honeypot.NewContextualExtractor(
		honeypot.NewRegexExtractor(), extractPool, cfg.BedrockModelID, cfg.ExtractionTimeout, logger)
	replies := honeypot.NewPersonaReplyGenerator(replyPool, cfg.BedrockModelID, int32(cfg.ReplyMaxTokens), logger)
	decider := honeypot.NewThresholdDecider(decisionPool, cfg.BedrockModelID, logger)
	summarizer := honeypot.NewLLMSummarizer(summaryPool, cfg.BedrockModelID, int32(cfg.SummaryMaxTokens), logger)
	classifier := honeypot.NewLLMClassifier(classifyPool, cfg.BedrockModelID, logger)

	engine := honeypot.NewEngine(honeypot.EngineParams{
		Repo:        repo,
		Classifier:  classifier,
		Extractor:   extractor,
		Replies:     replies,
		Decider:     decider,
		Summarizer:  summarizer,
		Reports:     dispatcher,
		Cache:       cache,
		Archiver:    archiver,
		Notifier:    notifier,
		Metrics:     engagementMetrics,
		Logger:      logger,
		MaxMessages: cfg.MaxMessages,
	})

	sweeper := honeypot.NewIdleSweeper(honeypot.SweeperParams{
		Repo:          repo,
		Summarizer:    summarizer,
		Reports:       dispatcher,
		Archiver:      archiver,
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		BatchSize:     cfg.SweepBatchSize,
		Metrics:       engagementMetrics,
		Logger:        logger,
	})

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	handler := honeypot.NewHandler(engine, logger)
	r := router.New(&router.Config{
		Logger:          logger,
		HoneypotHandler: handler,
		MetricsHandler:  promhttp.Handler(),
		AdminAuthSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
