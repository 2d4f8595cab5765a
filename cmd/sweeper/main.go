package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/scamshield-ai/honeypot-platform/cmd/mainconfig"
	"github.com/scamshield-ai/honeypot-platform/internal/archive"
	appconfig "github.com/scamshield-ai/honeypot-platform/internal/config"
	"github.com/scamshield-ai/honeypot-platform/internal/honeypot"
	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/internal/report"
	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Standalone idle-session sweeper. Runs the same reaper loop the API server
// embeds, for deployments that scale the sweep cadence independently.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting honeypot-platform sweeper",
		"env", cfg.Env,
		"idle_timeout", cfg.IdleTimeout.String(),
		"sweep_interval", cfg.SweepInterval.String(),
	)

	if cfg.UseMemoryInfra {
		logger.Error("sweeper requires shared infrastructure; unset USE_MEMORY_INFRA")
		os.Exit(1)
	}
	if cfg.ReportSinkURL == "" {
		logger.Error("REPORT_SINK_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	engagementMetrics := metrics.NewEngagementMetrics(nil)
	repo := session.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable, logger)

	sink := report.NewHTTPSink(cfg.ReportSinkURL, cfg.ReportSinkAuthToken, 10*time.Second, logger)
	var dispatcher *report.Dispatcher
	if cfg.ReportQueueURL == "" {
		dispatcher = report.NewDispatcher(report.NewMemoryQueue(cfg.ReportDispatchBuffer), sink,
			cfg.ReportWorkerCount, logger, report.WithDispatcherMetrics(engagementMetrics))
	} else {
		dispatcher = report.NewDispatcher(report.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReportQueueURL),
			sink, cfg.ReportWorkerCount, logger, report.WithDispatcherMetrics(engagementMetrics))
	}
	dispatcher.Start()

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

	var summaryPool honeypot.LLMClient
	if len(backends) > 0 {
		summaryPool = honeypot.NewFailoverClient("summary", backends, logger,
			honeypot.WithFailoverMetrics(engagementMetrics))
	}
	summarizer := honeypot.NewLLMSummarizer(summaryPool, cfg.BedrockModelID, int32(cfg.SummaryMaxTokens), logger)

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

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		sweeper.Run(runCtx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down sweeper...")
	stop()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
