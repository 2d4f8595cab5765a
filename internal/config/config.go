package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	WorkerCount   int
	UseMemoryInfra bool

	// Session store
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SessionsTable       string

	// Report dispatch
	ReportQueueURL       string
	ReportSinkURL        string
	ReportSinkAuthToken  string
	ReportDispatchBuffer int
	ReportWorkerCount    int

	// Engagement limits
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
	MaxMessages       int
	TurnBudget        time.Duration
	ExtractionTimeout time.Duration
	DecisionTimeout   time.Duration

	// LLM providers. Comma-separated key lists form the failover pool
	// for each capability.
	BedrockModelID     string
	BedrockRegions     string
	GeminiAPIKeys      string
	GeminiModelID      string
	ReplyMaxTokens     int
	SummaryMaxTokens   int

	// Transcript context cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ContextWindow int

	// Engagement archive
	DatabaseURL   string
	ArchiveBucket string

	// Ops notification
	SESFromEmail  string
	SESFromName   string
	ReportOpsEmail string

	// Admin surface
	AdminJWTSecret string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		UseMemoryInfra: getEnvAsBool("USE_MEMORY_INFRA", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SessionsTable:       getEnv("SESSIONS_TABLE", "scam_sessions"),

		ReportQueueURL:       getEnv("REPORT_QUEUE_URL", ""),
		ReportSinkURL:        getEnv("REPORT_SINK_URL", ""),
		ReportSinkAuthToken:  getEnv("REPORT_SINK_AUTH_TOKEN", ""),
		ReportDispatchBuffer: getEnvAsInt("REPORT_DISPATCH_BUFFER", 128),
		ReportWorkerCount:    getEnvAsInt("REPORT_WORKER_COUNT", 2),

		IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 45*time.Second),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
		SweepBatchSize:    getEnvAsInt("SWEEP_BATCH_SIZE", 100),
		MaxMessages:       getEnvAsInt("MAX_MESSAGES", 15),
		TurnBudget:        getEnvAsDuration("TURN_BUDGET", 25*time.Second),
		ExtractionTimeout: getEnvAsDuration("EXTRACTION_TIMEOUT", 3*time.Second),
		DecisionTimeout:   getEnvAsDuration("DECISION_TIMEOUT", 5*time.Second),

		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		BedrockRegions:   getEnv("BEDROCK_REGIONS", ""),
		GeminiAPIKeys:    getEnv("GEMINI_API_KEYS", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		ReplyMaxTokens:   getEnvAsInt("REPLY_MAX_TOKENS", 60),
		SummaryMaxTokens: getEnvAsInt("SUMMARY_MAX_TOKENS", 200),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ContextWindow: getEnvAsInt("CONTEXT_WINDOW", 6),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		SESFromEmail:   getEnv("SES_FROM_EMAIL", ""),
		SESFromName:    getEnv("SES_FROM_NAME", "Honeypot Platform"),
		ReportOpsEmail: getEnv("REPORT_OPS_EMAIL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// KeyList splits a comma-separated credential list, dropping blanks.
func KeyList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
