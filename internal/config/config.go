// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, webhook protection,
// per-chat rate limiting, the LLM budget, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/remindbot/go-reminder-backend/internal/sysutil"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-reminder-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WebhookConfig defines inbound webhook protection settings.
type WebhookConfig struct {
	Path         string        // route the transport posts updates to
	Secret       string        // shared secret expected in the secret header
	MaxUpdateAge time.Duration // updates older than this are acknowledged and dropped
	DedupTTL     time.Duration // recency horizon of the update-id dedup guard
}

// LLMConfig defines settings for the guarded language-model dependency.
type LLMConfig struct {
	BaseURL          string        // upstream API root
	Model            string        // upstream model identifier
	APIKey           string        // upstream credential (never logged)
	CallTimeout      time.Duration // per-attempt timeout, classified transient on expiry
	RetryMaxAttempts int           // bounded attempts for transient failures
	RetryInitialWait time.Duration // first backoff interval, grows per attempt

	MonthlyBudgetUSD float64 // hard monthly spend ceiling
	InputCostPer1K   float64 // estimated USD per 1k input tokens
	OutputCostPer1K  float64 // estimated USD per 1k output tokens

	CircuitFailureThreshold int           // consecutive transient failures before opening
	CircuitOpenFor          time.Duration // cooldown while the circuit is open

	ChatRateRPS   float64 // per-chat token-bucket refill rate
	ChatRateBurst int     // per-chat bucket size
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath   string // SQLite path
	Timezone string // IANA zone name used to resolve chat-local times

	// Telegram
	TelegramToken string // bot credential used for outbound sends
	AdminChatID   int64  // chat that receives budget alerts; 0 disables forwarding

	// Guarded surfaces
	Webhook WebhookConfig
	LLM     LLMConfig

	// Dispatch
	DispatchBatchSize int // max due reminders delivered per scheduler tick

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment (optionally seeded from a
// local .env file), applies defaults, normalizes values, and validates the
// result.
func Load() (Config, error) {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:   getenv("DB_PATH", "app.db"),
		Timezone: getenv("APP_TIMEZONE", "UTC"),

		TelegramToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		AdminChatID:   getint64("ADMIN_CHAT_ID", 0),

		Webhook: WebhookConfig{
			Path:         getenv("WEBHOOK_PATH", "/webhook/telegram"),
			Secret:       getenv("WEBHOOK_SECRET", "dev-secret"),
			MaxUpdateAge: getdur("WEBHOOK_MAX_UPDATE_AGE", 5*time.Minute),
			DedupTTL:     getdur("WEBHOOK_DEDUP_TTL", 10*time.Minute),
		},

		LLM: LLMConfig{
			BaseURL:          getenv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:            getenv("LLM_MODEL", "gpt-4.1-mini"),
			APIKey:           getenv("LLM_API_KEY", ""),
			CallTimeout:      getdur("LLM_CALL_TIMEOUT", 20*time.Second),
			RetryMaxAttempts: getint("LLM_RETRY_MAX_ATTEMPTS", 2),
			RetryInitialWait: getdur("LLM_RETRY_INITIAL_WAIT", 500*time.Millisecond),

			MonthlyBudgetUSD: getfloat("LLM_MONTHLY_BUDGET_USD", 10.0),
			InputCostPer1K:   getfloat("LLM_INPUT_COST_PER_1K", 0.0003),
			OutputCostPer1K:  getfloat("LLM_OUTPUT_COST_PER_1K", 0.0012),

			CircuitFailureThreshold: getint("LLM_CIRCUIT_FAILURE_THRESHOLD", 3),
			CircuitOpenFor:          getdur("LLM_CIRCUIT_OPEN_FOR", time.Minute),

			ChatRateRPS:   getfloat("CHAT_RATE_RPS", 0.1),
			ChatRateBurst: getint("CHAT_RATE_BURST", 5),
		},

		DispatchBatchSize: getint("DISPATCH_BATCH_SIZE", 100),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-reminder-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		return cfg, errors.New("APP_TIMEZONE must not be empty")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, errors.New("APP_TIMEZONE must be a valid IANA zone name")
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return cfg, errors.New("WEBHOOK_PATH must start with '/'")
	}
	if cfg.Webhook.MaxUpdateAge <= 0 {
		return cfg, errors.New("WEBHOOK_MAX_UPDATE_AGE must be > 0")
	}
	if cfg.Webhook.DedupTTL <= 0 {
		return cfg, errors.New("WEBHOOK_DEDUP_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.LLM.BaseURL) == "" {
		return cfg, errors.New("LLM_BASE_URL must not be empty")
	}
	if cfg.LLM.CallTimeout <= 0 {
		return cfg, errors.New("LLM_CALL_TIMEOUT must be > 0")
	}
	if cfg.LLM.RetryMaxAttempts < 1 {
		return cfg, errors.New("LLM_RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.LLM.RetryInitialWait <= 0 {
		return cfg, errors.New("LLM_RETRY_INITIAL_WAIT must be > 0")
	}
	if cfg.LLM.MonthlyBudgetUSD <= 0 {
		return cfg, errors.New("LLM_MONTHLY_BUDGET_USD must be > 0")
	}
	if cfg.LLM.InputCostPer1K < 0 || cfg.LLM.OutputCostPer1K < 0 {
		return cfg, errors.New("LLM token cost estimates must be >= 0")
	}
	if cfg.LLM.CircuitFailureThreshold < 1 {
		return cfg, errors.New("LLM_CIRCUIT_FAILURE_THRESHOLD must be >= 1")
	}
	if cfg.LLM.CircuitOpenFor <= 0 {
		return cfg, errors.New("LLM_CIRCUIT_OPEN_FOR must be > 0")
	}
	if cfg.LLM.ChatRateRPS < 0 {
		return cfg, errors.New("CHAT_RATE_RPS must be >= 0")
	}
	if cfg.LLM.ChatRateBurst < 1 {
		return cfg, errors.New("CHAT_RATE_BURST must be >= 1")
	}
	if cfg.DispatchBatchSize < 1 {
		return cfg, errors.New("DISPATCH_BATCH_SIZE must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
