package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	EvolutionAPIURL   string
	EvolutionAPIKey   string
	EvolutionInstance string
	WebhookAPIKey     string

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	LLMTimeout       time.Duration
	TranscribeModel  string

	RedisAddr     string
	RedisPassword string
	HistoryTTL    time.Duration

	PDFDir        string
	PDFTTL        time.Duration
	SweepInterval time.Duration
	SweepBatch    int

	LeadRatePerMinute  int
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OperatorEmail     string

	AllowedPhones []string
	BlockedPhones []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		EvolutionAPIURL:   strings.TrimRight(getEnv("EVOLUTION_API_URL", ""), "/"),
		EvolutionAPIKey:   getEnv("EVOLUTION_API_KEY", ""),
		EvolutionInstance: getEnv("EVOLUTION_INSTANCE", "main"),
		WebhookAPIKey:     getEnv("WEBHOOK_API_KEY", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),

		PDFDir:        getEnv("PDF_DIR", os.TempDir()),
		PDFTTL:        getEnvAsDuration("PDF_TTL", 60*time.Second),
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepBatch:    getEnvAsInt("SWEEP_BATCH", 50),

		LeadRatePerMinute:  getEnvAsInt("LEAD_RATE_PER_MINUTE", 5),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "OS Assistant"),
		OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),

		AllowedPhones: getEnvAsList("ALLOWED_PHONES"),
		BlockedPhones: getEnvAsList("BLOCKED_PHONES"),
	}
}

// Validate reports missing required settings. In production a missing key is
// an error; elsewhere the caller may choose to continue with degraded features.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.EvolutionAPIURL == "" {
		missing = append(missing, "EVOLUTION_API_URL")
	}
	if c.EvolutionAPIKey == "" {
		missing = append(missing, "EVOLUTION_API_KEY")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

// getEnvAsList splits a comma-separated env value, trimming blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
