package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	GeminiAPIKey       string
	GeminiDetectModel  string
	GeminiExplainModel string

	TelegramBotToken string
	WebhookURL       string

	DatabaseURL string

	LogLevel  string
	LogFormat string

	RequestTimeout time.Duration
	MaxUploadBytes int64
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiDetectModel:  getEnv("GEMINI_DETECT_MODEL", "gemini-2.5-flash"),
		GeminiExplainModel: getEnv("GEMINI_EXPLAIN_MODEL", "gemini-2.5-pro"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 180*time.Second),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
	}
}

// Require fails when any of the named settings is empty.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		var v string
		switch k {
		case "GEMINI_API_KEY":
			v = c.GeminiAPIKey
		case "TELEGRAM_BOT_TOKEN":
			v = c.TelegramBotToken
		case "DATABASE_URL":
			v = c.DatabaseURL
		default:
			v = os.Getenv(k)
		}
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env %s", strings.Join(missing, ", "))
	}
	return nil
}
