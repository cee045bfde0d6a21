package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/database"
)

// ReminderConfig はリマインダーバッチの設定です
type ReminderConfig struct {
	// 同時に処理するゲスト数。1なら逐次処理
	Concurrency int
	// cmd/scheduler が使うcron式
	CronSpec string
	// Redisで送信中のゲストを保持する時間
	InFlightTTL time.Duration
}

// MailConfig はメール送信の設定です
type MailConfig struct {
	From    string
	BaseURL string
}

type Config struct {
	Env string
	DB  database.Config
	SFN struct {
		TaskToken string
	}
	EnableTracing bool
	LogLevel      string

	Reminder ReminderConfig
	Mail     MailConfig

	// SMSの宛先を正規化するときの既定の国コード
	DefaultPhoneRegion string

	RedisURL         string
	TelegramBotToken string
	QueueConcurrency int
}

// LoadConfig は設定を読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	cfg := &Config{
		Env: os.Getenv("ENV"),
		DB: database.Config{
			Host:           getEnvOrDefault("DB_HOST", "localhost"),
			Port:           getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName:       getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password:       getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:         getEnvOrDefault("DB_NAME", "sbcntrapp"),
			SSLMode:        os.Getenv("DB_SSL_MODE"),
			ConnectRetries: uint64(getEnvAsIntOrDefault("DB_CONNECT_RETRIES", 5)),
		},
		SFN: struct {
			TaskToken string
		}{
			TaskToken: taskToken,
		},
		EnableTracing: false,
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		Reminder: ReminderConfig{
			Concurrency: getEnvAsIntOrDefault("REMINDER_CONCURRENCY", 4),
			CronSpec:    getEnvOrDefault("REMINDER_CRON", "*/15 * * * *"),
			InFlightTTL: getEnvAsDurationOrDefault("REMINDER_INFLIGHT_TTL", 10*time.Minute),
		},
		Mail: MailConfig{
			From:    getEnvOrDefault("MAIL_FROM", "no-reply@example.com"),
			BaseURL: getEnvOrDefault("APP_BASE_URL", "http://localhost:8080"),
		},
		DefaultPhoneRegion: getEnvOrDefault("DEFAULT_PHONE_REGION", "JP"),
		RedisURL:           os.Getenv("REDIS_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		QueueConcurrency:   getEnvAsIntOrDefault("ASYNQ_CONCURRENCY", 10),
	}

	if cfg.Reminder.Concurrency < 1 {
		return nil, fmt.Errorf("REMINDER_CONCURRENCY must be at least 1, got %d", cfg.Reminder.Concurrency)
	}
	if cfg.Reminder.InFlightTTL <= 0 {
		return nil, fmt.Errorf("REMINDER_INFLIGHT_TTL must be positive, got %v", cfg.Reminder.InFlightTTL)
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// IsLocal はローカル実行かどうかを返します。ローカルではAWSへの通知を行いません
func (c *Config) IsLocal() bool {
	return c.Env == "LOCAL"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Debug().Str("key", key).Msg("Environment variable is not set, using default value")
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Environment variable is not an integer, using default value")
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Environment variable is not a duration, using default value")
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
