package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Dialog engine
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
	MaxInvalidAttempts   int
	EndedCallRetention   time.Duration
	SkipCode             string
	YesCode              string
	NoCode               string
	EchoAnswers          bool
	Timezone             string

	// Carrier webhook
	CarrierWebhookSecret string
	WebhookRateLimit     float64
	WebhookRateBurst     int

	// Committed report notifications
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ReportsQueueURL     string
	OutboxPollInterval  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionIdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 90*time.Second),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Second),
		MaxInvalidAttempts:   getEnvAsInt("MAX_INVALID_ATTEMPTS", 8),
		EndedCallRetention:   getEnvAsDuration("ENDED_CALL_RETENTION", 15*time.Minute),
		SkipCode:             strings.TrimSpace(getEnv("SKIP_CODE", "*")),
		YesCode:              strings.TrimSpace(getEnv("YES_CODE", "1")),
		NoCode:               strings.TrimSpace(getEnv("NO_CODE", "2")),
		EchoAnswers:          getEnvAsBool("ECHO_ANSWERS", true),
		Timezone:             getEnv("TIMEZONE", "UTC"),

		CarrierWebhookSecret: getEnv("CARRIER_WEBHOOK_SECRET", ""),
		WebhookRateLimit:     getEnvAsFloat("WEBHOOK_RATE_LIMIT", 50),
		WebhookRateBurst:     getEnvAsInt("WEBHOOK_RATE_BURST", 100),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReportsQueueURL:     getEnv("REPORTS_QUEUE_URL", ""),
		OutboxPollInterval:  getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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
