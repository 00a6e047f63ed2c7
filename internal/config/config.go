package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Redis (availability cache)
	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool
	AvailabilityCacheTTL time.Duration

	// Email
	EmailProvider     string
	EmailFrom         string
	EmailFromName     string
	SendGridAPIKey    string
	AWSRegion         string
	ReminderInterval  time.Duration
	ReminderBatchSize int

	// Backups
	BackupDir           string
	BackupRetentionDays int
	BackupHour          int
	BackupMinute        int
	BackupS3Bucket      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvAsDuration("TOKEN_TTL", 12*time.Hour),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", time.Minute),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "stub"),
		EmailFrom:         getEnv("EMAIL_FROM", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Hospital Portal"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		ReminderInterval:  getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderBatchSize: getEnvAsInt("REMINDER_BATCH_SIZE", 100),

		BackupDir:           getEnv("BACKUP_DIR", "backups"),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		BackupHour:          getEnvAsInt("BACKUP_HOUR", 2),
		BackupMinute:        getEnvAsInt("BACKUP_MINUTE", 0),
		BackupS3Bucket:      getEnv("BACKUP_S3_BUCKET", ""),
	}
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
