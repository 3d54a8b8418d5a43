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
	Port      string
	DBUrl     string
	JWTSecret string
	AppEnv    string
	LogLevel  string

	RedisAddr     string
	RedisPassword string
	PostCacheTTL  time.Duration
	NATSUrl       string

	MetricsEnabled bool

	QuotaMaxFreeMessages   int
	QuotaResetPeriod       string
	QuotaResetInterval     time.Duration
	LikesReconcileInterval time.Duration

	DefaultAdminEmail    string
	DefaultAdminPassword string
}

// LoadConfig reads the environment, loading .env first when present. The
// returned bool reports whether a .env file was found.
func LoadConfig() (*Config, bool, error) {
	envLoaded := godotenv.Load() == nil

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, envLoaded, fmt.Errorf("JWT_SECRET is required")
	}

	maxFree, err := getEnvInt("QUOTA_MAX_FREE_MESSAGES", 20)
	if err != nil {
		return nil, envLoaded, err
	}
	if maxFree <= 0 {
		return nil, envLoaded, fmt.Errorf("QUOTA_MAX_FREE_MESSAGES must be positive, got %d", maxFree)
	}

	resetInterval, err := getEnvDuration("QUOTA_RESET_INTERVAL", time.Minute)
	if err != nil {
		return nil, envLoaded, err
	}
	reconcileInterval, err := getEnvDuration("LIKES_RECONCILE_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, envLoaded, err
	}
	cacheTTL, err := getEnvDuration("POST_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, envLoaded, err
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DBUrl:                  getEnv("DB_URL", ""),
		JWTSecret:              jwtSecret,
		AppEnv:                 normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		PostCacheTTL:           cacheTTL,
		NATSUrl:                getEnv("NATS_URL", ""),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		QuotaMaxFreeMessages:   maxFree,
		QuotaResetPeriod:       getEnv("QUOTA_RESET_PERIOD", "monthly"),
		QuotaResetInterval:     resetInterval,
		LikesReconcileInterval: reconcileInterval,
		DefaultAdminEmail:      getEnv("DEFAULT_ADMIN_EMAIL", ""),
		DefaultAdminPassword:   getEnv("DEFAULT_ADMIN_PASSWORD", ""),
	}, envLoaded, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return parsed, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// SeedAdmin reports whether a bootstrap admin account is configured.
func (c *Config) SeedAdmin() bool {
	return c != nil && c.DefaultAdminEmail != "" && c.DefaultAdminPassword != ""
}
