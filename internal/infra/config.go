package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	SessionCookie    string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	CORSOrigins      []string

	RateLimitPerMin  int
	RateLimitMaxKeys int
	GenerateBurst    int
	GenerateWindow   time.Duration
	SignupCredits    int

	StoragePath    string
	StorageBaseURL string
	MaxUploadBytes int64

	GeoIPDBPath   string
	DefaultLocale string

	ReplicateToken   string
	ReplicateBaseURL string
	RemoveBGVersion  string
	FluxModel        string

	RedisAddr          string
	QueueName          string
	WorkerPollInterval time.Duration

	BillingWebhookSecret string
	CreditsPerOrder      int

	MetricsEnabled    bool
	WorkerMetricsAddr string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SessionCookie:    getEnv("SESSION_COOKIE", "session"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),

		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitMaxKeys: getEnvInt("RATE_LIMIT_MAX_KEYS", 10000),
		GenerateBurst:    getEnvInt("GENERATE_BURST", 3),
		GenerateWindow:   time.Second * time.Duration(getEnvInt("GENERATE_WINDOW_SECONDS", 60)),
		SignupCredits:    getEnvInt("SIGNUP_CREDITS", 3),

		StoragePath:    getEnv("STORAGE_PATH", "./data/uploads"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "zh-TW"),

		ReplicateToken:   os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL: getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		RemoveBGVersion:  getEnv("REMOVE_BG_VERSION", "95fcc2a26d3899cd6c2691c900465aaeff466285a65c14638cc5f36f34befaf1"),
		FluxModel:        getEnv("FLUX_MODEL", "black-forest-labs/flux-1.1-pro"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		QueueName:          getEnv("QUEUE_NAME", "studio:jobs"),
		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),

		BillingWebhookSecret: os.Getenv("BILLING_WEBHOOK_SECRET"),
		CreditsPerOrder:      getEnvInt("CREDITS_PER_ORDER", 10),

		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9091"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.GenerateBurst <= 0 || cfg.GenerateWindow <= 0 {
		return nil, fmt.Errorf("GENERATE_BURST and GENERATE_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
