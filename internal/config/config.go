package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	ServiceName          string
	DispatchBaseURL      string
	DispatchPrincipal    string
	DispatchSharedSecret string
	TokenTTL             time.Duration
	AccountCacheTTL      time.Duration
	RawDetailLimit       int
	TenantAliases        []string
	AdminAPISecret       string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SessionTTL           time.Duration
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	baseURL := strings.TrimSpace(os.Getenv("DISPATCH_BASE_URL"))
	if baseURL == "" {
		return Config{}, fmt.Errorf("DISPATCH_BASE_URL is required")
	}
	secret := strings.TrimSpace(os.Getenv("DISPATCH_SHARED_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("DISPATCH_SHARED_SECRET is required")
	}
	principal := strings.TrimSpace(os.Getenv("DISPATCH_PRINCIPAL"))
	if principal == "" {
		return Config{}, fmt.Errorf("DISPATCH_PRINCIPAL is required")
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		ServiceName:          getEnv("SERVICE_NAME", "koach-calltaker-agent"),
		DispatchBaseURL:      baseURL,
		DispatchPrincipal:    principal,
		DispatchSharedSecret: secret,
		TokenTTL:             time.Duration(getInt("TOKEN_TTL_MINUTES", 20)) * time.Minute,
		AccountCacheTTL:      getDuration("ACCOUNT_CACHE_TTL", 30*time.Minute),
		RawDetailLimit:       getInt("RAW_PAYLOAD_LIMIT", 2500),
		TenantAliases:        getList("TENANT_ALIASES", nil),
		AdminAPISecret:       os.Getenv("ADMIN_API_SECRET"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		SessionTTL:           getDuration("SESSION_TTL", 30*time.Minute),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Tenant-ID"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 20 * time.Minute
	}
	if cfg.RawDetailLimit <= 0 {
		cfg.RawDetailLimit = 2500
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
