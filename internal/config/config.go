package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the approval server.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	Service ServiceConfig
	Server  ServerConfig
	Feishu  FeishuConfig
	Redis   RedisConfig
	CORS    CORSConfig
	// SystemKeys maps an x-system-name to its expected x-system-key.
	SystemKeys map[string]string
}

// ServiceConfig identifies the service in logs.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FeishuConfig holds credentials and tuning for the Feishu open API.
type FeishuConfig struct {
	AppID      string
	AppSecret  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Timezone is the IANA zone used when formatting upstream
	// millisecond timestamps for display.
	Timezone string
}

// RedisConfig holds the optional shared token cache settings.
// An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CORSConfig holds the browser origin allow-list. Origins ending in
// .github.io are always accepted in addition to this list.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "cl-dev-tool-server"),
			Version:     getEnv("SERVICE_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 3000),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Feishu: FeishuConfig{
			AppID:      os.Getenv("FEISHU_APP_ID"),
			AppSecret:  os.Getenv("FEISHU_APP_SECRET"),
			BaseURL:    getEnv("FEISHU_BASE_URL", "https://open.feishu.cn"),
			Timeout:    getEnvDuration("FEISHU_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("FEISHU_MAX_RETRIES", 3),
			Timezone:   getEnv("TIMEZONE", "Asia/Shanghai"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{
				"https://ai520510xyf-del.github.io",
				"http://localhost:8000",
				"http://localhost:5173",
			}),
		},
		SystemKeys: parseSystemKeys(getEnv("SYSTEM_KEYS", "demo:demo_secret_key_000")),
	}

	if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
		return nil, fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET are required")
	}
	if len(cfg.SystemKeys) == 0 {
		return nil, fmt.Errorf("SYSTEM_KEYS must contain at least one name:key pair")
	}

	return cfg, nil
}

// parseSystemKeys parses a comma-separated list of name:key pairs.
// Malformed entries are skipped.
func parseSystemKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || key == "" {
			continue
		}
		keys[name] = key
	}
	return keys
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a Go duration string
// (e.g. "15s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable or returns a
// default value.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
