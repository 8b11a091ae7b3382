package config

import (
	"os"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMySQL = "mysql"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string

	// OpenTelemetry settings
	OTLPEndpoint string
	ServiceName  string
	Environment  string

	// Storage settings
	StorageBackend string
	StorageKey     string
	StorageDir     string
	RedisAddr      string
	RedisNamespace string
	MySQLDSN       string
}

// Load returns configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "horizon-tasks"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		StorageBackend: getEnv("STORAGE_BACKEND", BackendFile),
		StorageKey:     getEnv("STORAGE_KEY", "horizon_tasks_v3"),
		StorageDir:     getEnv("STORAGE_DIR", "data"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisNamespace: getEnv("REDIS_NAMESPACE", "horizon"),
		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(127.0.0.1:3306)/horizon?parseTime=true"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
