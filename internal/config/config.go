package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Trace    TraceConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// GatewayConfig points at the external answering service.
type GatewayConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type TraceConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:5000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "DocChat"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "default_secret"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("ANSWER_GATEWAY_URL", "http://localhost:8000"),
			TimeoutSeconds: getEnvAsInt("ANSWER_GATEWAY_TIMEOUT_SECONDS", 120),
		},
		Trace: TraceConfig{
			Enabled:      getEnv("OTEL_TRACES_ENABLED", "false") == "true",
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
