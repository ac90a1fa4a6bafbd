package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvDevelopment 开发模式下错误响应包含详细信息
const EnvDevelopment = "development"

type Config struct {
	// Server
	ServerPort      string
	Debug           bool
	AppEnv          string
	CORSAllowOrigin string

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Auth
	AdminAPIKey string

	// Retention
	RetentionDays     int
	RetentionInterval time.Duration // 0 表示不启动定时清理

	// 设备上报限流 (每秒请求数 / 突发量)
	IngestRate  float64
	IngestBurst int

	// Geocoding
	GeocoderEnabled bool
	AmapAPIKey      string

	// Logging
	LogFile string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:        getEnv("PORT", "5000"),
		Debug:             getEnvBool("DEBUG", false),
		AppEnv:            getEnv("APP_ENV", "production"),
		CORSAllowOrigin:   getEnv("CORS_ALLOW_ORIGIN", "*"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBMinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
		AdminAPIKey:       getEnv("ADMIN_API_KEY", ""),
		RetentionDays:     getEnvInt("RETENTION_DAYS", 90),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		IngestRate:        getEnvFloat("INGEST_RATE", 10),
		IngestBurst:       getEnvInt("INGEST_BURST", 20),
		GeocoderEnabled:   getEnvBool("GEOCODER_ENABLED", false),
		AmapAPIKey:        getEnv("AMAP_API_KEY", ""),
		LogFile:           getEnv("LOG_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDatabaseURL(
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_NAME", "speedgazer"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY is required")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.RetentionInterval < 0 {
		return fmt.Errorf("RETENTION_INTERVAL must not be negative, got %s", c.RetentionInterval)
	}
	if c.IngestRate <= 0 || c.IngestBurst <= 0 {
		return errors.New("INGEST_RATE and INGEST_BURST must be positive")
	}
	return nil
}

// IsDevelopment 是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func buildDatabaseURL(host, port, name, user, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
