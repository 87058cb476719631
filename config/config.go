package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Local    LocalConfig
	App      AppConfig
	Limits   LimitsConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ShutdownTO     time.Duration
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Migrate  bool
}

// ConnString returns DSN when set, otherwise a URL built from the parts.
// An empty Host means no durable store is configured.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL          string
	StreamMaxLen int64
	Block        time.Duration
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

type LocalConfig struct {
	Dir         string
	IdleTimeout time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

type LimitsConfig struct {
	SendRatePerSec float64
	SendBurst      int
	ProfileTTL     time.Duration
	StreamResync   time.Duration
}

type WorkerConfig struct {
	MaintenanceCron string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTO:     getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "studio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnvAsBool("DB_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			StreamMaxLen: int64(getEnvAsInt("REDIS_STREAM_MAXLEN", 10000)),
			Block:        getEnvAsDuration("REDIS_BLOCK", 5*time.Second),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
		Local: LocalConfig{
			Dir:         getEnv("LOCAL_STORE_DIR", "data/devices"),
			IdleTimeout: getEnvAsDuration("LOCAL_IDLE_TIMEOUT", 30*time.Minute),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Limits: LimitsConfig{
			SendRatePerSec: getEnvAsFloat("SEND_RATE_PER_SEC", 2),
			SendBurst:      getEnvAsInt("SEND_BURST", 10),
			ProfileTTL:     getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
			StreamResync:   getEnvAsDuration("STREAM_RESYNC_INTERVAL", time.Minute),
		},
		Worker: WorkerConfig{
			MaintenanceCron: getEnv("MAINTENANCE_CRON", "@every 10m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Local.Dir == "" {
		return fmt.Errorf("LOCAL_STORE_DIR is required")
	}
	if c.Redis.URL != "" && c.Database.ConnString() == "" {
		return fmt.Errorf("REDIS_URL is set but no database is configured")
	}
	if c.Redis.StreamMaxLen < 0 {
		return fmt.Errorf("REDIS_STREAM_MAXLEN must not be negative")
	}
	if c.Limits.SendBurst < 0 {
		return fmt.Errorf("SEND_BURST must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
