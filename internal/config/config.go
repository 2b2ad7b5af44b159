package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	Env          string
	DBHost       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBConnLimit  int
	QueryTimeout time.Duration
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	BcryptCost   int
	// AllowedOrigins is the CORS allow-list. The localhost entries cover
	// the React dev server on its incremental ports.
	AllowedOrigins []string
}

// Production reports whether the service runs with production error
// rendering (no stack traces in envelopes).
func (c *Config) Production() bool {
	return c.Env == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		Port:         os.Getenv("PORT"),
		Env:          os.Getenv("APP_ENV"),
		DBHost:       os.Getenv("DB_HOST"),
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_DATABASE"),
		DBConnLimit:  intEnv("DB_CONN_LIMIT", 10),
		QueryTimeout: time.Duration(intEnv("DB_QUERY_TIMEOUT_SECONDS", 5)) * time.Second,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:    os.Getenv("JWT_SECRET"),
		BcryptCost:   intEnv("BCRYPT_COST", 10),
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
		},
	}

	if cfg.Port == "" {
		cfg.Port = "7000"
	}
	if cfg.DBHost == "" {
		cfg.DBHost = "localhost:3306"
	}
	if cfg.DBUser == "" {
		cfg.DBUser = "root"
	}
	if cfg.DBName == "" {
		cfg.DBName = "tradechamp"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}

	if dev := os.Getenv("DEV_ALLOWED_ORIGIN"); dev != "" {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, dev)
	}
	if prod := os.Getenv("PROD_ALLOWED_ORIGIN"); prod != "" {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, prod)
	}

	slog.Info("config loaded",
		"port", cfg.Port,
		"db_host", cfg.DBHost,
		"db_name", cfg.DBName,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers)
	return cfg
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer env value, using default", "key", key, "value", raw)
		return fallback
	}
	return n
}
