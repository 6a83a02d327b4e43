package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"warehouse-service/pkg/database"

	"go.uber.org/zap"
)

type Config struct {
	Port   string
	DB     DB
	Redis  Redis
	Kafka  Kafka
	Ledger Ledger
	Import Import
}

type DB struct {
	database.Config
}

type Redis struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

type Kafka struct {
	Brokers        []string
	MovementsTopic string
}

type Ledger struct {
	LockTimeout time.Duration
	MaxRetries  int
}

type Import struct {
	DefaultWarehouse string
	DefaultLocation  string
}

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port: getEnv("APP_PORT", log),
		DB:   DB{Config: LoadDB(log)},
		Redis: Redis{
			Enabled:    os.Getenv("REDIS_ENABLED") == "true",
			Addr:       getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         atoiDefault(os.Getenv("REDIS_DB"), 0),
			TTLSeconds: atoiDefault(os.Getenv("CACHE_TTL_SECONDS"), 60),
		},
		Kafka: Kafka{
			Brokers:        splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			MovementsTopic: getEnvDefault("KAFKA_TOPIC_MOVEMENTS", "inventory.movements"),
		},
		Ledger: LoadLedger(),
		Import: LoadImport(),
	}
	return cfg
}

// LoadDB читает только параметры базы (для migrate и import, где порт не нужен).
func LoadDB(log *zap.Logger) database.Config {
	return database.Config{
		Host:     getEnv("DB_HOST", log),
		Port:     getEnv("DB_PORT", log),
		User:     getEnv("DB_USER", log),
		Password: getEnv("DB_PASSWORD", log),
		Name:     getEnv("DB_NAME", log),
		SSLMode:  getEnv("DB_SSLMODE", log),
	}
}

func LoadLedger() Ledger {
	return Ledger{
		LockTimeout: durationDefault(os.Getenv("LEDGER_LOCK_TIMEOUT"), 5*time.Second),
		MaxRetries:  atoiDefault(os.Getenv("LEDGER_MAX_RETRIES"), 3),
	}
}

func LoadImport() Import {
	return Import{
		DefaultWarehouse: getEnvDefault("IMPORT_DEFAULT_WAREHOUSE", "DEFAULT"),
		DefaultLocation:  getEnvDefault("IMPORT_DEFAULT_LOCATION", "STAGING"),
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func durationDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
