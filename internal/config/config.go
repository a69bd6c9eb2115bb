// Package config reads environment configuration for the CloudPay binaries,
// applying defaults suitable for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/ledger"
)

// Server configures cmd/cloudpayd.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MongoURI         string
	MongoDatabase    string
	RedisAddr        string
	KafkaBrokers     []string
	SQLitePath       string
	SQLiteMigrations string

	Ledger ledger.Credentials
}

// Terminal configures the merchant and customer terminal binaries.
type Terminal struct {
	APIBaseURL string
	Email      string
	Password   string

	RedisAddr    string
	Group        string
	PollInterval time.Duration
	ResetDelay   time.Duration
	WaitTimeout  time.Duration
}

// LoadServer builds the backend configuration from the environment.
func LoadServer() (Server, error) {
	cfg := Server{
		Addr:            valueOrDefault("SERVER_ADDR", ":8000"),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:         valueOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    valueOrDefault("MONGO_DATABASE", "cloudpay"),
		RedisAddr:        valueOrDefault("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:     splitCSV(valueOrDefault("KAFKA_BROKERS", "localhost:9092")),
		SQLitePath:       valueOrDefault("SQLITE_PATH", "cloudpay_inventory.db"),
		SQLiteMigrations: valueOrDefault("INVENTORY_MIGRATIONS_PATH", "internal/inventory/migrations"),

		Ledger: ledger.Credentials{
			Host:              valueOrDefault("POSTGRES_HOST", "localhost"),
			Port:              intOrDefault("POSTGRES_PORT", 5432),
			User:              valueOrDefault("POSTGRES_USER", "postgres"),
			Password:          valueOrDefault("POSTGRES_PASSWORD", "postgres"),
			DBName:            valueOrDefault("POSTGRES_DB", "cloudpay"),
			MigrationsDirPath: valueOrDefault("LEDGER_MIGRATIONS_PATH", "migrations/ledger"),
		},
	}

	for _, v := range []struct {
		key string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	} {
		if err := overrideDuration(v.key, v.dst); err != nil {
			return Server{}, err
		}
	}

	return cfg, nil
}

// LoadTerminal builds a terminal configuration from the environment. Both
// terminal binaries must share TERMINAL_GROUP to talk to each other.
func LoadTerminal() (Terminal, error) {
	cfg := Terminal{
		APIBaseURL: valueOrDefault("CLOUDPAY_API_URL", "http://localhost:8000"),
		Email:      os.Getenv("CLOUDPAY_EMAIL"),
		Password:   os.Getenv("CLOUDPAY_PASSWORD"),

		RedisAddr:    valueOrDefault("REDIS_ADDR", "localhost:6379"),
		Group:        valueOrDefault("TERMINAL_GROUP", "default"),
		PollInterval: 400 * time.Millisecond,
		ResetDelay:   3 * time.Second,
		WaitTimeout:  90 * time.Second,
	}

	for _, v := range []struct {
		key string
		dst *time.Duration
	}{
		{"TERMINAL_POLL_INTERVAL", &cfg.PollInterval},
		{"TERMINAL_RESET_DELAY", &cfg.ResetDelay},
		{"TERMINAL_WAIT_TIMEOUT", &cfg.WaitTimeout},
	} {
		if err := overrideDuration(v.key, v.dst); err != nil {
			return Terminal{}, err
		}
	}

	if cfg.Email == "" || cfg.Password == "" {
		return Terminal{}, fmt.Errorf("CLOUDPAY_EMAIL and CLOUDPAY_PASSWORD are required")
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overrideDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
