package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App      `json:"app"      toml:"app"`
		HTTP     `json:"http"     toml:"http"`
		DB       `json:"db"       toml:"db"`
		Email    `json:"email"    toml:"email"`
		Kafka    `json:"kafka"    toml:"kafka"`
		Identity `json:"identity" toml:"identity"`
		Workers  `json:"workers"  toml:"workers"`
		Log      `json:"logger"   toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"1"`
	}

	Email struct {
		APIKey      string `json:"api_key"      toml:"api_key"      env:"EMAIL_API_KEY"`
		APIURL      string `json:"api_url"      toml:"api_url"      env:"EMAIL_API_URL"`
		FromAddress string `json:"from_address" toml:"from_address" env:"EMAIL_FROM" env-default:"no-reply@omnibank.example"`
	}

	Kafka struct {
		Brokers []string `json:"brokers" toml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Topic   string   `json:"topic"   toml:"topic"   env:"KAFKA_TOPIC" env-default:"backoffice.transitions"`
	}

	Identity struct {
		APIURL     string `json:"api_url"     toml:"api_url"     env:"IDENTITY_API_URL"`
		APIKey     string `json:"api_key"     toml:"api_key"     env:"IDENTITY_API_KEY"`
		AdminToken string `json:"admin_token" toml:"admin_token" env:"ADMIN_TOKEN"`
		AdminEmail string `json:"admin_email" toml:"admin_email" env:"ADMIN_EMAIL" env-default:"admin@omnibank.example"`
	}

	Workers struct {
		OutboxInterval    int `json:"outbox_interval"     toml:"outbox_interval"     env:"OUTBOX_INTERVAL_SECONDS" env-default:"5"`
		OutboxBatchSize   int `json:"outbox_batch_size"   toml:"outbox_batch_size"   env:"OUTBOX_BATCH_SIZE" env-default:"100"`
		OutboxMaxAttempts int `json:"outbox_max_attempts" toml:"outbox_max_attempts" env:"OUTBOX_MAX_ATTEMPTS" env-default:"5"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
