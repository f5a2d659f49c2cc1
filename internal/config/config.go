// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration.
type Config struct {
	Service  Service
	Server   Server
	Database Database
	NATS     NATS
}

type Service struct {
	Name        string `env:"SERVICE_NAME" env-default:"be-acq-requests"`
	Version     string `env:"SERVICE_VERSION" env-default:"dev"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
}

type Server struct {
	Port            int           `env:"HTTP_PORT" env-default:"8086"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Database struct {
	Host        string        `env:"DB_HOST" env-default:"localhost"`
	Port        int           `env:"DB_PORT" env-default:"5432"`
	User        string        `env:"DB_USER" env-default:"acq"`
	Password    string        `env:"DB_PASSWORD" env-default:""`
	Database    string        `env:"DB_NAME" env-default:"acq_requests"`
	SSLMode     string        `env:"DB_SSLMODE" env-default:"disable"`
	MaxConns    int32         `env:"DB_MAX_CONNS" env-default:"10"`
	MinConns    int32         `env:"DB_MIN_CONNS" env-default:"2"`
	MaxConnTime time.Duration `env:"DB_MAX_CONN_LIFETIME" env-default:"30m"`
	MaxIdleTime time.Duration `env:"DB_MAX_IDLE_TIME" env-default:"5m"`
}

type NATS struct {
	URL     string `env:"NATS_URL" env-default:""`
	Enabled bool   `env:"NATS_ENABLED" env-default:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
