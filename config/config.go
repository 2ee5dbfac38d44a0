package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	PushGatewayURL string `env:"PUSH_GATEWAY_URL"`
	TemplatesPath  string `env:"TEMPLATES_PATH"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	WorkerPollEvery   time.Duration `env:"WORKER_POLL_EVERY" envDefault:"250ms"`
	LeaseDuration     time.Duration `env:"WORKER_LEASE_DURATION" envDefault:"30s"`
	JobRetention      time.Duration `env:"JOB_RETENTION" envDefault:"168h"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}
