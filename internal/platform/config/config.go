package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr string `env:"GESTIONALE_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	// RedisURL is optional; without it delivery settings are read straight
	// from the database.
	RedisURL         string        `env:"REDIS_URL"`
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"5m"`

	// AMQPURL is optional; without it the email channel is disabled.
	AMQPURL              string `env:"AMQP_URL"`
	NotificationExchange string `env:"NOTIFICATION_EXCHANGE" envDefault:"gestionale.notifications"`
	EmailQueueSize       int    `env:"EMAIL_QUEUE_SIZE" envDefault:"256"`

	// JWTSigningKey verifies tokens minted by the identity provider. The
	// default is for development only.
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

// Load builds a Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
