// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the service reads at startup.
type Config struct {
	AppPort string
	AppEnv  string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret   string
	RabbitMQURL string
	RedisURL    string

	// OrderFallbackURL enables the HTTP submission tier when set.
	OrderFallbackURL     string
	OrderFallbackTimeout time.Duration
	// OfflineOrders enables the development stub at the end of the
	// submission chain.
	OfflineOrders     bool
	OfflineOrderDelay time.Duration

	// CartIdleTTL is how long an untouched in-memory cart is kept.
	CartIdleTTL time.Duration
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Load reads configuration from v, which is expected to have AutomaticEnv
// enabled. A nil v uses the global viper instance.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:storefront.db?cache=shared")
	v.SetDefault("JWT_SECRET", "change_me")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ORDER_FALLBACK_URL", "")
	v.SetDefault("ORDER_FALLBACK_TIMEOUT", 5*time.Second)
	v.SetDefault("ORDER_OFFLINE_DELAY", 1500*time.Millisecond)
	v.SetDefault("CART_IDLE_TTL", 24*time.Hour)
	v.AutomaticEnv()

	cfg := Config{
		AppPort:              v.GetString("APP_PORT"),
		AppEnv:               v.GetString("APP_ENV"),
		DatabaseDriver:       v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		RedisURL:             v.GetString("REDIS_URL"),
		OrderFallbackURL:     v.GetString("ORDER_FALLBACK_URL"),
		OrderFallbackTimeout: v.GetDuration("ORDER_FALLBACK_TIMEOUT"),
		OfflineOrderDelay:    v.GetDuration("ORDER_OFFLINE_DELAY"),
		CartIdleTTL:          v.GetDuration("CART_IDLE_TTL"),
	}

	// The offline stub is only on by default in development.
	v.SetDefault("ORDER_OFFLINE_FALLBACK", cfg.IsDevelopment())
	cfg.OfflineOrders = v.GetBool("ORDER_OFFLINE_FALLBACK")

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if !cfg.IsDevelopment() && cfg.JWTSecret == "change_me" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set outside development")
	}
	return cfg, nil
}
