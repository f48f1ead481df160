package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the recovery engine.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	JWTSecret             string
	PanelCacheTTL         time.Duration
	SweepInterval         time.Duration
	RecoveryExtensionDays int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TEVO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "TEVO Recovery API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("panel.cache_ttl", "1m")
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("recovery.extension_days", 14)

	ttl, err := time.ParseDuration(v.GetString("panel.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid panel cache ttl: %w", err)
	}

	sweepInterval, err := time.ParseDuration(v.GetString("sweep.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		PanelCacheTTL:         ttl,
		SweepInterval:         sweepInterval,
		RecoveryExtensionDays: v.GetInt("recovery.extension_days"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RecoveryExtensionDays <= 0 {
		cfg.RecoveryExtensionDays = 14
	}

	if cfg.SweepInterval < time.Minute {
		cfg.SweepInterval = time.Minute
	}

	return cfg, nil
}
