package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/teamforge/authedge/core"
)

// Config holds the service configuration, loaded from the environment.
type Config struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	IssuerURL       string        `env:"ISSUER_URL"`
	BackendURL      string        `env:"BACKEND_URL"`
	HubURL          string        `env:"REALTIME_HUB_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	EnvelopeSecret  string        `env:"ENVELOPE_SECRET"`
	SecureCookies   bool          `env:"SECURE_COOKIES" envDefault:"true"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
}

// Load parses and validates configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.IssuerURL == "" {
		return Config{}, core.ErrServerConfig
	}
	if cfg.EnvelopeSecret == "" {
		return Config{}, fmt.Errorf("%w: ENVELOPE_SECRET must be set", core.ErrServerConfig)
	}

	// The backend and the issuer are usually the same deployment.
	if cfg.BackendURL == "" {
		cfg.BackendURL = cfg.IssuerURL
	}

	return cfg, nil
}
