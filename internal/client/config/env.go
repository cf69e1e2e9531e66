package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is a DTO for environment overrides.
type envConfig struct {
	ServerBaseURL       string        `env:"SERENITY_SERVER_URL"`
	CacheDSN            string        `env:"SERENITY_CACHE_DSN"`
	OnlineCheckInterval time.Duration `env:"SERENITY_ONLINE_CHECK_INTERVAL"`
	RequestTimeout      time.Duration `env:"SERENITY_REQUEST_TIMEOUT"`
}

// parseEnv overlays cfg with values from the environment. Unset variables
// leave the current values untouched.
func parseEnv(cfg *Config) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		panic(err)
	}

	if ec.ServerBaseURL != "" {
		cfg.ServerBaseURL = ec.ServerBaseURL
	}
	if ec.CacheDSN != "" {
		cfg.CacheDSN = ec.CacheDSN
	}
	if ec.OnlineCheckInterval > 0 {
		cfg.OnlineCheckInterval = ec.OnlineCheckInterval
	}
	if ec.RequestTimeout > 0 {
		cfg.RequestTimeout = ec.RequestTimeout
	}
}
