// Package config loads runtime settings for the health client.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - ServerBaseURL: base URL of the remote auth + document store.
//   - CacheDSN: SQLite DSN of the on-device cache database.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - RequestTimeout: per-request HTTP timeout against the remote store.
//   - SessionWaitAttempts / SessionWaitDelay: bound on the startup wait for
//     a restored session (total wait = attempts x delay).
type Config struct {
	ServerBaseURL       string
	CacheDSN            string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	SessionWaitAttempts uint64
	SessionWaitDelay    time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.CacheDSN = "serenity.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 12 * time.Second
	c.SessionWaitAttempts = 10
	c.SessionWaitDelay = 200 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if a config file is given), environment variables, and
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
