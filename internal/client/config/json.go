package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/serenityspace/healthkeeper/internal/flagx"
	"github.com/serenityspace/healthkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// may be written as strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL       string         `json:"server_base_url"`
	CacheDSN            string         `json:"cache_dsn"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SessionWaitAttempts uint64         `json:"session_wait_attempts"`
	SessionWaitDelay    timex.Duration `json:"session_wait_delay"`
}

// parseJson overlays cfg with values from the JSON file named by the
// -c/-config flags. Absent file path means no JSON stage. Only fields
// present in the file override the current values.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.CacheDSN != "" {
		cfg.CacheDSN = jc.CacheDSN
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.SessionWaitAttempts > 0 {
		cfg.SessionWaitAttempts = jc.SessionWaitAttempts
	}
	if jc.SessionWaitDelay.Duration > 0 {
		cfg.SessionWaitDelay = time.Duration(jc.SessionWaitDelay.Duration)
	}
}
