// Package bootstrap wires every adapter and service together into a
// runnable Server, the way components/audit's bootstrap package does for
// its own process.
package bootstrap

import (
	"github.com/lerianlabs/batchgate/pkg/env"
)

// Config is populated from environment variables (spec §6).
type Config struct {
	UpstreamBaseURL       string `env:"UPSTREAM_BASE_URL"`
	RedisURL              string `env:"REDIS_URL"`
	BatchWindowSecs       int64  `env:"BATCH_WINDOW_SECS"`
	BatchPollIntervalSecs int64  `env:"BATCH_POLL_INTERVAL_SECS"`
	ServerHost            string `env:"SERVER_HOST"`
	ServerPort            int64  `env:"SERVER_PORT"`
	TCPKeepaliveSecs      int64  `env:"TCP_KEEPALIVE_SECS"`
}

// defaultConfig mirrors original_source/src/config.rs's Config::from_env
// defaults exactly.
func defaultConfig() Config {
	return Config{
		RedisURL:              "redis://127.0.0.1:6379",
		BatchWindowSecs:       60,
		BatchPollIntervalSecs: 60,
		ServerHost:            "0.0.0.0",
		ServerPort:            8080,
		TCPKeepaliveSecs:      60,
	}
}

// LoadConfig reads Config from the environment, applying the same defaults
// as the original implementation wherever a variable is unset.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if err := env.SetFromEnvVars(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
