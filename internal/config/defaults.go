package config

import "github.com/aatumaykin/ledgercron/internal/constants"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Server.URL == "" {
		c.Server.URL = constants.DefaultServerURL
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = constants.DefaultServerTimeoutSeconds
	}

	if c.Storage.Path == "" {
		c.Storage.Path = constants.DefaultStoragePath
	}
	if c.Storage.LockTimeoutSeconds == 0 {
		c.Storage.LockTimeoutSeconds = constants.DefaultLockTimeoutSeconds
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "Local"
	}

	if c.Shutdown.GracePeriodSeconds == 0 {
		c.Shutdown.GracePeriodSeconds = constants.MinGracePeriodSeconds
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = constants.DefaultMetricsListen
	}
}
