package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/aatumaykin/ledgercron/internal/constants"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/logger"
)

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errors []error

	// Проверка сервера
	if c.Server.URL == "" {
		errors = append(errors, fmt.Errorf("server.url is required"))
	} else if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Errorf("invalid server.url: %s (expected http(s)://host[:port])", c.Server.URL))
	}
	if c.Server.Identity != "" {
		if _, err := identity.Decode(c.Server.Identity); err != nil {
			errors = append(errors, fmt.Errorf("invalid server.identity: %w", err))
		}
	}
	if c.Server.TimeoutSeconds < 1 {
		errors = append(errors, fmt.Errorf("server.timeout_seconds must be >= 1"))
	}
	if c.Server.RequestsPerSecond < 0 {
		errors = append(errors, fmt.Errorf("server.requests_per_second must be >= 0"))
	}

	if c.Tasks.Path == "" {
		errors = append(errors, fmt.Errorf("tasks.path is required"))
	}

	// Проверка storage
	if c.Storage.Path == "" {
		errors = append(errors, fmt.Errorf("storage.path is required"))
	} else if err := validatePath(c.Storage.Path, "storage.path"); err != nil {
		errors = append(errors, err)
	}
	if c.Storage.LockTimeoutSeconds < 1 {
		errors = append(errors, fmt.Errorf("storage.lock_timeout_seconds must be >= 1"))
	}

	// Проверка scheduler
	if _, err := c.Scheduler.Location(); err != nil {
		errors = append(errors, fmt.Errorf("invalid scheduler.timezone: %s", c.Scheduler.Timezone))
	}
	if c.Scheduler.MaxConcurrent < 0 {
		errors = append(errors, fmt.Errorf("scheduler.max_concurrent must be >= 0"))
	}

	if c.Shutdown.GracePeriodSeconds < constants.MinGracePeriodSeconds {
		errors = append(errors, fmt.Errorf("shutdown.grace_period_seconds must be >= %d (got %d)",
			constants.MinGracePeriodSeconds, c.Shutdown.GracePeriodSeconds))
	}

	// Проверка logging config
	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else if !logger.ValidLevel(c.Logging.Level) {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: trace, debug, info, warn, error, off)", c.Logging.Level))
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true, "console": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text, console)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errors = append(errors, fmt.Errorf("invalid metrics.listen: %s", c.Metrics.Listen))
		}
	}

	return errors
}

func validatePath(path, fieldName string) error {
	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}
