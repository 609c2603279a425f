// Package config provides configuration loading and validation for ledgercron.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [server]: Ledger server URL, identity and client limits
//   - [identity]: PEM key of the agent (anonymous when empty)
//   - [tasks]: Path to the task list
//   - [storage]: Persistent store path and write policy
//   - [scheduler]: Time zone, overlap guard and concurrency
//   - [shutdown]: Grace period for in-flight firings
//   - [logging]: Logging level, format, and output
//   - [metrics]: Prometheus exposition
//
// Environment variables:
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: url = "${LEDGER_URL:http://localhost:8000}"
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Identity  IdentityConfig  `toml:"identity"`
	Tasks     TasksConfig     `toml:"tasks"`
	Storage   StorageConfig   `toml:"storage"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Shutdown  ShutdownConfig  `toml:"shutdown"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ServerConfig представляет конфигурацию ledger сервера
type ServerConfig struct {
	URL               string  `toml:"url"`
	Identity          string  `toml:"identity"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Timeout возвращает таймаут одного запроса
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IdentityConfig представляет ключ агента
type IdentityConfig struct {
	PEM string `toml:"pem"`
}

// TasksConfig представляет конфигурацию списка задач
type TasksConfig struct {
	Path string `toml:"path"`
}

// StorageConfig представляет конфигурацию persistent store
type StorageConfig struct {
	Path               string `toml:"path"`
	Clean              bool   `toml:"clean"`
	KeepHistory        bool   `toml:"keep_history"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// LockTimeout возвращает таймаут захвата блокировки store
func (c StorageConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// SchedulerConfig представляет конфигурацию cron
type SchedulerConfig struct {
	Timezone        string `toml:"timezone"`
	SkipOverlapping bool   `toml:"skip_overlapping"`
	MaxConcurrent   int    `toml:"max_concurrent"`
}

// Location возвращает часовой пояс расписаний
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ShutdownConfig представляет конфигурацию завершения
type ShutdownConfig struct {
	GracePeriodSeconds int `toml:"grace_period_seconds"`
}

// GracePeriod возвращает бюджет на завершение in-flight задач
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig представляет конфигурацию Prometheus
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}
