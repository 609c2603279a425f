package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault загружает конфигурацию, если путь задан, иначе возвращает значения по умолчанию
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := expandEnvVars(cfg); err != nil {
			return nil, fmt.Errorf("failed to expand environment variables: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) error {
	for _, field := range []*string{
		&c.Server.URL,
		&c.Server.Identity,
		&c.Identity.PEM,
		&c.Tasks.Path,
		&c.Storage.Path,
		&c.Scheduler.Timezone,
		&c.Logging.Level,
		&c.Logging.Output,
		&c.Metrics.Listen,
	} {
		if strings.HasPrefix(*field, "${") {
			if !strings.Contains(*field, "}") {
				return fmt.Errorf("unterminated variable reference %q", *field)
			}
			*field = expandEnv(*field)
		}
	}

	// Пути
	c.Identity.PEM = expandHome(c.Identity.PEM)
	c.Tasks.Path = expandHome(c.Tasks.Path)
	c.Storage.Path = expandHome(c.Storage.Path)

	return nil
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	// Без значения по умолчанию
	return os.Getenv(s[2:end])
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
