// Package config loads server and client settings: built-in defaults,
// then a YAML file, then ESTISYNC_* environment variables. Command-line
// flags are applied on top by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/estisync/internal/logging"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/tracing"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "ESTISYNC_"

// Config полная конфигурация
type Config struct {
	Tracing tracing.Config `yaml:"tracing"`
	Logging logging.Config `yaml:"logging"`
	Client  ClientConfig   `yaml:"client"`
	Server  ServerConfig   `yaml:"server"`
}

// DatabaseConfig хранилище сервера
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// ServerConfig настройки сервера документов
type ServerConfig struct {
	Database        DatabaseConfig `yaml:"database"`
	Addr            string         `yaml:"addr"`
	AllowedOrigins  []string       `yaml:"allowed_origins"`
	SaveRateLimit   int            `yaml:"save_rate_limit"`
	SaveRateWindow  time.Duration  `yaml:"save_rate_window"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Validate        bool           `yaml:"validate"`
}

// ClientConfig настройки клиента
type ClientConfig struct {
	ServerURL          string        `yaml:"server_url"`
	ActorID            string        `yaml:"actor_id"`
	DisplayName        string        `yaml:"display_name"`
	Color              string        `yaml:"color"`
	DefaultStrategy    string        `yaml:"default_strategy"`
	CachePath          string        `yaml:"cache_path"`
	Debounce           time.Duration `yaml:"debounce"`
	SaveTimeout        time.Duration `yaml:"save_timeout"`
	PresenceTTL        time.Duration `yaml:"presence_ttl"`
	MaxSaveFailures    int           `yaml:"max_save_failures"`
	MaxConflictRetries int           `yaml:"max_conflict_retries"`
}

// Default конфигурация без файла и окружения
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Database:        DatabaseConfig{Driver: "sqlite", DSN: "estisync.db"},
			SaveRateLimit:   120,
			SaveRateWindow:  time.Minute,
			ShutdownTimeout: 10 * time.Second,
			Validate:        true,
		},
		Client: ClientConfig{
			ServerURL:          "http://localhost:8080",
			CachePath:          "estisync-client.db",
			Debounce:           500 * time.Millisecond,
			SaveTimeout:        10 * time.Second,
			PresenceTTL:        30 * time.Second,
			MaxSaveFailures:    3,
			MaxConflictRetries: 3,
		},
		Logging: logging.DefaultConfig(),
		Tracing: tracing.DefaultConfig(),
	}
}

// Load читает конфигурацию из path (пустой path или отсутствующий файл -
// значения по умолчанию) и применяет переменные окружения
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// файла нет - работаем на значениях по умолчанию
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_ADDR":      &c.Server.Addr,
		"DB_DRIVER":        &c.Server.Database.Driver,
		"DB_DSN":           &c.Server.Database.DSN,
		"SERVER_URL":       &c.Client.ServerURL,
		"ACTOR":            &c.Client.ActorID,
		"DISPLAY_NAME":     &c.Client.DisplayName,
		"STRATEGY":         &c.Client.DefaultStrategy,
		"CACHE":            &c.Client.CachePath,
		"LOG_LEVEL":        &c.Logging.Level,
		"LOG_FORMAT":       &c.Logging.Format,
		"OTLP_ENDPOINT":    &c.Tracing.OTLPEndpoint,
		"TRACING_SERVICE":  &c.Tracing.ServiceName,
		"TRACING_EXPORTER": (*string)(&c.Tracing.Exporter),
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"DEBOUNCE":     &c.Client.Debounce,
		"SAVE_TIMEOUT": &c.Client.SaveTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "SERVER_VALIDATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSERVER_VALIDATE: %w", EnvPrefix, err)
		}
		c.Server.Validate = b
	}
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate проверяет значения, которые нельзя исправить по умолчанию
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("server.database.driver: unsupported driver %q", c.Server.Database.Driver))
	}
	if c.Server.SaveRateLimit < 0 {
		errs = append(errs, errors.New("server.save_rate_limit must not be negative"))
	}
	if c.Client.DefaultStrategy != "" {
		if _, err := models.ParseStrategy(c.Client.DefaultStrategy); err != nil {
			errs = append(errs, fmt.Errorf("client.default_strategy: %w", err))
		}
	}
	if c.Client.Debounce < 0 || c.Client.SaveTimeout < 0 || c.Client.PresenceTTL < 0 {
		errs = append(errs, errors.New("client durations must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Tracing.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: unsupported exporter %q", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
