// Package config loads service configuration: defaults, then an optional YAML
// file, then TCA_* environment variables (a .env file in the working
// directory is loaded first and never overrides the real environment).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"credit-tca/internal/calibration"
	"credit-tca/internal/logger"
	"credit-tca/internal/tca"
)

// EnvPrefix prefixes every environment variable, e.g. TCA_SERVER_ADDR.
const EnvPrefix = "TCA"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Log         logger.Config      `yaml:"log" envconfig:"LOG"`
	Postgres    PostgresConfig     `yaml:"postgres" envconfig:"POSTGRES"`
	ClickHouse  ClickHouseConfig   `yaml:"clickhouse" envconfig:"CLICKHOUSE"`
	Engine      tca.Params         `yaml:"engine" envconfig:"ENGINE"`
	Calibration calibration.Params `yaml:"calibration" envconfig:"CALIBRATION"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string        `yaml:"addr" validate:"required"`
	EngineID         string        `yaml:"engine_id" split_words:"true"`
	MetricsNamespace string        `yaml:"metrics_namespace" split_words:"true"`
	ReadTimeout      time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout     time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" split_words:"true" validate:"gt=0"`
	// TrainingFile, when set, is read at startup to train the engine.
	TrainingFile string `yaml:"training_file" split_words:"true"`
}

// PostgresConfig configures the post-trade and calibration-log stores.
// An empty DSN selects in-memory stores.
type PostgresConfig struct {
	DSN     string `yaml:"dsn" validate:"omitempty,url"`
	Migrate bool   `yaml:"migrate"`
}

// ClickHouseConfig configures the market snapshot store.
// An empty DSN selects an in-memory store.
type ClickHouseConfig struct {
	DSN     string `yaml:"dsn" validate:"omitempty,url"`
	Migrate bool   `yaml:"migrate"`
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8080",
			MetricsNamespace: "credit_tca",
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			MaxBodyBytes:     8 << 20,
		},
		Log:         logger.Config{Level: "info"},
		Postgres:    PostgresConfig{Migrate: true},
		ClickHouse:  ClickHouseConfig{Migrate: true},
		Engine:      tca.DefaultParams(),
		Calibration: calibration.DefaultParams(),
	}
}

// Load builds the configuration. path may be empty, in which case
// TCA_CONFIG_FILE is consulted; a missing file is an error only when a path
// was given explicitly.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeYAML overlays r onto cfg, rejecting unknown keys.
func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the engine and calibration parameters.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: engine: %w", ErrInvalidConfig, err)
	}
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("%w: calibration: %w", ErrInvalidConfig, err)
	}
	return nil
}
