// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// Config holds all application configuration.
type Config struct {
	// Dataset locations
	Data DataConfig `yaml:"data"`

	// Evaluation parameters
	Eval EvalConfig `yaml:"eval"`

	// Prediction source
	Predictions PredictionsConfig `yaml:"predictions"`

	// Report publishing
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// DataConfig holds paths to the MIND-style behavior and news files.
type DataConfig struct {
	TrainBehaviors    string `envconfig:"RECALL_TRAIN_BEHAVIORS" yaml:"train_behaviors"`
	DevBehaviors      string `envconfig:"RECALL_DEV_BEHAVIORS" yaml:"dev_behaviors"`
	SmallDevBehaviors string `envconfig:"RECALL_SMALL_DEV_BEHAVIORS" yaml:"small_dev_behaviors"`
	SmallNews         string `envconfig:"RECALL_SMALL_NEWS" yaml:"small_news"`
}

// EvalConfig holds the K sweep settings.
type EvalConfig struct {
	TopK    int `envconfig:"RECALL_TOPK" yaml:"topk"`
	Step    int `envconfig:"RECALL_STEP" yaml:"step"`
	Workers int `envconfig:"RECALL_WORKERS" yaml:"workers"`
}

// PredictionsConfig selects where ranked recommendation lists come from.
type PredictionsConfig struct {
	Source    string `envconfig:"RECALL_PREDICTIONS_SOURCE" yaml:"source"`
	Path      string `envconfig:"RECALL_PREDICTIONS_PATH" yaml:"path"`
	RedisURL  string `envconfig:"RECALL_REDIS_URL" yaml:"redis_url"`
	KeyPrefix string `envconfig:"RECALL_REDIS_KEY_PREFIX" yaml:"key_prefix"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Publish      bool   `envconfig:"RECALL_PUBLISH" yaml:"publish"`
	Type         string `envconfig:"RECALL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RECALL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	Topic        string `envconfig:"RECALL_BUS_TOPIC" yaml:"topic"`
	KafkaGroup   string `envconfig:"RECALL_KAFKA_GROUP" yaml:"kafka_group"`

	// EventLog is a JSONL file every published event is appended to.
	// Empty disables the archive.
	EventLog string `envconfig:"RECALL_BUS_EVENT_LOG" yaml:"event_log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RECALL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RECALL_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, errors.IOError(fmt.Sprintf("loading config file %s", configPath), err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Default returns a validated configuration built from defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Data = DataConfig{
		TrainBehaviors:    "data/train/behaviors.tsv",
		DevBehaviors:      "data/dev/behaviors.tsv",
		SmallDevBehaviors: "data/small_dev/behaviors.tsv",
		SmallNews:         "data/small_dev/news.tsv",
	}

	cfg.Eval = EvalConfig{
		TopK:    5,
		Step:    10,
		Workers: 4,
	}

	cfg.Predictions = PredictionsConfig{
		Source:    "file",
		RedisURL:  "redis://localhost:6379",
		KeyPrefix: "recall:rec:",
	}

	cfg.Bus = BusConfig{
		Publish: false,
		Type:    "memory",
		Topic:   "recall.evaluation.completed",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Eval validation
	if c.Eval.TopK < 1 {
		errs = append(errs, "topk must be at least 1")
	}
	if c.Eval.Step < 1 {
		errs = append(errs, "step must be at least 1")
	}
	if c.Eval.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}

	// Prediction source validation
	validSources := map[string]bool{"file": true, "redis": true}
	if !validSources[c.Predictions.Source] {
		errs = append(errs, fmt.Sprintf("invalid predictions source: %s (must be file or redis)", c.Predictions.Source))
	}
	if c.Predictions.Source == "redis" && c.Predictions.RedisURL == "" {
		errs = append(errs, "redis_url is required for the redis predictions source")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Topic == "" {
		errs = append(errs, "bus topic must not be empty")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.ValidationError(fmt.Sprintf("config validation failed:\n  - %s", strings.Join(errs, "\n  - ")))
	}

	return nil
}

// MaxCutoff returns the largest K of the sweep.
func (c *Config) MaxCutoff() int {
	return c.Eval.TopK * c.Eval.Step
}
