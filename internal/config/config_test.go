package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECALL_TOPK", "3")
	t.Setenv("RECALL_LOG_LEVEL", "debug")
	t.Setenv("RECALL_PREDICTIONS_SOURCE", "redis")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Eval.TopK != 3 {
		t.Errorf("Eval.TopK = %d, want 3", cfg.Eval.TopK)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if cfg.Predictions.Source != "redis" {
		t.Errorf("Predictions.Source = %s, want redis", cfg.Predictions.Source)
	}

	// Untouched sections keep their defaults
	if cfg.Eval.Step != 10 {
		t.Errorf("Eval.Step = %d, want 10", cfg.Eval.Step)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data:
  dev_behaviors: "/mind/dev/behaviors.tsv"
eval:
  topk: 2
  workers: 1
predictions:
  path: "preds.jsonl"
bus:
  type: kafka
  kafka_brokers: "localhost:9092"
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Data.DevBehaviors != "/mind/dev/behaviors.tsv" {
		t.Errorf("Data.DevBehaviors = %s, want /mind/dev/behaviors.tsv", cfg.Data.DevBehaviors)
	}

	if cfg.Data.TrainBehaviors != "data/train/behaviors.tsv" {
		t.Errorf("Data.TrainBehaviors = %s, want default", cfg.Data.TrainBehaviors)
	}

	if cfg.Eval.TopK != 2 || cfg.Eval.Workers != 1 {
		t.Errorf("Eval = %+v, want topk 2 workers 1", cfg.Eval)
	}

	if cfg.Predictions.Path != "preds.jsonl" {
		t.Errorf("Predictions.Path = %s, want preds.jsonl", cfg.Predictions.Path)
	}

	if cfg.Bus.Type != "kafka" {
		t.Errorf("Bus.Type = %s, want kafka", cfg.Bus.Type)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("eval:\n  topk: 2\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("RECALL_TOPK", "7")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Eval.TopK != 7 {
		t.Errorf("Eval.TopK = %d, want 7", cfg.Eval.TopK)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "topk zero",
			modify: func(c *Config) {
				c.Eval.TopK = 0
			},
			wantErr: true,
		},
		{
			name: "step zero",
			modify: func(c *Config) {
				c.Eval.Step = 0
			},
			wantErr: true,
		},
		{
			name: "no workers",
			modify: func(c *Config) {
				c.Eval.Workers = 0
			},
			wantErr: true,
		},
		{
			name: "invalid predictions source",
			modify: func(c *Config) {
				c.Predictions.Source = "s3"
			},
			wantErr: true,
		},
		{
			name: "redis source without url",
			modify: func(c *Config) {
				c.Predictions.Source = "redis"
				c.Predictions.RedisURL = ""
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid bus type",
			modify: func(c *Config) {
				c.Bus.Type = "nats"
			},
			wantErr: true,
		},
		{
			name: "empty topic",
			modify: func(c *Config) {
				c.Bus.Topic = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxCutoff(t *testing.T) {
	cfg := Default()
	if got := cfg.MaxCutoff(); got != 50 {
		t.Errorf("MaxCutoff() = %d, want 50", got)
	}
}

func TestBusEventLogFromEnv(t *testing.T) {
	t.Setenv("RECALL_BUS_EVENT_LOG", "/tmp/recall/events.jsonl")
	t.Setenv("RECALL_KAFKA_GROUP", "nightly")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Bus.EventLog != "/tmp/recall/events.jsonl" {
		t.Errorf("Bus.EventLog = %s", cfg.Bus.EventLog)
	}
	if cfg.Bus.KafkaGroup != "nightly" {
		t.Errorf("Bus.KafkaGroup = %s", cfg.Bus.KafkaGroup)
	}
}

func TestValidationErrorCode(t *testing.T) {
	cfg := Default()
	cfg.Eval.Workers = 0

	err := cfg.Validate()
	if !errors.IsValidation(err) {
		t.Errorf("Validate() error = %v, want a validation error", err)
	}
}
