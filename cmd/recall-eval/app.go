package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/behavior"
	"github.com/newsrec/recall-eval/internal/config"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

// app carries what every command needs after global flags are applied.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	format  string
	verbose bool
}

// newApp loads configuration and applies the global flags on top of it.
// --verbose raises the log level to debug unless --log-level is given.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")
	logLevel, _ := cmd.Flags().GetString("log-level")

	if format != "text" && format != "json" {
		return nil, errors.ValidationError(fmt.Sprintf("unknown output format %q (must be text or json)", format))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	switch {
	case logLevel != "":
		cfg.Log.Level = logLevel
	case verbose:
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Debug("Loaded configuration", "config", configPath, "topk", cfg.Eval.TopK, "workers", cfg.Eval.Workers)

	return &app{
		cfg:     cfg,
		log:     log,
		format:  format,
		verbose: verbose,
	}, nil
}

func (a *app) dataset() *behavior.Dataset {
	return behavior.NewDataset(a.cfg.Data, a.log)
}

// splitFlag reads and validates the --split flag.
func splitFlag(cmd *cobra.Command) (behavior.Split, error) {
	s, _ := cmd.Flags().GetString("split")
	return behavior.ParseSplit(s)
}
