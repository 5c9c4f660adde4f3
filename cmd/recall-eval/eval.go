package main

import (
	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/bus"
	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/prediction"
	"github.com/newsrec/recall-eval/internal/report"
)

func evalCmd(mode evaluation.Mode, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, mode)
		},
	}

	cmd.Flags().StringP("predictions", "p", "", "predictions JSONL file (file source)")
	cmd.Flags().String("split", "dev", "behaviors split to evaluate against (train, dev, small-dev)")
	cmd.Flags().IntP("topk", "k", evaluation.DefaultTopK, "number of cutoffs; K runs up to topk*step")
	cmd.Flags().String("source", "", "predictions source (file, redis); overrides config")
	cmd.Flags().Bool("publish", false, "publish the report on the event bus")

	return cmd
}

func runEval(cmd *cobra.Command, mode evaluation.Mode) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg

	if path, _ := cmd.Flags().GetString("predictions"); path != "" {
		cfg.Predictions.Path = path
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Predictions.Source = source
	}
	if cmd.Flags().Changed("topk") {
		cfg.Eval.TopK, _ = cmd.Flags().GetInt("topk")
	}
	if cmd.Flags().Changed("publish") {
		cfg.Bus.Publish, _ = cmd.Flags().GetBool("publish")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	split, err := splitFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := a.log.WithMode(string(mode)).WithSplit(string(split))

	src, err := prediction.NewSource(cfg.Predictions, cfg.MaxCutoff())
	if err != nil {
		return err
	}
	defer src.Close()

	preds, err := src.Load(ctx)
	if err != nil {
		return err
	}
	log.Debug("Loaded predictions", "source", cfg.Predictions.Source, "records", len(preds))

	runner := evaluation.NewRunner(a.dataset(), evaluation.NewEvaluator(cfg.Eval, a.log), a.log)
	rep, err := runner.Run(ctx, mode, split, preds, cfg.Eval.TopK)
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout(), rep, a.format, a.verbose); err != nil {
		return err
	}

	if !cfg.Bus.Publish {
		return nil
	}

	if cfg.Bus.Type == "memory" && cfg.Bus.EventLog == "" {
		log.Warn("Publishing on the memory bus without bus.event_log reaches no subscriber")
	}

	b, err := bus.NewBus(cfg.Bus, a.log)
	if err != nil {
		return err
	}
	defer b.Close()

	_, err = report.NewPublisher(b, cfg.Bus.Topic, a.log).Publish(ctx, rep)
	return err
}
