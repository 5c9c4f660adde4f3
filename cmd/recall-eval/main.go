// Package main provides the recall-eval command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		logger.Default().WithError(err).Error("recall-eval failed", "code", errors.Code(err))
		stop()
		os.Exit(errors.ExitCode(err))
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall-eval",
		Short: "Recall@K evaluation for news recommendation candidates",
		Long: `recall-eval measures how many clicked articles a recommender's ranked
candidate lists recover, at K = 10, 20, ... for MIND-style behavior logs.

Examples:
  recall-eval user --predictions preds.jsonl
  recall-eval impression --predictions preds.jsonl --topk 3
  recall-eval popularity --source redis --publish
  recall-eval groundtruth --level user --split small-dev`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringP("config", "c", "", "config file path")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	cmd.PersistentFlags().String("format", "text", "output format (text, json)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		evalCmd(evaluation.ModePopularity,
			"Recall over users, excluding users without clicks",
			"Joins predictions to each user's earliest-impression clicks. Users whose\nearliest impression has no click are left out of the average."),
		evalCmd(evaluation.ModeUser,
			"Recall over users",
			"Joins predictions to each user's earliest-impression clicks. Users without\nclicks are counted and reported but contribute no value."),
		evalCmd(evaluation.ModeImpression,
			"Recall over individual impressions",
			"Joins predictions on (impr_id, user_id), where impr_id is the 0-based row\nof the impression in the behaviors file."),
		groundTruthCmd(),
		inspectCmd(),
		historyCmd(),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recall-eval %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
