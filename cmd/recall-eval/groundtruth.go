package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/groundtruth"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

func groundTruthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groundtruth",
		Short: "Dump extracted ground truth as JSON lines",
		Long: `Extract ground truth from a behaviors split and write one JSON object per
line to stdout.

  --level user        {"user_id": ..., "hist": [...]}  earliest impression per user
  --level impression  {"impr_id": ..., "user_id": ..., "gt": [...]}`,
		Args: cobra.NoArgs,
		RunE: runGroundTruth,
	}

	cmd.Flags().String("level", "user", "ground truth level (user, impression)")
	cmd.Flags().String("split", "dev", "behaviors split (train, dev, small-dev)")

	return cmd
}

func runGroundTruth(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	split, err := splitFlag(cmd)
	if err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("level")

	records, err := a.dataset().Read(split)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	var rows int

	switch level {
	case "user":
		gt, err := groundtruth.EarliestUserHist(records)
		if err != nil {
			return err
		}
		for _, row := range gt {
			if err := enc.Encode(row); err != nil {
				return errors.IOError("writing ground truth", err)
			}
		}
		rows = len(gt)

	case "impression":
		gt, err := groundtruth.PerImpression(records)
		if err != nil {
			return err
		}
		for _, row := range gt {
			if err := enc.Encode(row); err != nil {
				return errors.IOError("writing ground truth", err)
			}
		}
		rows = len(gt)

	default:
		return errors.ValidationError(fmt.Sprintf("unknown level %q (must be user or impression)", level))
	}

	a.log.WithSplit(string(split)).Info("Extracted ground truth", "level", level, "records", len(records), "rows", rows)
	return nil
}
