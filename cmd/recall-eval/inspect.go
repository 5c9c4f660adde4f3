package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/newsrec/recall-eval/internal/behavior"
	"github.com/newsrec/recall-eval/internal/groundtruth"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/prediction"
)

type inspection struct {
	Split    string               `json:"split"`
	Path     string               `json:"path"`
	Bytes    int64                `json:"bytes"`
	Summary  groundtruth.Summary  `json:"summary"`
	Catalog  int                  `json:"catalog,omitempty"`
	Coverage *prediction.Coverage `json:"coverage,omitempty"`
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show dataset statistics and prediction coverage",
		Long: `Summarize a behaviors split: records, users, impressions, clicks and how
many users or impressions have ground truth. With --predictions, also report
how many predicted article IDs exist in the small news catalog.`,
		Args: cobra.NoArgs,
		RunE: runInspect,
	}

	cmd.Flags().String("split", "small-dev", "behaviors split (train, dev, small-dev)")
	cmd.Flags().StringP("predictions", "p", "", "predictions JSONL file to check against the news catalog")

	return cmd
}

func runInspect(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	split, err := splitFlag(cmd)
	if err != nil {
		return err
	}

	ds := a.dataset()
	path, err := ds.Path(split)
	if err != nil {
		return err
	}

	out := inspection{Split: string(split), Path: path}
	if fi, err := os.Stat(path); err == nil {
		out.Bytes = fi.Size()
	}

	records, err := ds.Read(split)
	if err != nil {
		return err
	}
	if out.Summary, err = groundtruth.Summarize(records); err != nil {
		return err
	}

	if predPath, _ := cmd.Flags().GetString("predictions"); predPath != "" {
		preds, err := prediction.NewFileSource(predPath).Load(cmd.Context())
		if err != nil {
			return err
		}
		news, err := ds.ReadSmallNews()
		if err != nil {
			return err
		}
		catalog := behavior.NewCatalog(news)
		coverage := prediction.MeasureCoverage(preds, catalog.Contains)
		out.Catalog = len(catalog)
		out.Coverage = &coverage
	}

	if a.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return errors.IOError("writing inspection", err)
		}
		return nil
	}
	return writeInspection(cmd.OutOrStdout(), out)
}

func writeInspection(w io.Writer, in inspection) error {
	s := in.Summary
	lines := []string{
		fmt.Sprintf("Split:         %s (%s, %s)", in.Split, in.Path, humanize.Bytes(uint64(in.Bytes))),
		fmt.Sprintf("Records:       %s", humanize.Comma(int64(s.Records))),
		fmt.Sprintf("Users:         %s", humanize.Comma(int64(s.Users))),
		fmt.Sprintf("Impressions:   %s", humanize.Comma(int64(s.Impressions))),
		fmt.Sprintf("Clicks:        %s", humanize.Comma(int64(s.Clicks))),
		fmt.Sprintf("User GT rows:  %s (%s users without clicks)",
			humanize.Comma(int64(s.UsersWithGT)), humanize.Comma(int64(s.UsersWithoutGT()))),
		fmt.Sprintf("Impr GT rows:  %s", humanize.Comma(int64(s.RecordsWithGT))),
	}
	if c := in.Coverage; c != nil {
		lines = append(lines,
			fmt.Sprintf("Predictions:   %s lists, %s items", humanize.Comma(int64(c.Lists)), humanize.Comma(int64(c.Items))),
			fmt.Sprintf("Coverage:      %s of %s distinct IDs in a %s article catalog (%s%%)",
				humanize.Comma(int64(c.Known)), humanize.Comma(int64(c.Distinct)),
				humanize.Comma(int64(in.Catalog)), humanize.FtoaWithDigits(c.Ratio()*100, 1)),
		)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.IOError("writing inspection", err)
		}
	}
	return nil
}
