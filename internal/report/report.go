// Package report renders evaluation reports and publishes them on the bus.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// Undefined is printed for cutoffs where no row contributed a value.
const Undefined = "n/a"

// FormatValue renders a result value with six decimals, or Undefined.
func FormatValue(res evaluation.RecallResult) string {
	if !res.Defined() {
		return Undefined
	}
	return fmt.Sprintf("%.6f", res.Value)
}

// WriteText writes one "<Metric>@<K>: <value>" line per cutoff. With
// verbose set each line also carries the sample counts.
func WriteText(w io.Writer, r *evaluation.Report, verbose bool) error {
	for _, res := range r.Results {
		var err error
		if verbose {
			_, err = fmt.Fprintf(w, "%s@%d: %s (samples=%d joined=%d empty_gt=%d)\n",
				r.Metric, res.K, FormatValue(res), res.Samples, res.Joined, res.EmptyGroundTruth)
		} else {
			_, err = fmt.Fprintf(w, "%s@%d: %s\n", r.Metric, res.K, FormatValue(res))
		}
		if err != nil {
			return errors.IOError("writing report", err)
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *evaluation.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.IOError("writing report", err)
	}
	return nil
}

// Write renders r in format, which is "text" or "json".
func Write(w io.Writer, r *evaluation.Report, format string, verbose bool) error {
	switch format {
	case "json":
		return WriteJSON(w, r)
	case "text", "":
		return WriteText(w, r, verbose)
	default:
		return errors.ValidationError(fmt.Sprintf("unknown output format %q (must be text or json)", format))
	}
}

// Best returns the result at the largest cutoff, which has the highest
// recall of the sweep.
func Best(r *evaluation.Report) (evaluation.RecallResult, bool) {
	if len(r.Results) == 0 {
		return evaluation.RecallResult{}, false
	}
	return r.Results[len(r.Results)-1], true
}
