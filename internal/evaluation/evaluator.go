package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/newsrec/recall-eval/internal/config"
	"github.com/newsrec/recall-eval/internal/groundtruth"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/hash"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
	"github.com/newsrec/recall-eval/internal/prediction"
)

// Evaluator orchestrates recall evaluation.
type Evaluator struct {
	step    int
	workers int
	log     *logger.Logger
	now     func() time.Time
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(cfg config.EvalConfig, log *logger.Logger) *Evaluator {
	step := cfg.Step
	if step < 1 {
		step = DefaultStep
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Evaluator{
		step:    step,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

// joinedRow is a prediction matched to its ground truth.
type joinedRow struct {
	recList  []string
	relevant map[string]struct{}
}

// Evaluate joins preds to gt and computes mean recall at every cutoff of
// the sweep. Predictions without a ground truth row are dropped and
// counted in Report.Unmatched. Results are in ascending K order.
func (e *Evaluator) Evaluate(ctx context.Context, mode Mode, preds []prediction.Record, gt groundtruth.Index, topk int) (*Report, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	cutoffs, err := Cutoffs(topk, e.step)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Mode:        mode,
		Metric:      mode.MetricName(),
		TopK:        topk,
		Predictions: len(preds),
		StartedAt:   e.now(),
	}
	log := e.log.WithRun(report.RunID).WithMode(string(mode))

	fingerprint, err := hash.Fingerprint(preds)
	if err != nil {
		return nil, errors.InternalError("fingerprinting predictions", err)
	}
	report.Fingerprint = fingerprint

	rows, unmatched, err := join(mode, preds, gt)
	if err != nil {
		return nil, err
	}
	report.Unmatched = unmatched

	results := make([]RecallResult, len(cutoffs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, k := range cutoffs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluateAt(mode, rows, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Results = results
	report.FinishedAt = e.now()

	if empty := results[0].EmptyGroundTruth; empty > 0 {
		policy := "skipped"
		if mode == ModePopularity {
			policy = "excluded"
		}
		log.Warn("Empty ground truth", "rows", empty, "policy", policy)
	}
	if unmatched > 0 {
		log.Info("Dropped predictions without ground truth", "unmatched", unmatched)
	}
	log.Debug("Evaluation finished",
		"predictions", len(preds),
		"joined", len(rows),
		"cutoffs", len(cutoffs),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

// join matches predictions to ground truth on the mode's key. A key may
// appear in at most one prediction.
func join(mode Mode, preds []prediction.Record, gt groundtruth.Index) ([]joinedRow, int, error) {
	rows := make([]joinedRow, 0, len(preds))
	seen := make(map[groundtruth.Key]struct{}, len(preds))
	unmatched := 0

	for _, p := range preds {
		key := groundtruth.Key{UserID: p.UserID}
		if mode == ModeImpression {
			if p.ImprID == nil {
				unmatched++
				continue
			}
			key.ImprID = *p.ImprID
		}

		if _, dup := seen[key]; dup {
			return nil, 0, duplicateError(mode, key)
		}
		seen[key] = struct{}{}

		relevant, ok := gt[key]
		if !ok {
			unmatched++
			continue
		}
		rows = append(rows, joinedRow{recList: p.RecList, relevant: relevant})
	}

	return rows, unmatched, nil
}

func duplicateError(mode Mode, key groundtruth.Key) error {
	if mode == ModeImpression {
		return errors.ValidationError(fmt.Sprintf("duplicate prediction for impression %d of user %s", key.ImprID, key.UserID))
	}
	return errors.ValidationError(fmt.Sprintf("duplicate prediction for user %s", key.UserID))
}

// evaluateAt computes the macro-averaged recall at cutoff k.
func evaluateAt(mode Mode, rows []joinedRow, k int) RecallResult {
	res := RecallResult{K: k}

	var sum float64
	for _, row := range rows {
		_, recall, ok := recallAtK(row.recList, row.relevant, k)
		if !ok {
			res.EmptyGroundTruth++
			if mode != ModePopularity {
				res.Joined++
			}
			continue
		}
		res.Joined++
		res.Samples++
		sum += recall
	}

	if res.Samples > 0 {
		res.Value = sum / float64(res.Samples)
	}
	return res
}
