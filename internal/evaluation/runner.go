package evaluation

import (
	"context"

	"github.com/newsrec/recall-eval/internal/behavior"
	"github.com/newsrec/recall-eval/internal/groundtruth"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
	"github.com/newsrec/recall-eval/internal/prediction"
)

// Runner evaluates predictions against a split of the dataset.
type Runner struct {
	dataset   *behavior.Dataset
	evaluator *Evaluator
	log       *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(dataset *behavior.Dataset, evaluator *Evaluator, log *logger.Logger) *Runner {
	return &Runner{
		dataset:   dataset,
		evaluator: evaluator,
		log:       log,
	}
}

// GroundTruth extracts the ground truth index a mode joins against.
func GroundTruth(mode Mode, records []behavior.Record) (groundtruth.Index, error) {
	if mode == ModeImpression {
		rows, err := groundtruth.PerImpression(records)
		if err != nil {
			return nil, err
		}
		return groundtruth.IndexImpressions(rows), nil
	}

	rows, err := groundtruth.EarliestUserHist(records)
	if err != nil {
		return nil, err
	}
	return groundtruth.IndexUsers(rows), nil
}

// Run loads split, extracts ground truth for mode and evaluates preds.
func (r *Runner) Run(ctx context.Context, mode Mode, split behavior.Split, preds []prediction.Record, topk int) (*Report, error) {
	records, err := r.dataset.Read(split)
	if err != nil {
		return nil, err
	}

	gt, err := GroundTruth(mode, records)
	if err != nil {
		return nil, err
	}
	r.log.WithSplit(string(split)).WithMode(string(mode)).Debug("Extracted ground truth",
		"records", len(records), "rows", len(gt))

	report, err := r.evaluator.Evaluate(ctx, mode, preds, gt, topk)
	if err != nil {
		return nil, err
	}
	report.Split = string(split)
	return report, nil
}

// ValidPopularityRecall evaluates user-level recall on the dev split,
// excluding users without clicks.
func (r *Runner) ValidPopularityRecall(ctx context.Context, preds []prediction.Record, topk int) (*Report, error) {
	return r.Run(ctx, ModePopularity, behavior.SplitDev, preds, topk)
}

// ValidRecall evaluates user-level recall on the dev split.
func (r *Runner) ValidRecall(ctx context.Context, preds []prediction.Record, topk int) (*Report, error) {
	return r.Run(ctx, ModeUser, behavior.SplitDev, preds, topk)
}

// ValidRecallSmall evaluates user-level recall on the small dev split.
func (r *Runner) ValidRecallSmall(ctx context.Context, preds []prediction.Record, topk int) (*Report, error) {
	return r.Run(ctx, ModeUser, behavior.SplitSmallDev, preds, topk)
}

// ValidRecallImpression evaluates impression-level recall on the dev split.
func (r *Runner) ValidRecallImpression(ctx context.Context, preds []prediction.Record, topk int) (*Report, error) {
	return r.Run(ctx, ModeImpression, behavior.SplitDev, preds, topk)
}
