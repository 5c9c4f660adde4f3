package evaluation

import (
	"fmt"
	"time"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// Mode selects the join key and empty ground truth policy of an evaluation.
type Mode string

// Evaluation modes.
const (
	// ModePopularity joins on user and drops users without ground truth.
	ModePopularity Mode = "popularity"
	// ModeUser joins on user; users without ground truth contribute no value.
	ModeUser Mode = "user"
	// ModeImpression joins on (impression, user).
	ModeImpression Mode = "impression"
)

// Modes lists every mode.
var Modes = []Mode{ModePopularity, ModeUser, ModeImpression}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.ValidationError(fmt.Sprintf("unknown mode %q (must be popularity, user, or impression)", s))
}

// MetricName returns the label used when reporting the mode's results.
func (m Mode) MetricName() string {
	switch m {
	case ModePopularity:
		return "Recall"
	case ModeUser:
		return "User-Recall"
	case ModeImpression:
		return "Impression-Recall"
	default:
		return string(m)
	}
}

// RecallResult is the mean recall at one cutoff.
type RecallResult struct {
	K     int     `json:"k"`
	Value float64 `json:"value"`

	// Samples is the number of users or impressions averaged into Value.
	Samples int `json:"samples"`
	// Joined counts rows matched between predictions and ground truth.
	// Popularity mode leaves rows with empty ground truth out of Joined.
	Joined int `json:"joined"`
	// EmptyGroundTruth counts matched rows with no relevant item.
	EmptyGroundTruth int `json:"empty_ground_truth"`
}

// Defined reports whether at least one row contributed to Value.
func (r RecallResult) Defined() bool {
	return r.Samples > 0
}

// Report is the outcome of one evaluation run.
type Report struct {
	RunID       string         `json:"run_id"`
	Mode        Mode           `json:"mode"`
	Metric      string         `json:"metric"`
	Split       string         `json:"split,omitempty"`
	TopK        int            `json:"topk"`
	Predictions int            `json:"predictions"`
	Fingerprint string         `json:"predictions_fingerprint,omitempty"`
	Unmatched   int            `json:"unmatched"`
	Results     []RecallResult `json:"results"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// At returns the result for cutoff k.
func (r *Report) At(k int) (RecallResult, bool) {
	for _, res := range r.Results {
		if res.K == k {
			return res, true
		}
	}
	return RecallResult{}, false
}
