// Package groundtruth derives the clicked articles used as recall targets
// from behavior logs.
package groundtruth

import (
	"fmt"
	"sort"

	"github.com/newsrec/recall-eval/internal/behavior"
)

// UserGroundTruth holds the articles a user clicked in their earliest impression.
type UserGroundTruth struct {
	UserID string   `json:"user_id"`
	Hist   []string `json:"hist"`
}

// ImpressionGroundTruth holds the articles clicked within one impression.
// ImprID is the 0-based position of the record in its source.
type ImpressionGroundTruth struct {
	ImprID int64    `json:"impr_id"`
	UserID string   `json:"user_id"`
	GT     []string `json:"gt"`
}

// EarliestUserHist keeps, for every user, only the record with the smallest
// Time and returns the clicked articles of that record. Equal times resolve
// to the record that appears first in the input. Users whose earliest record
// has no click are absent from the result. Rows are ordered by user ID.
func EarliestUserHist(records []behavior.Record) ([]UserGroundTruth, error) {
	earliest := make(map[string]int, len(records))
	for i, rec := range records {
		cur, ok := earliest[rec.UserID]
		if !ok || isEarlier(rec, records[cur]) {
			earliest[rec.UserID] = i
		}
	}

	users := make([]string, 0, len(earliest))
	for userID := range earliest {
		users = append(users, userID)
	}
	sort.Strings(users)

	out := make([]UserGroundTruth, 0, len(users))
	for _, userID := range users {
		clicked, err := records[earliest[userID]].Clicked()
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", userID, err)
		}
		if len(clicked) == 0 {
			continue
		}
		out = append(out, UserGroundTruth{UserID: userID, Hist: clicked})
	}
	return out, nil
}

// isEarlier reports whether a precedes b: earlier time first, then lower
// input position.
func isEarlier(a, b behavior.Record) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Position < b.Position
}

// PerImpression returns the clicked articles of every record that has at
// least one click. ImprID is the record's index in records.
func PerImpression(records []behavior.Record) ([]ImpressionGroundTruth, error) {
	var out []ImpressionGroundTruth
	for i, rec := range records {
		clicked, err := rec.Clicked()
		if err != nil {
			return nil, fmt.Errorf("impression %d: %w", i, err)
		}
		if len(clicked) == 0 {
			continue
		}
		out = append(out, ImpressionGroundTruth{
			ImprID: int64(i),
			UserID: rec.UserID,
			GT:     clicked,
		})
	}
	return out, nil
}
