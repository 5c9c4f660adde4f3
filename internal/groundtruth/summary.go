package groundtruth

import (
	"github.com/newsrec/recall-eval/internal/behavior"
)

// Summary describes how much ground truth a set of behavior records yields.
type Summary struct {
	Records     int `json:"records"`
	Users       int `json:"users"`
	Impressions int `json:"impressions"`
	Clicks      int `json:"clicks"`

	// UsersWithGT counts users whose earliest record has a click.
	UsersWithGT int `json:"users_with_gt"`
	// RecordsWithGT counts records with at least one click.
	RecordsWithGT int `json:"records_with_gt"`
}

// UsersWithoutGT counts users that popularity mode would drop.
func (s Summary) UsersWithoutGT() int {
	return s.Users - s.UsersWithGT
}

// Summarize decodes every record and counts impressions, clicks and the
// rows each ground truth level would produce.
func Summarize(records []behavior.Record) (Summary, error) {
	s := Summary{Records: len(records)}

	users := make(map[string]struct{})
	for _, rec := range records {
		users[rec.UserID] = struct{}{}

		imps, err := rec.ParseImpressions()
		if err != nil {
			return Summary{}, err
		}
		s.Impressions += len(imps)
		clicked := 0
		for _, imp := range imps {
			if imp.Clicked() {
				clicked++
			}
		}
		s.Clicks += clicked
		if clicked > 0 {
			s.RecordsWithGT++
		}
	}
	s.Users = len(users)

	rows, err := EarliestUserHist(records)
	if err != nil {
		return Summary{}, err
	}
	s.UsersWithGT = len(rows)

	return s, nil
}
