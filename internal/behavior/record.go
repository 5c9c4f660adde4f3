// Package behavior reads MIND-style behavior logs and decodes impression tokens.
package behavior

import (
	"strings"
	"time"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// Record is one impression event shown to a user.
type Record struct {
	// Position is the 0-based order of the record in its source.
	Position int `json:"position"`

	// ImprID is the impression ID carried by the file, if any.
	ImprID int64 `json:"impr_id"`

	UserID      string    `json:"user_id"`
	Time        time.Time `json:"time"`
	History     []string  `json:"history"`
	Impressions []string  `json:"impressions"`
}

// Impression is a decoded "<article_id>-<label>" token.
type Impression struct {
	ArticleID string `json:"article_id"`
	Label     int    `json:"label"`
}

// Clicked reports whether the article was clicked.
func (i Impression) Clicked() bool {
	return i.Label == 1
}

const impressionDelimiter = "-"

// ParseImpression decodes a single impression token. The token must split
// into exactly an article ID and a label of "0" or "1".
func ParseImpression(token string) (Impression, error) {
	parts := strings.Split(token, impressionDelimiter)
	if len(parts) != 2 {
		return Impression{}, errors.MalformedImpressionError(token, "expected <article_id>-<label>")
	}

	articleID, label := parts[0], parts[1]
	if articleID == "" {
		return Impression{}, errors.MalformedImpressionError(token, "empty article id")
	}

	switch label {
	case "0":
		return Impression{ArticleID: articleID, Label: 0}, nil
	case "1":
		return Impression{ArticleID: articleID, Label: 1}, nil
	default:
		return Impression{}, errors.MalformedImpressionError(token, "label must be 0 or 1")
	}
}

// ParseImpressions decodes every impression token of the record.
func (r Record) ParseImpressions() ([]Impression, error) {
	out := make([]Impression, 0, len(r.Impressions))
	for _, token := range r.Impressions {
		imp, err := ParseImpression(token)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, nil
}

// Clicked returns the IDs of clicked articles in token order, without duplicates.
func (r Record) Clicked() ([]string, error) {
	imps, err := r.ParseImpressions()
	if err != nil {
		return nil, err
	}

	var clicked []string
	seen := make(map[string]struct{})
	for _, imp := range imps {
		if !imp.Clicked() {
			continue
		}
		if _, dup := seen[imp.ArticleID]; dup {
			continue
		}
		seen[imp.ArticleID] = struct{}{}
		clicked = append(clicked, imp.ArticleID)
	}
	return clicked, nil
}
