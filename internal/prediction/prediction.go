// Package prediction loads ranked recommendation lists to be evaluated.
package prediction

import (
	"context"
	"fmt"

	"github.com/newsrec/recall-eval/internal/config"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// Record is a ranked recommendation list for a user, or for one of the
// user's impressions when ImprID is set. RecList is best-first.
type Record struct {
	UserID  string   `json:"user_id"`
	ImprID  *int64   `json:"impr_id,omitempty"`
	RecList []string `json:"rec_list"`
}

// Source loads prediction records.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
	Close() error
}

// NewSource builds the source selected by cfg. maxLen bounds how many
// items per list a source needs to fetch; zero means all.
func NewSource(cfg config.PredictionsConfig, maxLen int) (Source, error) {
	switch cfg.Source {
	case "file", "":
		if cfg.Path == "" {
			return nil, errors.ValidationError("predictions path is required for the file source")
		}
		return NewFileSource(cfg.Path), nil

	case "redis":
		return NewRedisSource(RedisConfig{
			URL:       cfg.RedisURL,
			KeyPrefix: cfg.KeyPrefix,
			MaxLen:    maxLen,
		})

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown predictions source: %s", cfg.Source))
	}
}

// Int64 returns a pointer to v, for building impression-level records.
func Int64(v int64) *int64 {
	return &v
}
