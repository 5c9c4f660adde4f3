package behavior

import (
	"fmt"

	"github.com/newsrec/recall-eval/internal/config"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

// Split names a behavior file of the dataset.
type Split string

// Known splits.
const (
	SplitTrain    Split = "train"
	SplitDev      Split = "dev"
	SplitSmallDev Split = "small-dev"
)

// Splits lists the known splits in display order.
var Splits = []Split{SplitTrain, SplitDev, SplitSmallDev}

// ParseSplit validates a split name.
func ParseSplit(s string) (Split, error) {
	for _, sp := range Splits {
		if string(sp) == s {
			return sp, nil
		}
	}
	return "", errors.ValidationError(fmt.Sprintf("unknown split %q (must be train, dev, or small-dev)", s))
}

// Dataset loads behavior and news files from configured locations.
type Dataset struct {
	cfg config.DataConfig
	log *logger.Logger
}

// NewDataset creates a dataset over the configured paths.
func NewDataset(cfg config.DataConfig, log *logger.Logger) *Dataset {
	return &Dataset{cfg: cfg, log: log}
}

// Path returns the behaviors file for a split.
func (d *Dataset) Path(split Split) (string, error) {
	switch split {
	case SplitTrain:
		return d.cfg.TrainBehaviors, nil
	case SplitDev:
		return d.cfg.DevBehaviors, nil
	case SplitSmallDev:
		return d.cfg.SmallDevBehaviors, nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("unknown split %q", split))
	}
}

// Read loads the behaviors of a split.
func (d *Dataset) Read(split Split) ([]Record, error) {
	path, err := d.Path(split)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.ValidationError(fmt.Sprintf("no behaviors path configured for split %s", split))
	}

	records, err := ReadBehaviorsFile(path)
	if err != nil {
		return nil, err
	}

	d.log.WithSplit(string(split)).Debug("Loaded behaviors", "path", path, "records", len(records))
	return records, nil
}

// ReadTrain loads the training behaviors.
func (d *Dataset) ReadTrain() ([]Record, error) {
	return d.Read(SplitTrain)
}

// ReadDev loads the dev behaviors.
func (d *Dataset) ReadDev() ([]Record, error) {
	return d.Read(SplitDev)
}

// ReadSmallDev loads the small dev behaviors.
func (d *Dataset) ReadSmallDev() ([]Record, error) {
	return d.Read(SplitSmallDev)
}

// ReadSmallNews loads the news catalog of the small split.
func (d *Dataset) ReadSmallNews() ([]NewsArticle, error) {
	if d.cfg.SmallNews == "" {
		return nil, errors.ValidationError("no small news path configured")
	}

	articles, err := ReadNewsFile(d.cfg.SmallNews)
	if err != nil {
		return nil, err
	}

	d.log.Debug("Loaded news", "path", d.cfg.SmallNews, "articles", len(articles))
	return articles, nil
}
