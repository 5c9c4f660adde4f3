package behavior

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

const (
	behaviorColumns = 5

	// Histories in the large MIND split run to a few thousand IDs per line.
	maxLineSize = 16 * 1024 * 1024
)

// ReadBehaviors parses tab-separated behavior rows:
//
//	impr_id \t user_id \t time \t history \t impressions
//
// History and impressions are space-separated lists and may be empty.
// Impression tokens are kept verbatim; decoding happens in ground truth
// extraction so malformed tokens surface as MalformedImpressionError.
func ReadBehaviors(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := parseBehaviorLine(line)
		if err != nil {
			return nil, lineError(lineNo, err)
		}
		rec.Position = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.IOError("scanning behaviors", err)
	}

	return records, nil
}

// ReadBehaviorsFile reads behaviors from a TSV file.
func ReadBehaviorsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("behaviors file %s", path))
		}
		return nil, errors.IOError("opening behaviors file", err)
	}
	defer f.Close()

	return ReadBehaviors(f)
}

func parseBehaviorLine(line string) (Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) != behaviorColumns {
		return Record{}, errors.ValidationError(
			fmt.Sprintf("expected %d tab-separated columns, got %d", behaviorColumns, len(cols)))
	}

	imprID, err := strconv.ParseInt(strings.TrimSpace(cols[0]), 10, 64)
	if err != nil {
		return Record{}, errors.ValidationError(fmt.Sprintf("invalid impr_id %q", cols[0]))
	}

	userID := strings.TrimSpace(cols[1])
	if userID == "" {
		return Record{}, errors.ValidationError("empty user_id")
	}

	ts, err := ParseTime(cols[2])
	if err != nil {
		return Record{}, err
	}

	return Record{
		ImprID:      imprID,
		UserID:      userID,
		Time:        ts,
		History:     strings.Fields(cols[3]),
		Impressions: strings.Fields(cols[4]),
	}, nil
}

// ParseTime accepts integer epoch seconds or any layout dateparse
// recognises, such as the MIND "11/15/2019 10:22:32 AM". Times are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.ValidationError("empty time")
	}

	if isDigits(s) {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
	}

	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.CodeValidation, fmt.Sprintf("invalid time %q", s), err)
	}
	return ts.UTC(), nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func lineError(lineNo int, err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		appErr.Message = fmt.Sprintf("line %d: %s", lineNo, appErr.Message)
		return appErr.WithDetail("line", strconv.Itoa(lineNo))
	}
	return errors.Wrap(errors.CodeValidation, fmt.Sprintf("line %d", lineNo), err)
}
