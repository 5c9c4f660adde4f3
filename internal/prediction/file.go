package prediction

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// FileSource reads predictions from a JSON Lines file, one record per line:
//
//	{"user_id": "U1", "impr_id": 3, "rec_list": ["N1", "N2"]}
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads every record of the file.
func (s *FileSource) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("predictions file %s", s.path))
		}
		return nil, errors.IOError("opening predictions file", err)
	}
	defer f.Close()

	return ReadJSONL(ctx, f)
}

// Close is a no-op for files.
func (s *FileSource) Close() error {
	return nil
}

// ReadJSONL decodes JSON Lines predictions. Blank lines are skipped.
func ReadJSONL(ctx context.Context, r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(errors.CodeValidation, fmt.Sprintf("line %d: invalid prediction", lineNo), err).
				WithDetail("line", strconv.Itoa(lineNo))
		}
		if rec.UserID == "" {
			return nil, errors.ValidationError(fmt.Sprintf("line %d: missing user_id", lineNo)).
				WithDetail("line", strconv.Itoa(lineNo))
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.IOError("scanning predictions", err)
	}

	return records, nil
}
