package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// LoggedEvent is one line of the event archive.
type LoggedEvent struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// EventLogger appends events to a JSONL file and reads them back.
type EventLogger struct {
	logPath string
	enabled bool

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	now     func() time.Time
}

// NewEventLogger opens logPath for appending. A disabled logger accepts
// writes and discards them, but can still read an existing archive.
func NewEventLogger(logPath string, enabled bool) (*EventLogger, error) {
	l := &EventLogger{
		logPath: logPath,
		enabled: enabled,
		now:     time.Now,
	}
	if !enabled {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, errors.IOError("creating event log directory", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.IOError("opening event log", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	return l, nil
}

// Log appends an event to the archive.
func (l *EventLogger) Log(topic string, event Event) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New(errors.CodeInternal, "event logger is closed")
	}

	entry := LoggedEvent{
		Event:     event,
		Topic:     topic,
		Timestamp: l.now(),
	}
	if err := l.encoder.Encode(entry); err != nil {
		return errors.IOError("writing event", err)
	}
	if err := l.file.Sync(); err != nil {
		return errors.IOError("syncing event log", err)
	}
	return nil
}

// Events returns archived events logged after since, oldest first. If
// limit > 0, at most limit events are returned. Undecodable lines are
// skipped. A missing archive yields no events.
func (l *EventLogger) Events(since time.Time, limit int) ([]LoggedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IOError("opening event log", err)
	}
	defer file.Close()

	// Reports carry every cutoff, so lines stay small; 1MB is plenty.
	const maxLineSize = 1024 * 1024
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []LoggedEvent
	for scanner.Scan() {
		var entry LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !entry.Timestamp.After(since) {
			continue
		}
		events = append(events, entry)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.IOError("scanning event log", err)
	}

	return events, nil
}

// Replay republishes archived events logged after since to b, in order.
func (l *EventLogger) Replay(ctx context.Context, b Bus, since time.Time) error {
	events, err := l.Events(since, 0)
	if err != nil {
		return err
	}

	for _, entry := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Publish(ctx, entry.Topic, entry.Event); err != nil {
			return fmt.Errorf("replay event %s: %w", entry.Event.ID, err)
		}
	}
	return nil
}

// Path returns the archive location.
func (l *EventLogger) Path() string {
	return l.logPath
}

// Close closes the log file.
func (l *EventLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.encoder = nil
	if err != nil {
		return errors.IOError("closing event log", err)
	}
	return nil
}
