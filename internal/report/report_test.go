package report

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsrec/recall-eval/internal/bus"
	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

func sampleReport() *evaluation.Report {
	return &evaluation.Report{
		RunID:  "run-1",
		Mode:   evaluation.ModeUser,
		Metric: evaluation.ModeUser.MetricName(),
		Split:  "dev",
		TopK:   3,
		Results: []evaluation.RecallResult{
			{K: 10, Value: 0.25, Samples: 4, Joined: 5, EmptyGroundTruth: 1},
			{K: 20, Value: 0.5, Samples: 4, Joined: 5, EmptyGroundTruth: 1},
			{K: 30, Value: 0, Samples: 0, Joined: 1, EmptyGroundTruth: 1},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), false))

	assert.Equal(t,
		"User-Recall@10: 0.250000\n"+
			"User-Recall@20: 0.500000\n"+
			"User-Recall@30: n/a\n",
		buf.String())
}

func TestWriteText_Verbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), true))

	assert.Contains(t, buf.String(), "User-Recall@10: 0.250000 (samples=4 joined=5 empty_gt=1)\n")
}

func TestWriteText_ZeroIsNotUndefined(t *testing.T) {
	r := &evaluation.Report{Metric: "Recall", Results: []evaluation.RecallResult{{K: 10, Samples: 3}}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r, false))
	assert.Equal(t, "Recall@10: 0.000000\n", buf.String())
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), "json", false))

	var decoded evaluation.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Results, 3)

	err := Write(&buf, sampleReport(), "yaml", false)
	assert.True(t, errors.IsValidation(err))
}

func TestBest(t *testing.T) {
	best, ok := Best(sampleReport())
	require.True(t, ok)
	assert.Equal(t, 30, best.K)

	_, ok = Best(&evaluation.Report{})
	assert.False(t, ok)
}

func TestPublisher_DeliversReport(t *testing.T) {
	b := bus.NewMemoryBus(logger.Discard())
	defer b.Close()

	received := make(chan bus.Event, 1)
	require.NoError(t, b.Subscribe(context.Background(), bus.TopicEvaluationCompleted, func(ctx context.Context, event bus.Event) error {
		received <- event
		return nil
	}))

	pub := NewPublisher(b, "", logger.Discard())
	sent, err := pub.Publish(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "run-1", sent.CorrelationID)

	select {
	case event := <-received:
		assert.Equal(t, bus.EventEvaluationCompleted, event.Type)
		assert.Equal(t, Source, event.Source)

		r, err := DecodeEvent(event)
		require.NoError(t, err)
		assert.Equal(t, "run-1", r.RunID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for evaluation event")
	}
}

func TestPublisher_ClosedBus(t *testing.T) {
	b := bus.NewMemoryBus(logger.Discard())
	b.Close()

	_, err := NewPublisher(b, "custom.topic", logger.Discard()).Publish(context.Background(), sampleReport())
	assert.Equal(t, errors.CodeUnavailable, errors.Code(err))
}

func TestDecodeEvent_FromArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	archive, err := bus.NewEventLogger(path, true)
	require.NoError(t, err)
	defer archive.Close()

	event := bus.NewEvent(bus.EventEvaluationCompleted, Source, sampleReport())
	require.NoError(t, archive.Log(bus.TopicEvaluationCompleted, event))

	entries, err := archive.Events(time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	r, err := DecodeEvent(entries[0].Event)
	require.NoError(t, err)
	assert.Equal(t, evaluation.ModeUser, r.Mode)
	assert.Equal(t, 0.5, r.Results[1].Value)
}

func TestDecodeEvent_WrongType(t *testing.T) {
	_, err := DecodeEvent(bus.Event{ID: "x", Type: "other"})
	assert.True(t, errors.IsValidation(err))
}
