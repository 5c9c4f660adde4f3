package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/newsrec/recall-eval/internal/bus"
	"github.com/newsrec/recall-eval/internal/evaluation"
	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

// Source identifies events emitted by this tool.
const Source = "recall-eval"

// Publisher announces finished evaluations on a bus topic.
type Publisher struct {
	bus   bus.Bus
	topic string
	log   *logger.Logger
}

// NewPublisher creates a publisher. An empty topic selects
// bus.TopicEvaluationCompleted.
func NewPublisher(b bus.Bus, topic string, log *logger.Logger) *Publisher {
	if topic == "" {
		topic = bus.TopicEvaluationCompleted
	}
	return &Publisher{bus: b, topic: topic, log: log}
}

// Publish sends an evaluation.completed event carrying r. The event is
// correlated with the report's run ID.
func (p *Publisher) Publish(ctx context.Context, r *evaluation.Report) (bus.Event, error) {
	event := bus.NewEvent(bus.EventEvaluationCompleted, Source, r)
	event.CorrelationID = r.RunID

	if err := p.bus.Publish(ctx, p.topic, event); err != nil {
		return bus.Event{}, fmt.Errorf("publish report %s: %w", r.RunID, err)
	}

	p.log.WithRun(r.RunID).Info("Published evaluation report", "topic", p.topic, "event_id", event.ID)
	return event, nil
}

// DecodeEvent extracts the report carried by an evaluation.completed event.
// Payloads that went through JSON arrive as generic maps and are re-decoded.
func DecodeEvent(event bus.Event) (*evaluation.Report, error) {
	if event.Type != bus.EventEvaluationCompleted {
		return nil, errors.ValidationError(fmt.Sprintf("event %s has type %q, not %s", event.ID, event.Type, bus.EventEvaluationCompleted))
	}

	switch p := event.Payload.(type) {
	case *evaluation.Report:
		return p, nil
	case evaluation.Report:
		return &p, nil
	}

	data, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("event %s: unreadable payload", event.ID))
	}
	var r evaluation.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, fmt.Sprintf("event %s: payload is not a report", event.ID), err)
	}
	return &r, nil
}
