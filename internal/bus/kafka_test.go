package bus

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

func TestNewKafkaBus_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  KafkaConfig
	}{
		{
			name: "empty brokers",
			cfg:  KafkaConfig{ConsumerGroup: "g"},
		},
		{
			name: "empty consumer group",
			cfg:  KafkaConfig{Brokers: []string{"localhost:9092"}},
		},
		{
			name: "bad version",
			cfg:  KafkaConfig{Brokers: []string{"localhost:9092"}, ConsumerGroup: "g", Version: "banana"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKafkaBus(tt.cfg, logger.Discard())
			if !errors.IsValidation(err) {
				t.Errorf("NewKafkaBus() error = %v, want validation error", err)
			}
		})
	}
}

func TestEncodeMessage(t *testing.T) {
	event := Event{ID: "evt-1", Type: EventEvaluationCompleted, CorrelationID: "run-1", Payload: map[string]int{"k": 10}}

	msg, err := encodeMessage(TopicEvaluationCompleted, event)
	if err != nil {
		t.Fatalf("encodeMessage() error = %v", err)
	}
	if msg.Topic != TopicEvaluationCompleted {
		t.Errorf("Topic = %q", msg.Topic)
	}

	key, _ := msg.Key.Encode()
	if string(key) != "run-1" {
		t.Errorf("Key = %q, want run-1", key)
	}

	value, _ := msg.Value.Encode()
	var decoded Event
	if err := json.Unmarshal(value, &decoded); err != nil {
		t.Fatalf("value is not an event: %v", err)
	}
	if decoded.ID != "evt-1" || decoded.CorrelationID != "run-1" {
		t.Errorf("decoded = %+v", decoded)
	}

	if len(msg.Headers) != 2 || string(msg.Headers[1].Key) != "correlation_id" {
		t.Errorf("Headers = %v", msg.Headers)
	}
}

func TestEncodeMessage_KeyFallsBackToID(t *testing.T) {
	msg, err := encodeMessage("t", Event{ID: "evt-2"})
	if err != nil {
		t.Fatalf("encodeMessage() error = %v", err)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "evt-2" {
		t.Errorf("Key = %q, want evt-2", key)
	}
	if len(msg.Headers) != 1 {
		t.Errorf("Headers = %v, want only event_type", msg.Headers)
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092, b:9092 ,", []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		got := ParseKafkaBrokers(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseKafkaBrokers(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseKafkaBrokers(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

// kafkaBroker returns a reachable broker address or skips the test.
func kafkaBroker(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("RECALL_TEST_KAFKA")
	if addr == "" {
		addr = "localhost:9092"
	}
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		t.Skipf("Kafka not available at %s: %v", addr, err)
	}
	conn.Close()
	return addr
}

func TestKafkaBus_PublishSubscribe(t *testing.T) {
	broker := kafkaBroker(t)

	bus, err := NewKafkaBus(KafkaConfig{
		Brokers:       []string{broker},
		ConsumerGroup: "recall-eval-test-" + time.Now().Format("150405.000"),
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewKafkaBus() error = %v", err)
	}
	defer bus.Close()

	topic := "recall.test." + time.Now().Format("150405")
	var once sync.Once
	got := make(chan Event, 1)
	bus.Subscribe(context.Background(), topic, func(ctx context.Context, event Event) error {
		once.Do(func() { got <- event })
		return nil
	})

	// Give the consumer group time to join before the first publish.
	time.Sleep(3 * time.Second)

	sent := NewEvent(EventEvaluationCompleted, "test", nil)
	if err := bus.Publish(context.Background(), topic, sent); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case event := <-got:
		if event.ID != sent.ID {
			t.Errorf("received %s, want %s", event.ID, sent.ID)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("Timeout waiting for kafka event")
	}
}

// stubConsumerGroup blocks in Consume until the bus cancels it.
type stubConsumerGroup struct {
	mu     sync.Mutex
	topics []string
	closed bool
	errs   chan error
}

func (g *stubConsumerGroup) Consume(ctx context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	g.topics = append(g.topics, topics...)
	g.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (g *stubConsumerGroup) Errors() <-chan error { return g.errs }

func (g *stubConsumerGroup) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

func (g *stubConsumerGroup) Pause(map[string][]int32)  {}
func (g *stubConsumerGroup) Resume(map[string][]int32) {}
func (g *stubConsumerGroup) PauseAll()                 {}
func (g *stubConsumerGroup) ResumeAll()                {}

func newStubbedKafkaBus(t *testing.T) (*KafkaBus, *mocks.SyncProducer, *int, *stubConsumerGroup) {
	t.Helper()
	producer := mocks.NewSyncProducer(t, nil)
	b := newKafkaBus(KafkaConfig{ConsumerGroup: "g"}, producer, logger.Discard())
	group := &stubConsumerGroup{errs: make(chan error)}
	created := 0
	b.newConsumer = func(name string) (sarama.ConsumerGroup, error) {
		if name != "g" {
			t.Errorf("consumer group = %q, want g", name)
		}
		created++
		return group, nil
	}
	return b, producer, &created, group
}

func TestKafkaBus_PublishDoesNotJoinConsumerGroup(t *testing.T) {
	b, producer, created, _ := newStubbedKafkaBus(t)
	producer.ExpectSendMessageAndSucceed()

	if err := b.Publish(context.Background(), "recall.test", NewEvent(EventEvaluationCompleted, "test", nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if *created != 0 {
		t.Errorf("consumer groups created = %d, want 0", *created)
	}
	if b.consumer != nil {
		t.Error("consumer group set after publish-only use")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestKafkaBus_SubscribeCreatesConsumerGroupOnce(t *testing.T) {
	b, _, created, group := newStubbedKafkaBus(t)
	noop := func(ctx context.Context, event Event) error { return nil }

	for _, topic := range []string{"a", "a", "b"} {
		if err := b.Subscribe(context.Background(), topic, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if *created != 1 {
		t.Errorf("consumer groups created = %d, want 1", *created)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	group.mu.Lock()
	defer group.mu.Unlock()
	if !group.closed {
		t.Error("consumer group not closed")
	}
	if len(group.topics) != 2 {
		t.Errorf("consumed topics = %v, want one consumer per topic", group.topics)
	}
}

func TestKafkaBus_SubscribeAfterClose(t *testing.T) {
	b, _, created, _ := newStubbedKafkaBus(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := b.Subscribe(context.Background(), "a", func(ctx context.Context, event Event) error { return nil })
	if errors.Code(err) != errors.CodeUnavailable {
		t.Errorf("Subscribe() error = %v, want unavailable", err)
	}
	if *created != 0 {
		t.Errorf("consumer groups created = %d, want 0", *created)
	}
}

func TestConsumerGroupHandler_Dispatch(t *testing.T) {
	b, _, _, _ := newStubbedKafkaBus(t)
	defer b.Close()

	var got []Event
	b.handlers["recall.test"] = []Handler{func(ctx context.Context, event Event) error {
		got = append(got, event)
		return nil
	}}
	h := &consumerGroupHandler{bus: b, topic: "recall.test"}

	sent := NewEvent(EventEvaluationCompleted, "test", map[string]any{"run_id": "r1"})
	data, err := json.Marshal(sent)
	if err != nil {
		t.Fatal(err)
	}
	h.dispatch(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})
	h.dispatch(context.Background(), &sarama.ConsumerMessage{Value: data})

	if len(got) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(got))
	}
	if got[0].ID != sent.ID || got[0].Type != EventEvaluationCompleted {
		t.Errorf("dispatched %+v, want %+v", got[0], sent)
	}
}
