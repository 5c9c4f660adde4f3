package bus

import (
	"context"

	"github.com/newsrec/recall-eval/internal/pkg/logger"
)

// LoggedBus archives every published event before handing it to the inner bus.
type LoggedBus struct {
	inner       Bus
	eventLogger *EventLogger
	log         *logger.Logger
}

// NewLoggedBus wraps inner with eventLogger.
func NewLoggedBus(inner Bus, eventLogger *EventLogger, log *logger.Logger) *LoggedBus {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedBus{
		inner:       inner,
		eventLogger: eventLogger,
		log:         log,
	}
}

// Publish archives the event and then delegates to the inner bus. A failed
// archive write does not stop delivery.
func (b *LoggedBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.eventLogger.Log(topic, event); err != nil {
		b.log.WithError(err).Warn("Failed to archive event", "topic", topic, "path", b.eventLogger.Path())
	}
	return b.inner.Publish(ctx, topic, event)
}

// Subscribe delegates to the inner bus.
func (b *LoggedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes the archive and the inner bus.
func (b *LoggedBus) Close() error {
	if err := b.eventLogger.Close(); err != nil {
		b.log.WithError(err).Warn("Failed to close event archive")
	}
	return b.inner.Close()
}
