package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"backoffice/internal/models"
	"backoffice/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes notification events keyed by tenant, so one
// tenant's events stay ordered within a partition
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish validates and publishes a notification event
func (ep *EventPublisher) Publish(ctx context.Context, event models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	base := event.Base()
	if err := ep.producer.PublishEvent(ctx, base.TenantID, event); err != nil {
		return err
	}

	util.NotificationsPublishedTotal.WithLabelValues(base.EventType).Inc()
	return nil
}

// EventHandlerFunc handles one decoded notification event
type EventHandlerFunc func(ctx context.Context, event models.Event) error

// EventRouter decodes Kafka messages and routes them by event type
type EventRouter struct {
	mu       sync.RWMutex
	handlers map[string]EventHandlerFunc
	logger   *zap.Logger
}

// NewEventRouter creates an empty router
func NewEventRouter() *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandlerFunc),
		logger:   util.GetLogger(),
	}
}

// On registers handler for eventType
func (r *EventRouter) On(eventType string, handler EventHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = handler
}

// HandleMessage routes a message to its handler. Malformed payloads are
// dropped (nil error) so the consumer commits past them.
func (r *EventRouter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := models.ParseEvent(msg.Value)
	if err != nil {
		if errors.Is(err, models.ErrMalformedEvent) {
			util.NotificationsDroppedTotal.WithLabelValues("malformed").Inc()
			r.logger.Warn("Dropping malformed event",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to parse event: %w", err)
	}

	base := event.Base()

	r.mu.RLock()
	handler, ok := r.handlers[base.EventType]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("Unhandled event type", zap.String("event_type", base.EventType))
		return nil
	}

	r.logger.Debug("Handling event",
		zap.String("event_type", base.EventType),
		zap.String("event_id", base.EventID))

	return handler(ctx, event)
}
