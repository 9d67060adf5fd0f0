package worker

import (
	"context"

	"backoffice/internal/broker"
	"backoffice/internal/models"
	"backoffice/internal/util"

	"go.uber.org/zap"
)

// MessageSource is satisfied by broker.Consumer
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// Relayer pushes an event to the connected clients of its tenant
type Relayer interface {
	RelayEvent(ctx context.Context, event models.Event) error
}

// NotificationRelay forwards notification events from Kafka to the
// websocket gateway of this instance
type NotificationRelay struct {
	source MessageSource
	router *broker.EventRouter
	logger *zap.Logger
}

// NewNotificationRelay wires every notification type to relayer
func NewNotificationRelay(source MessageSource, relayer Relayer) *NotificationRelay {
	router := broker.NewEventRouter()

	for _, eventType := range []string{
		models.EventTypeWebOrderReceived,
		models.EventTypeNewInventoryRequest,
		models.EventTypeApproveOrder,
		models.EventTypeRejectOrder,
	} {
		router.On(eventType, relayer.RelayEvent)
	}

	return &NotificationRelay{
		source: source,
		router: router,
		logger: util.GetLogger(),
	}
}

// Start blocks until ctx is cancelled or the source is closed
func (w *NotificationRelay) Start(ctx context.Context) error {
	w.logger.Info("Starting notification relay")
	return w.source.StartConsuming(ctx, w.router.HandleMessage)
}

// Stop closes the underlying consumer
func (w *NotificationRelay) Stop() error {
	w.logger.Info("Stopping notification relay")
	return w.source.Close()
}
