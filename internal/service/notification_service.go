package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/events"
)

// EventForwarder hands events to an outbound channel such as a broker relay.
type EventForwarder interface {
	Forward(ctx context.Context, event events.Event) error
}

// NotificationService logs auth events and forwards them when a forwarder is configured.
type NotificationService struct {
	dispatcher events.Dispatcher
	forwarder  EventForwarder
	logger     *zap.Logger
}

// NewNotificationService creates the service. forwarder may be nil.
func NewNotificationService(dispatcher events.Dispatcher, forwarder EventForwarder, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		forwarder:  forwarder,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload),
	)
	if n.forwarder == nil {
		return nil
	}
	if err := n.forwarder.Forward(ctx, event); err != nil {
		n.logger.Warn("event relay failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
