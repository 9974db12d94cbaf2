package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/service"
)

// ErrRelayFull is returned when the relay queue cannot take another event.
var ErrRelayFull = errors.New("event relay queue full")

// ErrRelayStopped is returned for events forwarded after Stop.
var ErrRelayStopped = errors.New("event relay stopped")

const defaultRelayBuffer = 256

// StartNotificationWorker registers the event relay handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// EventRelay moves events off the request path and hands them to a sink in the background.
type EventRelay struct {
	sink   events.Sink
	logger *zap.Logger
	queue  chan events.Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewEventRelay creates a relay with the given queue size.
func NewEventRelay(sink events.Sink, logger *zap.Logger, buffer int) *EventRelay {
	if buffer <= 0 {
		buffer = defaultRelayBuffer
	}
	return &EventRelay{
		sink:   sink,
		logger: logger,
		queue:  make(chan events.Event, buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the drain loop.
func (r *EventRelay) Start() {
	go r.run()
}

func (r *EventRelay) run() {
	defer close(r.done)
	for event := range r.queue {
		if err := r.sink.Send(context.Background(), event); err != nil {
			r.logger.Warn("event delivery failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

// Forward enqueues the event without blocking.
func (r *EventRelay) Forward(_ context.Context, event events.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRelayStopped
	}
	select {
	case r.queue <- event:
		return nil
	default:
		return ErrRelayFull
	}
}

// Stop closes the queue and waits for pending events to drain or ctx to end.
func (r *EventRelay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
