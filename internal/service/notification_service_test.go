package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tasi-app/auth-service/internal/events"
)

type mockForwarder struct {
	mu   sync.Mutex
	sent []events.Event
	err  error
}

func (m *mockForwarder) Forward(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

func TestNotificationService_RelaysEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	forwarder := &mockForwarder{}
	NewNotificationService(dispatcher, forwarder, zap.NewNop()).RegisterHandlers()

	for _, et := range events.AllEventTypes {
		assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(et, "acc-1", nil)))
	}
	assert.Len(t, forwarder.sent, len(events.AllEventTypes))
}

func TestNotificationService_SinkFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, &mockForwarder{err: errors.New("broker down")}, zap.New(core)).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventOTPIssued, "+905551234567", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("event relay failed").Len())
}

func TestNotificationService_WithoutForwarder(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, zap.NewNop()).RegisterHandlers()
	assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventLoginFailed, "x", nil)))
}
