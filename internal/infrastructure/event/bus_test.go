package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
)

// recordingHandler collects every event it receives
type recordingHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

// panickyHandler panics on every event
type panickyHandler struct{}

func (panickyHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickyHandler) EventTypes() []string                             { return nil }

func newRunningBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus
}

func TestInMemoryEventBus_DeliversByEventType(t *testing.T) {
	bus := newRunningBus(t)

	balanceHandler := newRecordingHandler(credits.EventTypeBalanceChanged)
	bus.Subscribe(balanceHandler)

	userID := uuid.New()
	event := credits.NewBalanceChangedEvent(userID, 1235, -15, credits.TransactionTypeDeduction)
	require.NoError(t, bus.Publish(context.Background(), event))

	received := balanceHandler.received()
	require.Len(t, received, 1)
	assert.Equal(t, event, received[0])
}

func TestInMemoryEventBus_PublishesBatchesInOrder(t *testing.T) {
	bus := newRunningBus(t)

	handler := newRecordingHandler()
	bus.Subscribe(handler, "*")

	userID := uuid.New()
	purchased := credits.NewBalanceChangedEvent(userID, 600, 500, credits.TransactionTypePurchase)
	deducted := credits.NewBalanceChangedEvent(userID, 585, -15, credits.TransactionTypeDeduction)
	require.NoError(t, bus.Publish(context.Background(), purchased, deducted))

	received := handler.received()
	require.Len(t, received, 2)
	assert.Equal(t, purchased, received[0])
	assert.Equal(t, deducted, received[1])
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := newRunningBus(t)

	failing := newRecordingHandler(credits.EventTypeBalanceChanged)
	failing.err = errors.New("subscriber broken")
	healthy := newRecordingHandler(credits.EventTypeBalanceChanged)
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	event := credits.NewBalanceChangedEvent(uuid.New(), 100, -20, credits.TransactionTypeDeduction)
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Len(t, healthy.received(), 1)
}

func TestInMemoryEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := newRunningBus(t)

	bus.Subscribe(panickyHandler{}, credits.EventTypeBalanceChanged)
	healthy := newRecordingHandler(credits.EventTypeBalanceChanged)
	bus.Subscribe(healthy)

	event := credits.NewBalanceChangedEvent(uuid.New(), 100, -20, credits.TransactionTypeDeduction)

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(context.Background(), event))
	})
	assert.Len(t, healthy.received(), 1)
}

func TestInMemoryEventBus_DropsEventsWhenStopped(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler(credits.EventTypeBalanceChanged)
	bus.Subscribe(handler)

	event := credits.NewBalanceChangedEvent(uuid.New(), 100, -20, credits.TransactionTypeDeduction)

	// Never started
	require.NoError(t, bus.Publish(context.Background(), event))
	assert.Empty(t, handler.received())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), event))
	assert.Len(t, handler.received(), 1)

	require.NoError(t, bus.Stop(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), event))
	assert.Len(t, handler.received(), 1)
}

func TestInMemoryEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := newRunningBus(t)

	handler := newRecordingHandler(credits.EventTypeBalanceChanged)
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	event := credits.NewBalanceChangedEvent(uuid.New(), 100, -20, credits.TransactionTypeDeduction)
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Empty(t, handler.received())
}
