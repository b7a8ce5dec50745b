package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestInMemoryEventBus_DeliversToSubscribers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventTransactionCreated, shared.EventHandlerFunc{
		HandlerName: "collector",
		Fn: func(event shared.Event) error {
			received = append(received, event)
			return nil
		},
	})
	require.NoError(t, err)

	event := shared.NewTransactionCreatedEvent("tx-1", "acc-1", "LESSON_FEE", "-150000", "350000")
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventTransactionCreated, received[0].EventType())
	assert.Equal(t, "acc-1", received[0].AggregateID())
}

func TestInMemoryEventBus_TypeIsolation(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventAccountArchived, shared.EventHandlerFunc{
		HandlerName: "archived-only",
		Fn: func(event shared.Event) error {
			calls++
			return nil
		},
	}))

	require.NoError(t, bus.Publish(shared.NewTransactionDeletedEvent("tx-1", "acc-1", "0")))
	assert.Equal(t, 0, calls)

	require.NoError(t, bus.Publish(shared.NewAccountArchivedEvent("acc-1", "rec-1", "GRADUATED", false)))
	assert.Equal(t, 1, calls)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(shared.EventHandlerFunc{
		HandlerName: "audit",
		Fn: func(event shared.Event) error {
			seen = append(seen, event.EventType())
			return nil
		},
	}))

	require.NoError(t, bus.Publish(shared.NewTransactionCreatedEvent("tx-1", "acc-1", "BONUS", "50000", "400000")))
	require.NoError(t, bus.Publish(shared.NewKpiAppliedEvent("rs-1", 82.5, 12, 3)))

	assert.Equal(t, []shared.EventType{shared.EventTransactionCreated, shared.EventKpiApplied}, seen)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	secondCalled := false
	require.NoError(t, bus.Subscribe(shared.EventKpiApplied, shared.EventHandlerFunc{
		HandlerName: "failing",
		Fn: func(event shared.Event) error {
			return errors.New("handler failure")
		},
	}))
	require.NoError(t, bus.Subscribe(shared.EventKpiApplied, shared.EventHandlerFunc{
		HandlerName: "surviving",
		Fn: func(event shared.Event) error {
			secondCalled = true
			return nil
		},
	}))

	require.NoError(t, bus.Publish(shared.NewKpiAppliedEvent("rs-1", 60, 5, 0)))
	assert.True(t, secondCalled)

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snapshot.HandlerSuccessRate, 0.001)
}

func TestInMemoryEventBus_NilHandlerAndNilEvent(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventTransactionCreated, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewTransactionCreatedEvent("tx-1", "acc-1", "BONUS", "1", "1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventTransactionCreated, shared.EventHandlerFunc{
		HandlerName: "late",
		Fn:          func(event shared.Event) error { return nil },
	})
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.Subscribe(shared.EventBalanceDriftDetected, shared.EventHandlerFunc{
		HandlerName: "drift-counter",
		Fn: func(event shared.Event) error {
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		},
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewBalanceDriftDetectedEvent("acc-1", "100", "90")))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 10
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Close())
}

func TestEventBusMetrics_Snapshot(t *testing.T) {
	m := NewEventBusMetrics()

	m.RecordPublish(shared.EventTransactionCreated)
	m.RecordPublish(shared.EventTransactionCreated)
	m.RecordHandlerExecution(shared.EventTransactionCreated, 10*time.Millisecond, true)
	m.RecordHandlerExecution(shared.EventTransactionCreated, 30*time.Millisecond, false)

	snapshot := m.Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snapshot.HandlerSuccessRate, 0.001)
	assert.Equal(t, 20*time.Millisecond, snapshot.AverageHandlerDuration)
}
