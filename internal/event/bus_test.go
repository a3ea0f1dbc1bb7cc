package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_SubscribeAndPublishSync(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []Event
	bus.Subscribe(TurnDelta, func(e Event) {
		got = append(got, e)
	})

	bus.PublishSync(Event{Type: TurnDelta, Data: TurnDeltaData{SessionID: "s1", Content: "hi"}})
	bus.PublishSync(Event{Type: SessionCreated, Data: SessionCreatedData{SessionID: "s1"}})

	assert.Len(t, got, 1)
	assert.Equal(t, TurnDelta, got[0].Type)
	assert.NotEmpty(t, got[0].ID)
}

func TestBus_AssignedIDsSortInPublicationOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var ids []string
	bus.Subscribe(TurnDelta, func(e Event) { ids = append(ids, e.ID) })

	for i := 0; i < 5; i++ {
		bus.PublishSync(Event{Type: TurnDelta})
	}

	assert.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestBus_SubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	bus.SubscribeAll(func(e Event) { count++ })

	bus.PublishSync(Event{Type: TurnStarted})
	bus.PublishSync(Event{Type: TurnDelta})
	bus.PublishSync(Event{Type: TurnCompleted})

	assert.Equal(t, 3, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe(ToolStarted, func(e Event) { count++ })

	bus.PublishSync(Event{Type: ToolStarted})
	unsub()
	bus.PublishSync(Event{Type: ToolStarted})

	assert.Equal(t, 1, count)
}

func TestBus_PublishAsync(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got int
	done := make(chan struct{})
	bus.Subscribe(TurnCompleted, func(e Event) {
		mu.Lock()
		got++
		mu.Unlock()
		close(done)
	})

	bus.Publish(Event{Type: TurnCompleted})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async subscriber was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, got)
}

func TestBus_ClosedBusDropsEvents(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(SessionError, func(e Event) { count++ })
	assert.NoError(t, bus.Close())

	bus.PublishSync(Event{Type: SessionError})
	assert.Equal(t, 0, count)
}
