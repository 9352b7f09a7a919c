package events

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.SubscribeTicketDeleted(func(e TicketDeleted) {
		got = append(got, "first:"+e.ID)
	})
	bus.SubscribeTicketDeleted(func(e TicketDeleted) {
		got = append(got, "second:"+e.ID)
	})

	bus.PublishTicketDeleted(TicketDeleted{ID: "t1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	// Delivery follows registration order.
	if got[0] != "first:t1" || got[1] != "second:t1" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.SubscribeTicketDeleted(func(TicketDeleted) { calls++ })

	bus.PublishTicketDeleted(TicketDeleted{ID: "t1"})
	unsub()
	bus.PublishTicketDeleted(TicketDeleted{ID: "t2"})
	unsub() // second call is harmless

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestPublishWithoutSubscribersIsLost(t *testing.T) {
	bus := NewBus()
	// Nothing mounted: the event is dropped, not queued.
	bus.PublishTicketDeleted(TicketDeleted{ID: "t1"})

	calls := 0
	bus.SubscribeTicketDeleted(func(TicketDeleted) { calls++ })
	if calls != 0 {
		t.Errorf("late subscriber must not see earlier events, got %d calls", calls)
	}
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var unsub func()
	first := 0
	second := 0
	unsub = bus.SubscribeTicketDeleted(func(TicketDeleted) {
		first++
		unsub()
	})
	bus.SubscribeTicketDeleted(func(TicketDeleted) { second++ })

	bus.PublishTicketDeleted(TicketDeleted{ID: "t1"})
	bus.PublishTicketDeleted(TicketDeleted{ID: "t2"})

	if first != 1 {
		t.Errorf("self-unsubscribing handler ran %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("remaining handler ran %d times, want 2", second)
	}
}
