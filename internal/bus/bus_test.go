package bus

import "testing"

func TestPublishFansOutToKindSubscribers(t *testing.T) {
	b := New()
	conflicts := b.Subscribe(EventConflict)
	alerts := b.Subscribe(EventAlert)

	b.Publish(Event{Kind: EventConflict, Message: "washed out"})

	select {
	case ev := <-conflicts:
		if ev.Message != "washed out" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("conflict subscriber should have received the event")
	}
	select {
	case ev := <-alerts:
		t.Fatalf("alert subscriber must not receive conflict events, got %+v", ev)
	default:
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := New()
	a := b.Subscribe(EventStateApplied)
	c := b.Subscribe(EventStateApplied)

	b.Publish(Event{Kind: EventStateApplied})

	for i, ch := range []<-chan Event{a, c} {
		select {
		case <-ch:
		default:
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestTapReceivesEveryKind(t *testing.T) {
	b := New()
	b.Publish(Event{Kind: EventConflict})
	b.Publish(Event{Kind: EventAlert})
	b.Publish(Event{Kind: EventSecuredHDR})

	for i := 0; i < 3; i++ {
		select {
		case <-b.Tap():
		default:
			t.Fatalf("tap missing event %d", i)
		}
	}
}

func TestPublishDropsOnFullSubscriber(t *testing.T) {
	b := New()
	ch := b.Subscribe(EventAlert)

	// Fill the buffer and one more; the overflow event is dropped, not blocked.
	for i := 0; i < subscriberBufSize+1; i++ {
		b.Publish(Event{Kind: EventAlert})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBufSize {
		t.Fatalf("expected %d buffered events, got %d", subscriberBufSize, received)
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := New()
	b.Publish(Event{Kind: EventMinimalLighting, Message: "no one listening"})
}
