package broadcast

import "testing"

func TestSubscribePublish(t *testing.T) {
	topic := NewTopic[string](4)

	ch, unsubscribe := topic.Subscribe()
	defer unsubscribe()

	if got := topic.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	topic.Publish("hello")

	select {
	case msg := <-ch:
		if msg != "hello" {
			t.Errorf("received %q, want %q", msg, "hello")
		}
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	topic := NewTopic[int](1)
	ch, unsubscribe := topic.Subscribe()
	unsubscribe()

	if got := topic.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() after unsubscribe = %d, want 0", got)
	}

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	topic := NewTopic[int](1)
	ch, unsubscribe := topic.Subscribe()
	defer unsubscribe()

	topic.Publish(1)
	topic.Publish(2) // buffer holds only 1; the oldest (1) is dropped

	select {
	case msg := <-ch:
		if msg != 2 {
			t.Errorf("received %d, want the newest message (2)", msg)
		}
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestPublishFanOutToAllSubscribers(t *testing.T) {
	topic := NewTopic[int](1)
	chA, unsubA := topic.Subscribe()
	chB, unsubB := topic.Subscribe()
	defer unsubA()
	defer unsubB()

	topic.Publish(7)

	if v := <-chA; v != 7 {
		t.Errorf("subscriber A got %d, want 7", v)
	}
	if v := <-chB; v != 7 {
		t.Errorf("subscriber B got %d, want 7", v)
	}
}
