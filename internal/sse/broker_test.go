package sse

import (
	"testing"
	"time"
)

func TestBrokerPublishReachesSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe()

	b.PublishSync(SyncUpdate{Inserted: 2, Updated: 1})

	select {
	case msg := <-ch:
		got := string(msg)
		if want := "event: pieces.synced\n"; len(got) < len(want) || got[:len(want)] != want {
			t.Fatalf("unexpected frame: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe()
	b.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestBrokerCloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after broker shutdown")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount after close = %d, want 0", n)
	}
}
