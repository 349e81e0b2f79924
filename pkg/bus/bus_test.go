package bus

import (
	"testing"

	"github.com/google/uuid"
)

func TestPublishAndReceive(t *testing.T) {
	b := New(2)
	defer b.Close()

	id := uuid.New()
	if !b.Publish(id) {
		t.Fatal("expected publish to be accepted")
	}
	if got := <-b.C(); got != id {
		t.Fatalf("received wrong ID: %s", got)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New(1)
	defer b.Close()

	if !b.Publish(uuid.New()) {
		t.Fatal("first publish should be accepted")
	}
	if b.Publish(uuid.New()) {
		t.Fatal("second publish should be dropped, buffer is full")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(1)
	b.Close()

	if b.Publish(uuid.New()) {
		t.Fatal("publish after close must be dropped")
	}
}

func TestCloseDrainsPendingSignals(t *testing.T) {
	b := New(2)
	id := uuid.New()
	b.Publish(id)
	b.Close()

	got, ok := <-b.C()
	if !ok || got != id {
		t.Fatalf("pending signal lost on close: %v %v", got, ok)
	}
	if _, ok := <-b.C(); ok {
		t.Fatal("channel should be closed after drain")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(1)
	b.Close()
	b.Close()
}
