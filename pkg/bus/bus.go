// Package bus carries best-effort in-process signals. The email worker uses it
// to nudge the outbox processor right after a row commits; a dropped signal is
// fine because the fallback sweep picks the row up later.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Bus is a bounded fan-in of row IDs. Publish never blocks.
type Bus struct {
	mtx    sync.Mutex
	ch     chan uuid.UUID
	closed bool
}

func New(size int) *Bus {
	if size <= 0 {
		size = 64
	}
	return &Bus{ch: make(chan uuid.UUID, size)}
}

// Publish enqueues the ID and reports whether it was accepted. The signal is
// dropped when the buffer is full or the bus is closed.
func (b *Bus) Publish(id uuid.UUID) bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- id:
		return true
	default:
		return false
	}
}

// C returns the receive side for the worker loop.
func (b *Bus) C() <-chan uuid.UUID {
	return b.ch
}

// Close stops the bus; pending signals remain readable until drained.
func (b *Bus) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
