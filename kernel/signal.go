package kernel

import (
	"context"
	"sync/atomic"
)

// Signal is a single-slot notification channel bridging an interrupt source
// and one waiting goroutine.
//
// Notify never blocks: when the slot is already full the notification is
// dropped, so two notifications before a wait resolve exactly one wait.
type Signal struct {
	ch      chan struct{}
	name    string
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewSignal creates an empty signal. name is used in logs only.
func NewSignal(name string) *Signal {
	return &Signal{ch: make(chan struct{}, 1), name: name}
}

// Name returns the name given to NewSignal.
func (s *Signal) Name() string { return s.name }

// Notify fills the slot. It is safe to call from interrupt handlers.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
		s.sent.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Wait blocks until the slot is full and consumes it.
//
// There is no timeout: ctx is only used to abandon the wait on shutdown or
// after a hardware fault, in which case the cancellation cause is returned.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	default:
	}
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// TryWait consumes the slot if it is full.
func (s *Signal) TryWait() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Pending reports whether a notification is waiting.
func (s *Signal) Pending() bool { return len(s.ch) > 0 }

// Stats returns how many notifications were delivered and dropped.
func (s *Signal) Stats() (sent, dropped uint64) {
	return s.sent.Load(), s.dropped.Load()
}
