package kernel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestSignalTwoNotifiesResolveOneWait(t *testing.T) {
	s := NewSignal("dp")
	s.Notify()
	s.Notify()

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if s.Pending() {
		t.Fatalf("Pending() = true after one wait, want false")
	}
	if ok := s.TryWait(); ok {
		t.Fatalf("TryWait() ok = true, want false")
	}
	sent, dropped := s.Stats()
	if sent != 1 || dropped != 1 {
		t.Fatalf("Stats() = %d, %d; want 1, 1", sent, dropped)
	}
}

func TestSignalWaitBlocksUntilNotify(t *testing.T) {
	s := NewSignal("vi")
	done := make(chan error, 1)
	go func() { done <- s.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait() returned %v before Notify", err)
	case <-time.After(20 * time.Millisecond):
	}

	s.Notify()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after Notify")
	}
}

func TestSignalWaitReturnsCancelCause(t *testing.T) {
	s := NewSignal("dp")
	fault := errors.New("coprocessor fault")
	ctx, cancel := context.WithCancelCause(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Wait(ctx) }()
	cancel(fault)

	select {
	case err := <-done:
		if !errors.Is(err, fault) {
			t.Fatalf("Wait() = %v, want %v", err, fault)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
}

func TestSignalPendingBeatsCancelledContext(t *testing.T) {
	s := NewSignal("dp")
	s.Notify()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v, want nil when already notified", err)
	}
}

func TestSignalConcurrentNotifiersNeverBlock(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		notifiers = 4
		perNotify = 10_000
	)
	s := NewSignal("vi")

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(notifiers)
	for i := 0; i < notifiers; i++ {
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perNotify; j++ {
				s.Notify()
			}
		}()
	}
	close(start)
	wg.Wait()

	sent, dropped := s.Stats()
	if sent+dropped != notifiers*perNotify {
		t.Fatalf("sent+dropped = %d, want %d", sent+dropped, notifiers*perNotify)
	}
	if sent != 1 {
		t.Fatalf("sent = %d with no waiter, want 1", sent)
	}
	if !s.TryWait() {
		t.Fatal("TryWait() ok = false, want true")
	}
}

func TestSignalName(t *testing.T) {
	if got := NewSignal("vi").Name(); got != "vi" {
		t.Fatalf("Name() = %q, want %q", got, "vi")
	}
}
