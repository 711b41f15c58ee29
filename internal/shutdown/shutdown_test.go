package shutdown

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestObserverLatchesAfterFire(t *testing.T) {
	n := NewNotifier()
	obs := n.NewObserver()

	if obs.IsShutdown() {
		t.Fatal("IsShutdown() before Fire: want false")
	}

	n.Fire()

	select {
	case <-obs.Recv():
	case <-time.After(time.Second):
		t.Fatal("Recv() did not unblock after Fire")
	}
	obs.MarkReceived()

	if !obs.IsShutdown() {
		t.Fatal("IsShutdown() after MarkReceived: want true")
	}
}

func TestIsShutdownLatchesWithoutRecv(t *testing.T) {
	n := NewNotifier()
	obs := n.NewObserver()
	n.Fire()

	if !obs.IsShutdown() {
		t.Fatal("IsShutdown() after Fire: want true")
	}
	if !obs.IsShutdown() {
		t.Fatal("IsShutdown() second call: want true")
	}
}

func TestFireIsIdempotent(t *testing.T) {
	n := NewNotifier()
	n.Fire()
	n.Fire() // must not panic on double-close
}

func TestMultipleObserversAllSeeFire(t *testing.T) {
	n := NewNotifier()
	observers := make([]*Observer, 5)
	for i := range observers {
		observers[i] = n.NewObserver()
	}
	n.Fire()
	for i, obs := range observers {
		if !obs.IsShutdown() {
			t.Fatalf("observer %d: IsShutdown() = false after Fire", i)
		}
	}
}

func TestRendezvousWaitsForEverySender(t *testing.T) {
	r := NewRendezvous()
	senders := make([]*Sender, 3)
	for i := range senders {
		senders[i] = r.NewSender()
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	var released int32
	for _, s := range senders {
		select {
		case <-done:
			t.Fatal("Wait() returned before all senders released")
		default:
		}
		s.Release()
		atomic.AddInt32(&released, 1)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after every sender released")
	}
}
