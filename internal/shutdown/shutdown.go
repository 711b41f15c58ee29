// Package shutdown implements the one-shot broadcast signal and
// completion rendezvous used to drain in-flight connections before the
// server process exits.
package shutdown

import "sync"

// Notifier is the listener-owned side of the shutdown signal: a single
// close wakes every handler waiting on an Observer derived from it.
type Notifier struct {
	mu    sync.Mutex
	ch    chan struct{}
	fired bool
}

// NewNotifier returns an armed Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Fire broadcasts the shutdown signal. Safe to call more than once; only
// the first call has an effect.
func (n *Notifier) Fire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fired {
		return
	}
	n.fired = true
	close(n.ch)
}

// NewObserver returns a handler-owned Observer on this Notifier.
func (n *Notifier) NewObserver() *Observer {
	return &Observer{ch: n.ch}
}

// Observer is a handler-owned view of a Notifier with a sticky latch:
// once the signal has been observed once, every subsequent IsShutdown and
// Recv call returns immediately without re-checking the channel. This
// matters for subscribe-mode handlers, which wake on a select for many
// reasons and must not re-evaluate an already-delivered shutdown.
type Observer struct {
	ch      chan struct{}
	latched bool
}

// IsShutdown reports whether the signal has fired, latching the result.
func (o *Observer) IsShutdown() bool {
	if o.latched {
		return true
	}
	select {
	case <-o.ch:
		o.latched = true
		return true
	default:
		return false
	}
}

// Recv returns a channel suitable for use in a select statement: closed
// once the signal has fired (or immediately, if already latched).
func (o *Observer) Recv() <-chan struct{} {
	if o.latched {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return o.ch
}

// MarkReceived latches the observer after a select case on Recv() fires,
// so subsequent calls short-circuit.
func (o *Observer) MarkReceived() {
	o.latched = true
}

// Rendezvous is the completion side: the listener issues one Sender per
// in-flight handler, and Wait blocks until
// every Sender has been released — equivalent to "drop all senders, then
// wait for the receiver to close".
type Rendezvous struct {
	wg sync.WaitGroup
}

// NewRendezvous returns an empty Rendezvous.
func NewRendezvous() *Rendezvous { return &Rendezvous{} }

// Sender is one handler's hold on the rendezvous; Release must be called
// exactly once, typically via defer.
type Sender struct {
	r *Rendezvous
}

// NewSender registers one more outstanding handler.
func (r *Rendezvous) NewSender() *Sender {
	r.wg.Add(1)
	return &Sender{r: r}
}

// Release marks this handler as done.
func (s *Sender) Release() { s.r.wg.Done() }

// Wait blocks until every issued Sender has called Release.
func (r *Rendezvous) Wait() { r.wg.Wait() }
