package store

import (
	"context"
	"sync"
)

// broadcastCapacity bounds how many not-yet-evicted messages a channel
// retains. A subscriber more than this many messages behind the publisher
// loses the gap and resumes at the oldest still-retained message.
const broadcastCapacity = 1024

// Broadcast is a bounded, multi-producer (in practice: single-producer,
// since only Store.Publish writes), multi-consumer fan-out of byte
// messages, modeled on tokio::sync::broadcast. There is no native Go
// equivalent, so delivery wakeups use the "close the channel, then
// replace it" idiom: every publish closes the current wake channel
// (waking every blocked receiver) and installs a fresh one.
type Broadcast struct {
	mu   sync.Mutex
	buf  [][]byte
	base int64 // sequence number of buf[0]
	next int64 // sequence number the next published message will get
	subs int64
	wake chan struct{}
}

func newBroadcast() *Broadcast {
	return &Broadcast{wake: make(chan struct{})}
}

// publish appends msg and returns the live subscriber count at the time of
// the call. A zero count is not an error; it just means no one is
// listening right now.
func (b *Broadcast) publish(msg []byte) int {
	b.mu.Lock()
	b.buf = append(b.buf, msg)
	b.next++
	if int64(len(b.buf)) > broadcastCapacity {
		drop := int64(len(b.buf)) - broadcastCapacity
		b.buf = b.buf[drop:]
		b.base += drop
	}
	subs := b.subs
	old := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(old)
	return int(subs)
}

// Subscribe returns a Receiver positioned at the current tail; it only
// sees messages published after this call.
func (b *Broadcast) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Receiver{b: b, cursor: b.next}
}

// Receiver is a single subscriber's cursor into a Broadcast.
type Receiver struct {
	b      *Broadcast
	cursor int64
}

// Unsubscribe releases the receiver's slot in the subscriber count. It is
// safe to call at most once; further Recv calls after Unsubscribe are not
// supported.
func (r *Receiver) Unsubscribe() {
	r.b.mu.Lock()
	r.b.subs--
	r.b.mu.Unlock()
}

// Recv blocks until the next message, a lag signal, or ctx cancellation.
//
// When lagged is true, msg is nil and the cursor has been fast-forwarded
// to the oldest still-retained message; the caller should call Recv again
// to continue receiving. ok is false only when ctx is done.
func (r *Receiver) Recv(ctx context.Context) (msg []byte, lagged bool, ok bool) {
	for {
		r.b.mu.Lock()
		if r.cursor < r.b.base {
			r.cursor = r.b.base
			r.b.mu.Unlock()
			return nil, true, true
		}
		if r.cursor < r.b.next {
			msg := r.b.buf[r.cursor-r.b.base]
			r.cursor++
			r.b.mu.Unlock()
			return msg, false, true
		}
		wake := r.b.wake
		r.b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, false, false
		}
	}
}
