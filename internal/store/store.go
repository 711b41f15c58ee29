// Package store implements the shared in-memory key/value table and
// publish-subscribe registry that connection handlers dispatch commands
// against.
package store

import (
	"sync"
	"time"

	"github.com/adred-codev/redigo/internal/metrics"
)

// entry is one stored value, with an optional absolute expiration instant.
// A zero expiresAt means the key never expires.
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) hasExpiry() bool { return !e.expiresAt.IsZero() }

// Stats is a point-in-time snapshot of store size, used by the metrics
// package.
type Stats struct {
	Keys     int
	Channels int
}

// Store holds the key table, expiration index, and channel registry behind
// a single non-reentrant mutex. Critical sections are map/index updates
// only; broadcast delivery happens outside the lock via Receiver.Recv.
type Store struct {
	mu       sync.Mutex
	entries  map[string]entry
	channels map[string]*Broadcast
	expiry   expirationIndex
	notify   *notifier

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs an empty Store and starts its background eviction worker.
// Callers must call Shutdown to stop the worker.
func New() *Store {
	s := &Store{
		entries:  make(map[string]entry),
		channels: make(map[string]*Broadcast),
		notify:   newNotifier(),
		done:     make(chan struct{}),
	}
	go s.evictionLoop()
	return s
}

// Shutdown stops the background eviction worker. It does not clear stored
// data; the Store is not usable afterward.
func (s *Store) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.notify.Notify()
	})
}

// Get returns the value for key, filtering out entries that have expired
// even if the eviction worker has not yet caught up with them.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.hasExpiry() && !time.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores value under key. hasTTL distinguishes "no expiration option
// was given" from ttl == 0, which means "expire immediately" per EX 0 /
// PX 0. The eviction worker is only woken when the new deadline becomes
// the earliest pending one; its existing wait already covers every later
// deadline.
func (s *Store) Set(key string, value []byte, ttl time.Duration, hasTTL bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok && old.hasExpiry() {
		s.expiry.remove(old.expiresAt, key)
	}

	e := entry{data: value}
	wake := false
	if hasTTL {
		e.expiresAt = time.Now().Add(ttl)
		if earliest, ok := s.expiry.earliest(); !ok || e.expiresAt.Before(earliest) {
			wake = true
		}
		s.expiry.insert(e.expiresAt, key)
	}
	s.entries[key] = e
	metrics.StoreKeys.Set(float64(len(s.entries)))

	if wake {
		s.notify.Notify()
	}
}

// Del removes the given keys and returns how many existed.
func (s *Store) Del(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		delete(s.entries, key)
		if e.hasExpiry() {
			s.expiry.remove(e.expiresAt, key)
		}
		n++
	}
	metrics.StoreKeys.Set(float64(len(s.entries)))
	return n
}

// Publish broadcasts msg to channel and returns the number of live
// subscribers. Publishing to a channel with no subscribers, or one that
// has never been subscribed to, returns 0 rather than an error.
func (s *Store) Publish(channel string, msg []byte) int {
	s.mu.Lock()
	b, ok := s.channels[channel]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return b.publish(msg)
}

// Subscribe returns a Receiver on channel, lazily creating the channel's
// broadcast on first use. Channels are never removed for the lifetime of
// the Store.
func (s *Store) Subscribe(channel string) *Receiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.channels[channel]
	if !ok {
		b = newBroadcast()
		s.channels[channel] = b
		metrics.StoreChannels.Set(float64(len(s.channels)))
	}
	return b.Subscribe()
}

// Stats reports the current key and channel counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Keys: len(s.entries), Channels: len(s.channels)}
}

// evictionLoop wakes whenever Set installs a new earliest deadline (or
// Shutdown fires), reaps every key whose deadline has passed, and sleeps
// until the next one.
func (s *Store) evictionLoop() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		s.mu.Lock()
		now := time.Now()
		due := s.expiry.removeDue(now)
		for _, key := range due {
			delete(s.entries, key)
		}
		next, hasNext := s.expiry.earliest()
		keyCount := len(s.entries)
		s.mu.Unlock()

		if len(due) > 0 {
			metrics.KeysExpiredTotal.Add(float64(len(due)))
			metrics.StoreKeys.Set(float64(keyCount))
		}

		if hasNext {
			d := next.Sub(now)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		}

		wakeCh := s.notify.C()
		select {
		case <-s.done:
			return
		case <-wakeCh:
			s.notify.Drain()
			if hasNext && !timer.Stop() {
				<-timer.C
			}
		case <-timerC(hasNext, timer):
		}
	}
}

// timerC returns timer's channel only when a deadline is actually armed;
// otherwise it returns nil, which blocks forever in a select and lets the
// done/wake cases decide.
func timerC(armed bool, timer *time.Timer) <-chan time.Time {
	if !armed {
		return nil
	}
	return timer.C
}
