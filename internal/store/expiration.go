package store

import (
	"sort"
	"time"
)

// expirationPair is one (expires_at, key) entry in the expiration index.
type expirationPair struct {
	at  time.Time
	key string
}

// expirationIndex is an ordered set of (instant, key) pairs, sorted first
// by instant then by key, used by the eviction worker to find the
// earliest-expiring key. Insert finds its position by binary search in
// O(log n); remove finds its pair by a linear scan in O(n); both are O(n)
// to shift the backing slice, which is fine at the key-count scale this
// store targets.
type expirationIndex struct {
	pairs []expirationPair
}

func (idx *expirationIndex) less(a, b expirationPair) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.key < b.key
}

func (idx *expirationIndex) insert(at time.Time, key string) {
	p := expirationPair{at: at, key: key}
	i := sort.Search(len(idx.pairs), func(i int) bool { return idx.less(p, idx.pairs[i]) || idx.pairs[i] == p })
	idx.pairs = append(idx.pairs, expirationPair{})
	copy(idx.pairs[i+1:], idx.pairs[i:])
	idx.pairs[i] = p
}

func (idx *expirationIndex) remove(at time.Time, key string) {
	p := expirationPair{at: at, key: key}
	for i, q := range idx.pairs {
		if q == p {
			idx.pairs = append(idx.pairs[:i], idx.pairs[i+1:]...)
			return
		}
	}
}

// earliest returns the instant of the first remaining pair, if any.
func (idx *expirationIndex) earliest() (time.Time, bool) {
	if len(idx.pairs) == 0 {
		return time.Time{}, false
	}
	return idx.pairs[0].at, true
}

// removeDue removes and returns the keys of every pair with at <= now.
func (idx *expirationIndex) removeDue(now time.Time) []string {
	var due []string
	i := 0
	for i < len(idx.pairs) && !idx.pairs[i].at.After(now) {
		due = append(due, idx.pairs[i].key)
		i++
	}
	if i > 0 {
		idx.pairs = idx.pairs[i:]
	}
	return due
}
