// Package memlimit provides byte-accounting with a hard ceiling. Components
// that accumulate caller-visible buffers (response bodies, header lists,
// captured output) reserve bytes against a shared Tracker and release them
// when the buffers are freed or ownership moves to the caller.
package memlimit

import (
	"errors"
	"sync/atomic"
)

// ErrLimit is returned by Reserve and Grow when the reservation would push
// usage past the configured ceiling.
var ErrLimit = errors.New("memlimit: allocation limit exceeded")

// Tracker accounts reserved bytes against an optional hard ceiling.
// A zero or negative limit disables the ceiling but usage and peak are still
// tracked. Tracker is safe for concurrent use.
type Tracker struct {
	used  atomic.Int64
	peak  atomic.Int64
	limit int64
}

// New returns a Tracker with the given byte ceiling. limit <= 0 means
// unlimited.
func New(limit int64) *Tracker {
	return &Tracker{limit: limit}
}

// Reserve accounts n bytes of usage. It fails with ErrLimit if the ceiling
// would be exceeded, leaving usage unchanged. Negative n is ignored.
func (t *Tracker) Reserve(n int64) error {
	if t == nil || n <= 0 {
		return nil
	}
	for {
		cur := t.used.Load()
		next := cur + n
		if t.limit > 0 && next > t.limit {
			return ErrLimit
		}
		if t.used.CompareAndSwap(cur, next) {
			t.bumpPeak(next)
			return nil
		}
	}
}

// Release returns n bytes of usage. Usage saturates at zero: releasing more
// than was reserved is an accounting error on the caller's side, but must not
// underflow the counter. Negative n is ignored.
func (t *Tracker) Release(n int64) {
	if t == nil || n <= 0 {
		return
	}
	for {
		cur := t.used.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if t.used.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Grow adjusts a reservation from old to new bytes, the reallocation analog.
// Shrinking always succeeds; growing is subject to the ceiling.
func (t *Tracker) Grow(old, new int64) error {
	if t == nil {
		return nil
	}
	if new <= old {
		t.Release(old - new)
		return nil
	}
	return t.Reserve(new - old)
}

// Used returns the current reserved byte count.
func (t *Tracker) Used() int64 {
	if t == nil {
		return 0
	}
	return t.used.Load()
}

// Peak returns the highest usage observed. Peak is monotonic non-decreasing.
func (t *Tracker) Peak() int64 {
	if t == nil {
		return 0
	}
	return t.peak.Load()
}

// Limit returns the configured ceiling, or zero when unlimited.
func (t *Tracker) Limit() int64 {
	if t == nil {
		return 0
	}
	if t.limit < 0 {
		return 0
	}
	return t.limit
}

func (t *Tracker) bumpPeak(n int64) {
	for {
		cur := t.peak.Load()
		if n <= cur || t.peak.CompareAndSwap(cur, n) {
			return
		}
	}
}
