// Package ratelimit implements a per-key sliding window request counter.
//
// A Window admits at most Limit calls per key within any trailing Period.
// Rejected calls are not recorded, so a caller hammering a full window does
// not extend its own lockout.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLimitExceeded is returned by CheckAndRecord when the key's window is full.
var ErrLimitExceeded = errors.New("ratelimit: limit exceeded")

const (
	DefaultLimit   = 3
	DefaultPeriod  = time.Minute
	DefaultMaxKeys = 10000
)

// Options configures a Window. Zero values fall back to the defaults.
type Options struct {
	Limit  int
	Period time.Duration
	// MaxKeys caps the tracked keys. When the table is full, expired keys go
	// first; if none have expired, the least recently seen key is dropped and
	// starts over with an empty window. Size it well above the number of
	// callers active within one Period so that never happens in practice.
	MaxKeys int
	Now     func() time.Time
}

// Window is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	maxKeys int
	now     func() time.Time
	hits    map[string][]time.Time
}

func NewWindow(opts Options) *Window {
	w := &Window{
		limit:   opts.Limit,
		period:  opts.Period,
		maxKeys: opts.MaxKeys,
		now:     opts.Now,
		hits:    make(map[string][]time.Time),
	}
	if w.limit <= 0 {
		w.limit = DefaultLimit
	}
	if w.period <= 0 {
		w.period = DefaultPeriod
	}
	if w.maxKeys <= 0 {
		w.maxKeys = DefaultMaxKeys
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Limit returns the number of calls admitted per period.
func (w *Window) Limit() int { return w.limit }

// Period returns the trailing window length.
func (w *Window) Period() time.Duration { return w.period }

// CheckAndRecord admits the call for key or fails with ErrLimitExceeded.
// The filter, check and append happen under one lock.
func (w *Window) CheckAndRecord(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	recent := w.recentLocked(key, now)
	if len(recent) >= w.limit {
		if len(recent) != len(w.hits[key]) {
			w.hits[key] = recent
		}
		return ErrLimitExceeded
	}
	if _, tracked := w.hits[key]; !tracked && len(w.hits) >= w.maxKeys {
		w.makeRoomLocked(now)
	}
	w.hits[key] = append(recent, now)
	return nil
}

// RetryAfter reports how long key must wait before a call would be admitted.
// Zero means a call would be admitted now.
func (w *Window) RetryAfter(key string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	recent := w.recentLocked(key, now)
	if len(recent) < w.limit {
		return 0
	}
	oldest := recent[len(recent)-w.limit]
	return oldest.Add(w.period).Sub(now)
}

// recentLocked returns the timestamps of key younger than the period.
func (w *Window) recentLocked(key string, now time.Time) []time.Time {
	stored := w.hits[key]
	recent := stored[:0:0]
	for _, t := range stored {
		if now.Sub(t) < w.period {
			recent = append(recent, t)
		}
	}
	return recent
}

// makeRoomLocked drops expired keys and, if the table is still full, the key
// whose most recent call is the oldest, even if that call is still inside
// the window.
func (w *Window) makeRoomLocked(now time.Time) {
	w.pruneLocked(now)
	if len(w.hits) < w.maxKeys {
		return
	}
	var (
		victim string
		latest time.Time
		found  bool
	)
	for key, ts := range w.hits {
		last := ts[len(ts)-1]
		if !found || last.Before(latest) {
			victim, latest, found = key, last, true
		}
	}
	if found {
		delete(w.hits, victim)
	}
}

// Prune removes keys with no call inside the period and returns how many
// keys were dropped.
func (w *Window) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pruneLocked(w.now())
}

func (w *Window) pruneLocked(now time.Time) int {
	removed := 0
	for key, ts := range w.hits {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= w.period {
			delete(w.hits, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// Reset forgets every key.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = make(map[string][]time.Time)
}

// Janitor prunes the window every interval until ctx is done.
func (w *Window) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = w.period
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Prune()
		}
	}
}
