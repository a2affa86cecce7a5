package main

import (
	"log/slog"
	"sync"
)

// StateStore caches the latest Snapshot and fans it out to subscribers.
//
// The engine goroutine is the single producer (Publish). Any goroutine may read
// Latest or Subscribe; a new subscriber receives the cached snapshot first, so
// late consumers never wait for the next command and never fold by themselves.
//
// Delivery is latest-wins: when a subscriber's buffer is full, its oldest
// queued snapshot is discarded to make room for the new one. Subscribers may
// therefore skip Seq values but always end on the latest snapshot, and their
// channel stays open until they cancel.
type StateStore struct {
	logger *slog.Logger

	mu     sync.Mutex
	latest Snapshot
	subs   map[chan Snapshot]struct{}
	subBuf int
}

// NewStateStore returns a store holding initial. subBuf <= 0 uses a default.
func NewStateStore(initial Snapshot, subBuf int, logger *slog.Logger) *StateStore {
	if subBuf <= 0 {
		subBuf = defaultSubscriberBuf
	}
	return &StateStore{
		logger: logger,
		latest: initial,
		subs:   make(map[chan Snapshot]struct{}),
		subBuf: subBuf,
	}
}

// Latest returns the most recently published snapshot.
func (st *StateStore) Latest() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.latest
}

// Publish replaces the cached snapshot and delivers it to all subscribers.
// Intended to be called only by the engine goroutine.
func (st *StateStore) Publish(s Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.latest = s
	for ch := range st.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Full: discard the oldest queued snapshot. Publish is the only sender
		// and holds mu, so the retry below finds room.
		select {
		case stale := <-ch:
			st.logger.Debug("state subscriber behind, skipping snapshot", "skipped_seq", stale.Seq, "seq", s.Seq)
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned channel already holds the
// latest snapshot. Call cancel to unsubscribe; it is safe to call more than once.
func (st *StateStore) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, st.subBuf)

	st.mu.Lock()
	ch <- st.latest
	st.subs[ch] = struct{}{}
	st.mu.Unlock()

	cancel := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if _, ok := st.subs[ch]; ok {
			delete(st.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (st *StateStore) Subscribers() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}
