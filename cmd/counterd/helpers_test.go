package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manual Clock. Tickers fire only when Advance moves time past
// their next deadline.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		return idleTicker{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock:  c,
		c:      make(chan time.Time, 1),
		period: d,
		next:   c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and fires every due ticker (dropping the firing
// if its channel is still full, like time.Ticker).
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(c.now) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

func (c *fakeClock) Tickers() []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTicker(nil), c.tickers...)
}

type fakeTicker struct {
	clock   *fakeClock
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) Stopped() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.stopped
}

// step advances clk one millisecond at a time and feeds every firing of the
// engine's current source back into it, the way runDaemon does.
func step(e *Engine, clk *fakeClock, total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += time.Millisecond {
		clk.Advance(time.Millisecond)
		for {
			select {
			case at := <-e.TickC():
				e.HandleTick(at)
				continue
			default:
			}
			break
		}
	}
}

// recordingSink records render calls as "kind:value" strings.
type recordingSink struct {
	mu    sync.Mutex
	calls []string

	// onCount, if set, runs after a count render is recorded.
	onCount func(int)
}

func (s *recordingSink) record(format string, args ...any) {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *recordingSink) RenderCount(v int) {
	s.record("count:%d", v)
	if s.onCount != nil {
		s.onCount(v)
	}
}
func (s *recordingSink) RenderTickSpeed(v int)     { s.record("tick_speed:%d", v) }
func (s *recordingSink) RenderCountDiff(v int)     { s.record("count_diff:%d", v) }
func (s *recordingSink) RenderSetToField(t string) { s.record("set_to:%s", t) }

func (s *recordingSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
