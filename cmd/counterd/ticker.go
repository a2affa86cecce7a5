package main

import (
	"log/slog"
	"time"
)

// Clock is the time source used by the engine. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is a stoppable periodic trigger.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewTicker wraps time.NewTicker. A non-positive period yields a ticker that
// never fires (time.NewTicker would panic).
func (systemClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		return idleTicker{}
	}
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

// ============================================================================
// Tick controller
// ============================================================================
//
// States:
//   tickIdle              no periodic source
//   tickRunning(period)   a periodic source with the given period
//
// Every change to the combined (isTicking, period) input is evaluated by
// Update. Starting or restarting a source bumps the generation; the caller
// must then enqueue an immediate tickFired carrying that generation (the zero
// delay first trigger). Stopping also bumps the generation, so any tickFired
// still queued from an older source is recognized as stale and discarded.
// ============================================================================

type tickPhase int

const (
	tickIdle tickPhase = iota
	tickRunning
)

func (p tickPhase) String() string {
	if p == tickRunning {
		return "running"
	}
	return "idle"
}

type tickController struct {
	clock  Clock
	logger *slog.Logger

	phase  tickPhase
	period time.Duration
	gen    uint64
	ticker Ticker
}

func newTickController(clock Clock, logger *slog.Logger) *tickController {
	return &tickController{clock: clock, logger: logger}
}

// Update applies the latest isTicking/period pair and reports whether a new
// periodic source was started.
func (tc *tickController) Update(isTicking bool, period time.Duration) (started bool) {
	if !isTicking {
		if tc.phase == tickRunning {
			tc.cancel()
			tc.phase = tickIdle
			tc.logger.Debug("tick controller idle", "gen", tc.gen)
		}
		return false
	}

	if tc.phase == tickRunning && tc.period == period {
		return false
	}

	// Idle -> Running, or Running(p) -> Running(p'): always cancel and restart.
	tc.cancel()
	tc.phase = tickRunning
	tc.period = period
	tc.ticker = tc.clock.NewTicker(period)
	tc.logger.Debug("tick controller running", "period_ms", period.Milliseconds(), "gen", tc.gen)
	return true
}

// cancel stops the current source (if any) and invalidates its pending ticks.
func (tc *tickController) cancel() {
	if tc.ticker != nil {
		tc.ticker.Stop()
		tc.ticker = nil
	}
	tc.gen++
}

// C returns the channel of the current periodic source; nil while idle.
func (tc *tickController) C() <-chan time.Time {
	if tc.ticker == nil {
		return nil
	}
	return tc.ticker.C()
}

// Gen returns the generation of the current source.
func (tc *tickController) Gen() uint64 { return tc.gen }

// Accepts reports whether a tick of generation gen may still advance the count.
func (tc *tickController) Accepts(gen uint64) bool {
	return tc.phase == tickRunning && gen == tc.gen
}

func (tc *tickController) Phase() tickPhase { return tc.phase }

// Stop cancels any running source. Used on teardown.
func (tc *tickController) Stop() {
	if tc.phase == tickRunning {
		tc.cancel()
	}
	tc.phase = tickIdle
}
