package main

import (
	"context"
	"log/slog"
)

// RenderSink receives the counter's render calls.
//
// Design rules:
// - Implementations are called only from the engine goroutine, one call at a time.
// - They may perform I/O but must not block for long; the engine waits for them.
// - They must never mutate counter state; to change it, send an Event.
type RenderSink interface {
	RenderCount(value int)
	RenderTickSpeed(value int)
	RenderCountDiff(value int)
	RenderSetToField(text string)
}

// runEffects executes the side effects of a new state, in fixed order:
//
//  1. count render
//  2. tick speed render
//  3. count diff render
//  4. set-to field render (reset only)
//  5. tick controller evaluation
//
// Renders are driven by field projections, so each runs only on a real change.
// The tick controller sees the combined latest (isTicking, tickSpeed) and is
// evaluated at most once per state, even if both changed.
func (e *Engine) runEffects(s CounterState, cause Event) {
	if v, ok := e.count.Next(s); ok {
		e.sink.RenderCount(v)
	}
	if v, ok := e.tickSpeed.Next(s); ok {
		e.sink.RenderTickSpeed(v)
	}
	if v, ok := e.countDiff.Next(s); ok {
		e.sink.RenderCountDiff(v)
	}
	if _, ok := cause.(ResetPressed); ok {
		e.sink.RenderSetToField(e.setToText)
	}

	_, tickingChanged := e.isTicking.Next(s)
	_, speedChanged := e.timerSpeed.Next(s)
	if !tickingChanged && !speedChanged {
		return
	}
	if e.ticks.Update(s.IsTicking, s.Period()) {
		// Zero-delay first trigger of the new source. Queued, not applied inline.
		e.pending.Add(tickFired{Gen: e.ticks.Gen(), At: e.clock.Now()})
	}
}

// ============================================================================
// Sinks
// ============================================================================

// logSink renders by logging. Used when no UI is attached and for debugging.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) RenderCount(value int)     { s.logger.Debug("render count", "value", value) }
func (s logSink) RenderTickSpeed(value int) { s.logger.Debug("render tick speed", "value", value) }
func (s logSink) RenderCountDiff(value int) { s.logger.Debug("render count diff", "value", value) }
func (s logSink) RenderSetToField(text string) {
	s.logger.Debug("render set-to field", "text", text)
}

// multiSink forwards every render call to each sink in order.
type multiSink []RenderSink

func (m multiSink) RenderCount(value int) {
	for _, s := range m {
		s.RenderCount(value)
	}
}

func (m multiSink) RenderTickSpeed(value int) {
	for _, s := range m {
		s.RenderTickSpeed(value)
	}
}

func (m multiSink) RenderCountDiff(value int) {
	for _, s := range m {
		s.RenderCountDiff(value)
	}
}

func (m multiSink) RenderSetToField(text string) {
	for _, s := range m {
		s.RenderSetToField(text)
	}
}

type discardSink struct{}

func (discardSink) RenderCount(int)         {}
func (discardSink) RenderTickSpeed(int)     {}
func (discardSink) RenderCountDiff(int)     {}
func (discardSink) RenderSetToField(string) {}

// runActivityLog logs start/pause and direction changes at info level.
// It reads from the snapshot store like any other consumer.
func runActivityLog(ctx context.Context, store *StateStore, logger *slog.Logger) {
	tickingSrc, cancelTicking := store.Subscribe()
	defer cancelTicking()
	directionSrc, cancelDirection := store.Subscribe()
	defer cancelDirection()

	ticking := ProjectField(tickingSrc, isTickingField)
	direction := ProjectField(directionSrc, countUpField)

	for {
		select {
		case <-ctx.Done():
			return

		case v, ok := <-ticking:
			if !ok {
				logger.Debug("activity log stopping (ticking subscription closed)")
				return
			}
			if v {
				logger.Info("counter ticking", "count", store.Latest().State.Count)
			} else {
				logger.Info("counter paused", "count", store.Latest().State.Count)
			}

		case v, ok := <-direction:
			if !ok {
				logger.Debug("activity log stopping (direction subscription closed)")
				return
			}
			if v {
				logger.Info("counting up")
			} else {
				logger.Info("counting down")
			}
		}
	}
}
