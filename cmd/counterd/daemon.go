package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/eapache/queue"
)

// ============================================================================
// Counter Engine - reducer-driven event loop
// ============================================================================
//
// Design rules enforced here:
//   - All state changes are StatePatches folded by Reduce; nothing else writes state.
//   - The engine is owned by exactly one goroutine (runDaemon). Adapters only
//     send Events over a channel.
//   - Tick feedback is appended to the same FIFO command queue as control
//     events, never applied out of band and never by a nested call.
//   - Effects (render calls, tick controller evaluation) run after each fold,
//     in a fixed order, on the engine goroutine.
//
// ============================================================================

// EngineConfig holds the engine's fixed parameters.
type EngineConfig struct {
	// Initial is the starting state and the state restored by reset.
	Initial CounterState

	// SetToOffset is added to Initial.Count to compute the set-to field text
	// rendered on reset.
	SetToOffset int

	// SubscriberBuf is the per-subscriber buffer of the snapshot store.
	SubscriberBuf int
}

// Engine folds control events and tick feedback into CounterState snapshots.
type Engine struct {
	logger *slog.Logger
	clock  Clock
	sink   RenderSink
	store  *StateStore

	initial   CounterState
	setToText string

	current Snapshot

	// pending holds Events awaiting reduction (FIFO).
	pending  *queue.Queue
	draining bool

	ticks *tickController

	count     *fieldProjection[int]
	tickSpeed *fieldProjection[int]
	countDiff *fieldProjection[int]
	isTicking *fieldProjection[bool]
	// tickSpeed feeds both a render and the tick controller; each consumer keeps
	// its own dedup history.
	timerSpeed *fieldProjection[int]

	started bool
}

// NewEngine constructs an engine whose store already holds the initial
// snapshot. Call Start on the engine goroutine to run the initial effects.
func NewEngine(cfg EngineConfig, sink RenderSink, clock Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	if sink == nil {
		sink = discardSink{}
	}

	initial := Snapshot{Seq: 0, State: cfg.Initial, At: clock.Now()}

	return &Engine{
		logger:     logger,
		clock:      clock,
		sink:       sink,
		store:      NewStateStore(initial, cfg.SubscriberBuf, logger),
		initial:    cfg.Initial,
		setToText:  strconv.Itoa(cfg.Initial.Count + cfg.SetToOffset),
		current:    initial,
		pending:    queue.New(),
		ticks:      newTickController(clock, logger),
		count:      project(countField),
		tickSpeed:  project(tickSpeedField),
		countDiff:  project(countDiffField),
		isTicking:  project(isTickingField),
		timerSpeed: project(tickSpeedField),
	}
}

// Store returns the snapshot store shared with readers.
func (e *Engine) Store() *StateStore { return e.store }

// State returns the current state. Engine goroutine only.
func (e *Engine) State() CounterState { return e.current.State }

// Snapshot returns the current snapshot. Engine goroutine only.
func (e *Engine) Snapshot() Snapshot { return e.current }

// Start runs the effects for the initial state: the initial renders and, if the
// initial state is ticking, the first timer start. Calling it twice is a no-op.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.runEffects(e.current.State, nil)
	e.drain()
}

// Dispatch appends events to the command queue in order and reduces until the
// queue is empty. Re-entrant calls (from a sink) only enqueue; the outer call
// drains.
func (e *Engine) Dispatch(evs ...Event) {
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		e.pending.Add(ev)
	}
	e.drain()
}

// TickC is the channel of the currently running periodic source, or nil.
// It must be re-read after every Dispatch/HandleTick.
func (e *Engine) TickC() <-chan time.Time { return e.ticks.C() }

// HandleTick feeds a firing of the current periodic source into the queue.
func (e *Engine) HandleTick(at time.Time) {
	e.Dispatch(tickFired{Gen: e.ticks.Gen(), At: at})
}

// Stop cancels the running periodic source.
func (e *Engine) Stop() {
	e.ticks.Stop()
}

func (e *Engine) drain() {
	if e.draining {
		return
	}
	e.draining = true
	defer func() { e.draining = false }()

	for e.pending.Length() > 0 {
		ev := e.pending.Remove().(Event)
		e.process(ev)
	}
}

// process reduces one event. Unknown events and stale ticks are dropped.
func (e *Engine) process(ev Event) {
	var patch StatePatch

	switch ev := ev.(type) {
	case tickFired:
		if !e.ticks.Accepts(ev.Gen) {
			e.logger.Debug("dropping stale tick", "gen", ev.Gen, "current_gen", e.ticks.Gen())
			return
		}
		// Latest state at fire time, not at timer start.
		patch = advancePatch(e.current.State)

	default:
		p, ok := normalize(ev, e.initial)
		if !ok {
			e.logger.Warn("ignoring unsupported event", "event", eventName(ev))
			return
		}
		patch = p
	}

	e.apply(patch, ev)
}

func (e *Engine) apply(patch StatePatch, cause Event) {
	next := Snapshot{
		Seq:   e.current.Seq + 1,
		State: Reduce(e.current.State, patch),
		At:    e.clock.Now(),
	}
	e.current = next
	e.store.Publish(next)

	e.logger.Debug("state updated", "seq", next.Seq, "cause", eventName(cause), "patch", patch.String())

	e.runEffects(next.State, cause)
}

// runDaemon is the engine goroutine:
//   - Receives Events from all control surfaces
//   - Receives firings from the current periodic source
//   - Reduces both through the same queue and runs effects
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(ctx context.Context, e *Engine, events <-chan Event, logger *slog.Logger) {
	e.Start()
	defer e.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			e.Dispatch(ev)

		// Re-evaluated every iteration: a cancelled source's channel is never
		// selected again.
		case at := <-e.TickC():
			e.HandleTick(at)
		}
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case nil:
		return "initial"
	case tickFired:
		return "tick"
	case StartPressed:
		return eventTypeStart
	case PausePressed:
		return eventTypePause
	case UpPressed:
		return eventTypeUp
	case DownPressed:
		return eventTypeDown
	case ResetPressed:
		return eventTypeReset
	case SetToSubmitted:
		return eventTypeSetTo
	case TickSpeedChanged:
		return eventTypeTickSpeedChanged
	case CountDiffChanged:
		return eventTypeCountDiffChanged
	case StateQuery:
		return eventTypeGetState
	default:
		return "unknown"
	}
}
