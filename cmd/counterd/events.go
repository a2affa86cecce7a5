package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Control Events
// ============================================================================
// Events are discrete occurrences emitted by the control surfaces
// (IPC, websocket UI, keyboard). The engine loop consumes them in arrival
// order and maps each one to a StatePatch.
// ============================================================================

// Event is a marker interface for everything the engine loop consumes.
type Event interface {
	eventMarker()
}

// StartPressed starts automatic advancing.
type StartPressed struct{}

func (StartPressed) eventMarker() {}

// PausePressed stops automatic advancing.
type PausePressed struct{}

func (PausePressed) eventMarker() {}

// UpPressed makes automatic advancing count up.
type UpPressed struct{}

func (UpPressed) eventMarker() {}

// DownPressed makes automatic advancing count down.
type DownPressed struct{}

func (DownPressed) eventMarker() {}

// ResetPressed restores the initial state.
type ResetPressed struct{}

func (ResetPressed) eventMarker() {}

// SetToSubmitted sets the count directly.
type SetToSubmitted struct {
	Value int `json:"value"`
}

func (SetToSubmitted) eventMarker() {}

// TickSpeedChanged changes the period between automatic advances (milliseconds).
type TickSpeedChanged struct {
	Value int `json:"value"`
}

func (TickSpeedChanged) eventMarker() {}

// CountDiffChanged changes the amount added/subtracted per advance.
type CountDiffChanged struct {
	Value int `json:"value"`
}

func (CountDiffChanged) eventMarker() {}

// StateQuery asks a control surface for the latest snapshot.
// It is answered by the surface itself and never reaches the engine.
type StateQuery struct{}

func (StateQuery) eventMarker() {}

// tickFired is the feedback event produced by the tick controller.
// Gen identifies the periodic source that fired; stale generations are dropped.
type tickFired struct {
	Gen uint64
	At  time.Time
}

func (tickFired) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	eventTypeStart            = "start"
	eventTypePause            = "pause"
	eventTypeUp               = "up"
	eventTypeDown             = "down"
	eventTypeReset            = "reset"
	eventTypeSetTo            = "set_to"
	eventTypeTickSpeedChanged = "tick_speed_changed"
	eventTypeCountDiffChanged = "count_diff_changed"
	eventTypeGetState         = "get_state"
)

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case eventTypeStart:
		return StartPressed{}, nil
	case eventTypePause:
		return PausePressed{}, nil
	case eventTypeUp:
		return UpPressed{}, nil
	case eventTypeDown:
		return DownPressed{}, nil
	case eventTypeReset:
		return ResetPressed{}, nil
	case eventTypeGetState:
		return StateQuery{}, nil

	case eventTypeSetTo:
		var e SetToSubmitted
		if err := unmarshalData(env, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetToSubmitted: %w", err)
		}
		return e, nil

	case eventTypeTickSpeedChanged:
		var e TickSpeedChanged
		if err := unmarshalData(env, &e); err != nil {
			return nil, fmt.Errorf("unmarshal TickSpeedChanged: %w", err)
		}
		return e, nil

	case eventTypeCountDiffChanged:
		var e CountDiffChanged
		if err := unmarshalData(env, &e); err != nil {
			return nil, fmt.Errorf("unmarshal CountDiffChanged: %w", err)
		}
		return e, nil

	case "":
		return nil, fmt.Errorf("missing event type")

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// unmarshalData decodes the envelope payload. Payload-carrying events require data.
func unmarshalData(env EventEnvelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Type)
	}
	return json.Unmarshal(env.Data, v)
}

// MarshalEvent serializes an Event into a JSON envelope
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch ev := e.(type) {
	case StartPressed:
		env.Type = eventTypeStart
	case PausePressed:
		env.Type = eventTypePause
	case UpPressed:
		env.Type = eventTypeUp
	case DownPressed:
		env.Type = eventTypeDown
	case ResetPressed:
		env.Type = eventTypeReset
	case StateQuery:
		env.Type = eventTypeGetState

	case SetToSubmitted:
		env.Type = eventTypeSetTo
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		env.Data = data

	case TickSpeedChanged:
		env.Type = eventTypeTickSpeedChanged
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		env.Data = data

	case CountDiffChanged:
		env.Type = eventTypeCountDiffChanged
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown event type: %T", e)
	}

	return json.Marshal(env)
}
