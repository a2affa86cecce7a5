package main

import (
	"fmt"
	"strings"
	"time"
)

// CounterState is the canonical counter snapshot.
//
// It is a plain value: every accepted command produces a new CounterState and the
// previous one is never modified. Only the engine goroutine produces new values.
type CounterState struct {
	Count     int  `json:"count"`
	IsTicking bool `json:"is_ticking"`
	TickSpeed int  `json:"tick_speed"` // milliseconds between automatic advances
	CountDiff int  `json:"count_diff"` // magnitude added/subtracted per tick
	CountUp   bool `json:"count_up"`
}

// DefaultInitialState returns the state the counter starts from (and resets to)
// when no configuration overrides it.
func DefaultInitialState() CounterState {
	return CounterState{
		Count:     defaultInitialCount,
		IsTicking: false,
		TickSpeed: defaultTickSpeedMS,
		CountDiff: defaultCountDiff,
		CountUp:   true,
	}
}

// Period returns TickSpeed as a duration. Non-positive speeds are returned as-is.
func (s CounterState) Period() time.Duration {
	return time.Duration(s.TickSpeed) * time.Millisecond
}

// StatePatch is a partial update of CounterState.
// A nil field is left untouched when the patch is folded.
type StatePatch struct {
	Count     *int  `json:"count,omitempty"`
	IsTicking *bool `json:"is_ticking,omitempty"`
	TickSpeed *int  `json:"tick_speed,omitempty"`
	CountDiff *int  `json:"count_diff,omitempty"`
	CountUp   *bool `json:"count_up,omitempty"`
}

// PatchFromState returns a patch that overwrites every field with s.
func PatchFromState(s CounterState) StatePatch {
	return StatePatch{
		Count:     ptr(s.Count),
		IsTicking: ptr(s.IsTicking),
		TickSpeed: ptr(s.TickSpeed),
		CountDiff: ptr(s.CountDiff),
		CountUp:   ptr(s.CountUp),
	}
}

// IsEmpty reports whether the patch names no fields.
func (p StatePatch) IsEmpty() bool {
	return p.Count == nil && p.IsTicking == nil && p.TickSpeed == nil && p.CountDiff == nil && p.CountUp == nil
}

func (p StatePatch) String() string {
	var parts []string
	if p.Count != nil {
		parts = append(parts, fmt.Sprintf("count=%d", *p.Count))
	}
	if p.IsTicking != nil {
		parts = append(parts, fmt.Sprintf("is_ticking=%v", *p.IsTicking))
	}
	if p.TickSpeed != nil {
		parts = append(parts, fmt.Sprintf("tick_speed=%d", *p.TickSpeed))
	}
	if p.CountDiff != nil {
		parts = append(parts, fmt.Sprintf("count_diff=%d", *p.CountDiff))
	}
	if p.CountUp != nil {
		parts = append(parts, fmt.Sprintf("count_up=%v", *p.CountUp))
	}
	return "StatePatch(" + strings.Join(parts, ", ") + ")"
}

// Snapshot is a CounterState as published by the engine.
//
// Seq is 0 for the initial state and grows by exactly one for every folded patch,
// so two readers comparing Seq can tell whether they saw the same history.
type Snapshot struct {
	Seq   uint64       `json:"seq"`
	State CounterState `json:"state"`
	At    time.Time    `json:"at"`
}

func ptr[T any](v T) *T { return &v }
