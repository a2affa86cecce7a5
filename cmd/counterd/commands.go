package main

// ==============================
// Command normalization
// ==============================
//
// normalize is the fixed mapping from a control event to the StatePatch it
// stands for. It performs no validation: a negative tick speed or count diff is
// passed through exactly as received.
//
// Tick feedback is not handled here because its patch depends on the state at
// the moment the tick is processed; see Engine.process.
func normalize(ev Event, initial CounterState) (StatePatch, bool) {
	switch e := ev.(type) {
	case StartPressed:
		return StatePatch{IsTicking: ptr(true)}, true
	case PausePressed:
		return StatePatch{IsTicking: ptr(false)}, true
	case UpPressed:
		return StatePatch{CountUp: ptr(true)}, true
	case DownPressed:
		return StatePatch{CountUp: ptr(false)}, true
	case ResetPressed:
		return PatchFromState(initial), true
	case SetToSubmitted:
		return StatePatch{Count: ptr(e.Value)}, true
	case TickSpeedChanged:
		return StatePatch{TickSpeed: ptr(e.Value)}, true
	case CountDiffChanged:
		return StatePatch{CountDiff: ptr(e.Value)}, true
	default:
		return StatePatch{}, false
	}
}
