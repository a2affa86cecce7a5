package main

// Reduce is the pure state reducer: a left-to-right shallow merge of p over s.
//
// Rules:
// - Must not perform I/O
// - Must not validate; every value is accepted as-is
// - Must not mutate anything (s is a value, p is only read)
func Reduce(s CounterState, p StatePatch) CounterState {
	if p.Count != nil {
		s.Count = *p.Count
	}
	if p.IsTicking != nil {
		s.IsTicking = *p.IsTicking
	}
	if p.TickSpeed != nil {
		s.TickSpeed = *p.TickSpeed
	}
	if p.CountDiff != nil {
		s.CountDiff = *p.CountDiff
	}
	if p.CountUp != nil {
		s.CountUp = *p.CountUp
	}
	return s
}

// Fold replays patches over initial in order and returns the final state.
// The same inputs always produce the same result.
func Fold(initial CounterState, patches []StatePatch) CounterState {
	s := initial
	for _, p := range patches {
		s = Reduce(s, p)
	}
	return s
}

// advancePatch is the tick feedback command computed from the latest state.
func advancePatch(s CounterState) StatePatch {
	step := s.CountDiff
	if !s.CountUp {
		step = -step
	}
	return StatePatch{Count: ptr(s.Count + step)}
}
