package main

// fieldProjection isolates one CounterState field and reports it only when the
// value differs from the last one it reported. The first observation always
// reports.
type fieldProjection[T comparable] struct {
	field  func(CounterState) T
	last   T
	primed bool
}

func project[T comparable](field func(CounterState) T) *fieldProjection[T] {
	return &fieldProjection[T]{field: field}
}

// Next extracts the field from s. ok is false if it equals the previous emission.
func (p *fieldProjection[T]) Next(s CounterState) (v T, ok bool) {
	v = p.field(s)
	if p.primed && v == p.last {
		return v, false
	}
	p.last = v
	p.primed = true
	return v, true
}

// Last returns the last emitted value and whether anything was emitted yet.
func (p *fieldProjection[T]) Last() (T, bool) {
	return p.last, p.primed
}

func countField(s CounterState) int      { return s.Count }
func isTickingField(s CounterState) bool { return s.IsTicking }
func tickSpeedField(s CounterState) int  { return s.TickSpeed }
func countDiffField(s CounterState) int  { return s.CountDiff }
func countUpField(s CounterState) bool   { return s.CountUp }

// ProjectField derives a deduplicated stream of one field from a snapshot
// stream (for example a StateStore subscription). The output closes when src
// closes.
func ProjectField[T comparable](src <-chan Snapshot, field func(CounterState) T) <-chan T {
	out := make(chan T, cap(src))
	go func() {
		defer close(out)
		p := project(field)
		for snap := range src {
			if v, ok := p.Next(snap.State); ok {
				out <- v
			}
		}
	}()
	return out
}
