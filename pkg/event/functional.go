package event

import (
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/curve"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Level is the object of a functional event: either a constant or a curve
// spanning the gap to the next event.
type Level interface {
	// Eval returns the level at fraction u ∈ [0, 1] of the event's span.
	Eval(u float64) float64
	fmt.Stringer
}

// ConstantLevel holds one value for the whole span.
type ConstantLevel float64

// Eval implements Level.
func (c ConstantLevel) Eval(float64) float64 { return float64(c) }

func (c ConstantLevel) String() string { return fmt.Sprintf("%g", float64(c)) }

// CurveLevel varies along its span. The curve sees the span mapped onto [0, 1].
type CurveLevel struct {
	Curve curve.Function
}

// Eval implements Level.
func (c CurveLevel) Eval(u float64) float64 { return c.Curve.Eval(u) }

func (c CurveLevel) String() string { return "curve" }

// Functional is a sequence of levels, such as dynamics.
type Functional struct {
	*Sequence[Level]
}

// NewFunctional builds a functional sequence.
func NewFunctional(events ...*Event[Level]) (*Functional, error) {
	s, err := NewSequence(events...)
	if err != nil {
		return nil, err
	}

	return &Functional{Sequence: s}, nil
}

// ValueAt evaluates the sequence at t. A curve event is interpolated between
// its own start and its successor's start; the last curve event holds its
// starting value.
func (f *Functional) ValueAt(t timing.Position) (float64, bool) {
	e, ok := f.Floor(t)
	if !ok {
		return 0, false
	}

	next, ok := f.Successor(e)
	if !ok {
		return e.Object.Eval(0), true
	}

	span := next.Time().Sub(e.Time())
	u := t.Sub(e.Time()).Div(span)

	return e.Object.Eval(ratioFloat(u)), true
}

// Clone returns an independent copy. Levels are immutable and shared.
func (f *Functional) Clone() *Functional {
	return &Functional{Sequence: f.Sequence.Clone()}
}

func ratioFloat(r timing.Ratio) float64 {
	v, _ := r.Rat().Float64()

	return v
}
