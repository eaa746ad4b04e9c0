// Package curve provides pure functions of time used by functional events
// and pitch fitting.
package curve

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// ErrInvalidCurve is returned when curve control points are malformed.
var ErrInvalidCurve = errors.New("invalid curve")

// Function is a pure function of time expressed as a float.
type Function interface {
	Eval(x float64) float64
}

// Constant always returns its value.
type Constant float64

// Eval implements Function.
func (c Constant) Eval(float64) float64 { return float64(c) }

// Linear runs from From at x=0 to To at x=1 and extends beyond.
type Linear struct {
	From float64
	To   float64
}

// Eval implements Function.
func (l Linear) Eval(x float64) float64 { return l.From + (l.To-l.From)*x }

// Func adapts an ordinary function.
type Func func(float64) float64

// Eval implements Function.
func (f Func) Eval(x float64) float64 { return f(x) }

// PiecewiseLinear interpolates linearly between control points and holds
// the end values outside them.
type PiecewiseLinear struct {
	xs []float64
	ys []float64
	pl interp.PiecewiseLinear
}

// NewPiecewiseLinear fits a curve through (xs[i], ys[i]). xs must be
// strictly increasing and hold at least two points.
func NewPiecewiseLinear(xs, ys []float64) (*PiecewiseLinear, error) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return nil, fmt.Errorf("%w: %d xs, %d ys", ErrInvalidCurve, len(xs), len(ys))
	}

	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("%w: x[%d]=%g not above %g", ErrInvalidCurve, i, xs[i], xs[i-1])
		}
	}

	c := &PiecewiseLinear{xs: slices.Clone(xs), ys: slices.Clone(ys)}

	if err := c.pl.Fit(c.xs, c.ys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCurve, err)
	}

	return c, nil
}

// Eval implements Function.
func (c *PiecewiseLinear) Eval(x float64) float64 {
	switch {
	case x <= c.xs[0]:
		return c.ys[0]
	case x >= c.xs[len(c.xs)-1]:
		return c.ys[len(c.ys)-1]
	default:
		return c.pl.Predict(x)
	}
}

// Domain returns the first and last control abscissae.
func (c *PiecewiseLinear) Domain() (lo, hi float64) { return c.xs[0], c.xs[len(c.xs)-1] }

// Bounds returns the smallest and largest control values.
func (c *PiecewiseLinear) Bounds() (lo, hi float64) { return floats.Min(c.ys), floats.Max(c.ys) }

// Sample evaluates f at n evenly spaced points in [from, to].
func Sample(f Function, from, to float64, n int) []float64 {
	if n <= 0 {
		return nil
	}

	if n == 1 {
		return []float64{f.Eval(from)}
	}

	xs := floats.Span(make([]float64, n), from, to)
	for i, x := range xs {
		xs[i] = f.Eval(x)
	}

	return xs
}
