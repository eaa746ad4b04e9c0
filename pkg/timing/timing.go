// Package timing provides exact whole-note time values.
//
// Position, Duration and Offset are distinct nominal types over big.Rat so the
// compiler rejects mixed arithmetic such as adding a Position to a Duration.
// Values are immutable: every operation allocates a fresh rational.
package timing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Sentinel errors for time arithmetic.
var (
	ErrMixedArithmetic  = errors.New("mixed time arithmetic")
	ErrNegativeDuration = errors.New("negative duration")
	ErrNegativeDots     = errors.New("negative dot count")
	ErrInvalidRational  = errors.New("invalid rational")
)

// Value is any time quantity backed by an exact rational.
type Value interface {
	Rat() *big.Rat
	fmt.Stringer
}

// Position is a point on the whole-note time line.
type Position struct{ r *big.Rat }

// Duration is a span of whole-note time.
type Duration struct{ r *big.Rat }

// Offset is a signed displacement applied to positions.
type Offset struct{ r *big.Rat }

// Ratio is a dimensionless scalar.
type Ratio struct{ r *big.Rat }

// Origin is the zero position.
var Origin = Position{}

// Zero is the empty duration.
var Zero = Duration{}

func ratOf(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}

	return r
}

func copyRat(r *big.Rat) *big.Rat {
	return new(big.Rat).Set(ratOf(r))
}

// Pos builds a Position num/den. It panics on a zero denominator like big.NewRat.
func Pos(num, den int64) Position { return Position{big.NewRat(num, den)} }

// Dur builds a Duration num/den. It panics on a zero denominator like big.NewRat.
func Dur(num, den int64) Duration { return Duration{big.NewRat(num, den)} }

// Off builds an Offset num/den.
func Off(num, den int64) Offset { return Offset{big.NewRat(num, den)} }

// One returns the identity ratio.
func One() Ratio { return NewRatio(1, 1) }

// NewRatio builds a Ratio num/den.
func NewRatio(num, den int64) Ratio { return Ratio{big.NewRat(num, den)} }

// PositionFromRat wraps a copy of r.
func PositionFromRat(r *big.Rat) Position { return Position{copyRat(r)} }

// DurationFromRat wraps a copy of r.
func DurationFromRat(r *big.Rat) Duration { return Duration{copyRat(r)} }

// RatioFromRat wraps a copy of r.
func RatioFromRat(r *big.Rat) Ratio { return Ratio{copyRat(r)} }

// ParseRat parses "n", "n/d" or a decimal such as "0.25".
func ParseRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRational, s)
	}

	return r, nil
}

// ParseDuration parses a non-negative duration such as "3/8".
func ParseDuration(s string) (Duration, error) {
	r, err := ParseRat(s)
	if err != nil {
		return Duration{}, err
	}

	if r.Sign() < 0 {
		return Duration{}, fmt.Errorf("%w: %s", ErrNegativeDuration, r.RatString())
	}

	return Duration{r}, nil
}

// ParsePosition parses a position such as "5/4".
func ParsePosition(s string) (Position, error) {
	r, err := ParseRat(s)
	if err != nil {
		return Position{}, err
	}

	return Position{r}, nil
}

// Rat returns a copy of the underlying rational.
func (p Position) Rat() *big.Rat { return copyRat(p.r) }

// Add returns p + d.
func (p Position) Add(d Duration) Position {
	return Position{new(big.Rat).Add(ratOf(p.r), ratOf(d.r))}
}

// SubDuration returns p - d.
func (p Position) SubDuration(d Duration) Position {
	return Position{new(big.Rat).Sub(ratOf(p.r), ratOf(d.r))}
}

// Sub returns the Duration from q to p.
func (p Position) Sub(q Position) Duration {
	return Duration{new(big.Rat).Sub(ratOf(p.r), ratOf(q.r))}
}

// Shift returns p displaced by o.
func (p Position) Shift(o Offset) Position {
	return Position{new(big.Rat).Add(ratOf(p.r), ratOf(o.r))}
}

// Scale returns p scaled about the origin.
func (p Position) Scale(f Ratio) Position {
	return Position{new(big.Rat).Mul(ratOf(p.r), f.rat())}
}

// Since returns p as a duration measured from the origin.
func (p Position) Since() Duration { return Duration{copyRat(p.r)} }

// Cmp compares p with any time value.
func (p Position) Cmp(v Value) int { return ratOf(p.r).Cmp(v.Rat()) }

// Less reports whether p < q.
func (p Position) Less(q Position) bool { return ratOf(p.r).Cmp(ratOf(q.r)) < 0 }

// Equal reports whether p == q.
func (p Position) Equal(q Position) bool { return ratOf(p.r).Cmp(ratOf(q.r)) == 0 }

// Sign returns -1, 0 or +1.
func (p Position) Sign() int { return ratOf(p.r).Sign() }

// Float64 returns the nearest float64.
func (p Position) Float64() float64 {
	f, _ := ratOf(p.r).Float64()

	return f
}

func (p Position) String() string { return ratOf(p.r).RatString() }

// Rat returns a copy of the underlying rational.
func (d Duration) Rat() *big.Rat { return copyRat(d.r) }

// Add returns d + e.
func (d Duration) Add(e Duration) Duration {
	return Duration{new(big.Rat).Add(ratOf(d.r), ratOf(e.r))}
}

// Sub returns d - e.
func (d Duration) Sub(e Duration) Duration {
	return Duration{new(big.Rat).Sub(ratOf(d.r), ratOf(e.r))}
}

// Scale returns d * f.
func (d Duration) Scale(f Ratio) Duration {
	return Duration{new(big.Rat).Mul(ratOf(d.r), f.rat())}
}

// ScaleInt returns d * k.
func (d Duration) ScaleInt(k int64) Duration {
	return Duration{new(big.Rat).Mul(ratOf(d.r), new(big.Rat).SetInt64(k))}
}

// Div returns the ratio d / e. It panics when e is zero.
func (d Duration) Div(e Duration) Ratio {
	return Ratio{new(big.Rat).Quo(ratOf(d.r), ratOf(e.r))}
}

// Neg returns -d.
func (d Duration) Neg() Duration { return Duration{new(big.Rat).Neg(ratOf(d.r))} }

// AsOffset converts d to a displacement.
func (d Duration) AsOffset() Offset { return Offset{copyRat(d.r)} }

// Cmp compares d with any time value.
func (d Duration) Cmp(v Value) int { return ratOf(d.r).Cmp(v.Rat()) }

// Less reports whether d < e.
func (d Duration) Less(e Duration) bool { return ratOf(d.r).Cmp(ratOf(e.r)) < 0 }

// Equal reports whether d == e.
func (d Duration) Equal(e Duration) bool { return ratOf(d.r).Cmp(ratOf(e.r)) == 0 }

// Sign returns -1, 0 or +1.
func (d Duration) Sign() int { return ratOf(d.r).Sign() }

// IsZero reports whether d is empty.
func (d Duration) IsZero() bool { return ratOf(d.r).Sign() == 0 }

// Float64 returns the nearest float64.
func (d Duration) Float64() float64 {
	f, _ := ratOf(d.r).Float64()

	return f
}

func (d Duration) String() string { return ratOf(d.r).RatString() }

// Rat returns a copy of the underlying rational.
func (o Offset) Rat() *big.Rat { return copyRat(o.r) }

// Add returns o + q.
func (o Offset) Add(q Offset) Offset { return Offset{new(big.Rat).Add(ratOf(o.r), ratOf(q.r))} }

// Neg returns -o.
func (o Offset) Neg() Offset { return Offset{new(big.Rat).Neg(ratOf(o.r))} }

// Cmp compares o with any time value.
func (o Offset) Cmp(v Value) int { return ratOf(o.r).Cmp(v.Rat()) }

func (o Offset) String() string { return ratOf(o.r).RatString() }

func (f Ratio) rat() *big.Rat {
	if f.r == nil {
		return big.NewRat(1, 1)
	}

	return f.r
}

// Rat returns a copy of the underlying rational. The zero Ratio is one.
func (f Ratio) Rat() *big.Rat { return new(big.Rat).Set(f.rat()) }

// Mul returns f * g.
func (f Ratio) Mul(g Ratio) Ratio { return Ratio{new(big.Rat).Mul(f.rat(), g.rat())} }

// Div returns f / g.
func (f Ratio) Div(g Ratio) Ratio { return Ratio{new(big.Rat).Quo(f.rat(), g.rat())} }

// Inverse returns 1 / f. It panics on a zero ratio like big.Rat.Inv.
func (f Ratio) Inverse() Ratio { return Ratio{new(big.Rat).Inv(f.rat())} }

// IsOne reports whether f is the identity.
func (f Ratio) IsOne() bool { return f.rat().Cmp(big.NewRat(1, 1)) == 0 }

// Equal reports whether f == g.
func (f Ratio) Equal(g Ratio) bool { return f.rat().Cmp(g.rat()) == 0 }

func (f Ratio) String() string { return f.rat().RatString() }

// Cmp compares two time values of any kind by numeric value.
func Cmp(a, b Value) int { return a.Rat().Cmp(b.Rat()) }

// MaxPosition returns the later of p and q.
func MaxPosition(p, q Position) Position {
	if p.Less(q) {
		return q
	}

	return p
}

// MaxDuration returns the longer of d and e.
func MaxDuration(d, e Duration) Duration {
	if d.Less(e) {
		return e
	}

	return d
}

// ApplyDots returns d * (2 - 2^-dots).
func ApplyDots(d Duration, dots int) (Duration, error) {
	if dots < 0 {
		return Duration{}, fmt.Errorf("%w: %d", ErrNegativeDots, dots)
	}

	pow := new(big.Int).Lsh(big.NewInt(1), uint(dots))
	f := new(big.Rat).SetFrac(new(big.Int).Sub(new(big.Int).Lsh(pow, 1), big.NewInt(1)), pow)

	return Duration{new(big.Rat).Mul(ratOf(d.r), f)}, nil
}

// Op is an arithmetic operator for Combine.
type Op int

// Supported operators.
const (
	OpAdd Op = iota
	OpSub
	OpMul
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	default:
		return "?"
	}
}

// Combine applies op to two type-erased time values. Combinations that do not
// form a valid time quantity, such as Duration + Position or Duration * Duration,
// return ErrMixedArithmetic.
func Combine(op Op, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Position:
		switch y := b.(type) {
		case Duration:
			switch op {
			case OpAdd:
				return x.Add(y), nil
			case OpSub:
				return x.SubDuration(y), nil
			}
		case Offset:
			switch op {
			case OpAdd:
				return x.Shift(y), nil
			case OpSub:
				return x.Shift(y.Neg()), nil
			}
		case Position:
			if op == OpSub {
				return x.Sub(y), nil
			}
		}
	case Duration:
		switch y := b.(type) {
		case Duration:
			switch op {
			case OpAdd:
				return x.Add(y), nil
			case OpSub:
				return x.Sub(y), nil
			}
		case Ratio:
			if op == OpMul {
				return x.Scale(y), nil
			}
		}
	case Offset:
		if y, ok := b.(Offset); ok {
			switch op {
			case OpAdd:
				return x.Add(y), nil
			case OpSub:
				return x.Add(y.Neg()), nil
			}
		}
	case Ratio:
		switch y := b.(type) {
		case Duration:
			if op == OpMul {
				return y.Scale(x), nil
			}
		case Ratio:
			if op == OpMul {
				return x.Mul(y), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %T %s %T", ErrMixedArithmetic, a, op, b)
}
