// Package timeconv converts between whole-note positions, wall-clock
// milliseconds and (measure, beat) coordinates.
package timeconv

import (
	"cmp"
	"errors"
	"fmt"
	"math/big"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/orderedmap"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Conversion errors.
var (
	ErrNoOriginEvent = errors.New("sequence has no event at the origin")
	ErrPickup        = errors.New("pickup exceeds first measure")
	ErrNegativeTime  = errors.New("negative time")
	ErrBeatRange     = errors.New("beat outside measure")
	ErrBeforeStart   = errors.New("beat position before score start")
)

var msPerMinute = big.NewRat(60000, 1)

// BP is a measure index and a fractional beat within the measure, both 0-based.
type BP struct {
	Measure int
	Beat    *big.Rat
}

// NewBP creates a beat position on whole beat b.
func NewBP(measure int, beat int64) BP { return BP{Measure: measure, Beat: big.NewRat(beat, 1)} }

// OnBeat reports whether the position falls exactly on a beat.
func (b BP) OnBeat() bool { return b.Beat.IsInt() }

// BeatIndex returns the whole beat at or before the position.
func (b BP) BeatIndex() int { return int(floor(b.Beat)) }

func (b BP) String() string { return fmt.Sprintf("(%d, %s)", b.Measure, b.Beat.RatString()) }

// boundary is a tempo or time signature change with its wall-clock time and
// the tempo and signature in force from it on.
type boundary struct {
	pos   timing.Position
	ms    *big.Rat
	tempo meter.Tempo
	ts    meter.TimeSignature
}

// rate returns milliseconds per whole note.
func (b *boundary) rate() *big.Rat {
	beat := b.ts.BeatDuration().Rat()
	d := new(big.Rat).Mul(beat, b.tempo.EffectiveTo(b.ts.BeatDuration()))

	return d.Quo(msPerMinute, d)
}

// anchor starts a run of measures in one time signature. start is where
// measure number measure would begin, which precedes the origin for a pickup.
type anchor struct {
	measure int
	start   timing.Position
	from    timing.Position
	ts      meter.TimeSignature
}

// Conversion maps between the time coordinates of one score.
type Conversion struct {
	max    timing.Position
	pickup timing.Duration

	tempoByPos *orderedmap.Map[timing.Position, *boundary]
	tempoByMs  *orderedmap.Map[*big.Rat, *boundary]
	tsByPos    *orderedmap.Map[timing.Position, *boundary]
	tsByMs     *orderedmap.Map[*big.Rat, *boundary]

	measures  *orderedmap.Map[int, *anchor]
	anchorsAt *orderedmap.Map[timing.Position, *anchor]
}

func comparePositions(a, b timing.Position) int { return a.Cmp(b) }

func compareRats(a, b *big.Rat) int { return a.Cmp(b) }

// New builds a conversion over the tempo and time signature sequences up to
// max. Both sequences need an event at the origin. A non-zero pickup makes
// measure 0 a partial measure of that length.
func New(tempo *meter.TempoSequence, ts *meter.TSSequence, maxPos timing.Position, pickup timing.Duration) (*Conversion, error) {
	t0, ok := tempo.At(timing.Origin)
	if !ok {
		return nil, fmt.Errorf("%w: tempo", ErrNoOriginEvent)
	}

	s0, ok := ts.At(timing.Origin)
	if !ok {
		return nil, fmt.Errorf("%w: time signature", ErrNoOriginEvent)
	}

	if pickup.Sign() < 0 || s0.Object.MeasureDuration().Less(pickup) {
		return nil, fmt.Errorf("%w: pickup %s, measure %s", ErrPickup, pickup, s0.Object.MeasureDuration())
	}

	c := &Conversion{
		max:        maxPos,
		pickup:     pickup,
		tempoByPos: orderedmap.New[timing.Position, *boundary](comparePositions),
		tempoByMs:  orderedmap.New[*big.Rat, *boundary](compareRats),
		tsByPos:    orderedmap.New[timing.Position, *boundary](comparePositions),
		tsByMs:     orderedmap.New[*big.Rat, *boundary](compareRats),
		measures:   orderedmap.New[int, *anchor](cmp.Compare[int]),
		anchorsAt:  orderedmap.New[timing.Position, *anchor](comparePositions),
	}

	c.walk(tempo, ts, t0.Object, s0.Object)
	c.anchor(ts)

	return c, nil
}

// walk visits tempo and signature changes in time order, accumulating
// wall-clock time at the rate in force over each segment.
func (c *Conversion) walk(tempo *meter.TempoSequence, ts *meter.TSSequence, t0 meter.Tempo, s0 meter.TimeSignature) {
	tempos, sigs := tempo.Events(), ts.Events()
	cur := &boundary{pos: timing.Origin, ms: new(big.Rat), tempo: t0, ts: s0}

	i, j := 0, 0
	for i < len(tempos) || j < len(sigs) {
		var at timing.Position

		switch {
		case j >= len(sigs) || (i < len(tempos) && !sigs[j].Time().Less(tempos[i].Time())):
			at = tempos[i].Time()
		default:
			at = sigs[j].Time()
		}

		ms := new(big.Rat).Mul(at.Sub(cur.pos).Rat(), cur.rate())
		next := &boundary{pos: at, ms: ms.Add(ms, cur.ms), tempo: cur.tempo, ts: cur.ts}

		isTempo := i < len(tempos) && tempos[i].Time().Equal(at)
		isTS := j < len(sigs) && sigs[j].Time().Equal(at)

		if isTempo {
			next.tempo = tempos[i].Object
			i++
		}

		if isTS {
			next.ts = sigs[j].Object
			j++
		}

		// Entries are snapshots: a tempo change that coincides with a
		// signature change must be visible from both maps.
		if isTempo {
			c.tempoByPos.Insert(at, next)
			c.tempoByMs.Insert(next.ms, next)
		}

		if isTS {
			c.tsByPos.Insert(at, next)
			c.tsByMs.Insert(next.ms, next)
		}

		cur = next
	}
}

// anchor numbers the measures of each time signature run. A signature
// change always starts a new measure; the measure it interrupts is cut short.
func (c *Conversion) anchor(ts *meter.TSSequence) {
	var prev *anchor

	for _, e := range ts.Events() {
		a := &anchor{from: e.Time(), start: e.Time(), ts: e.Object}

		if prev == nil {
			if c.pickup.Sign() > 0 {
				a.start = timing.Origin.Add(c.pickup).SubDuration(e.Object.MeasureDuration())
			}
		} else {
			span := e.Time().Sub(prev.start).Div(prev.ts.MeasureDuration()).Rat()
			a.measure = prev.measure + int(ceil(span))
		}

		c.measures.Insert(a.measure, a)
		c.anchorsAt.Insert(a.from, a)
		prev = a
	}
}

// MaxPosition returns the score's end position.
func (c *Conversion) MaxPosition() timing.Position { return c.max }

// Pickup returns the pickup duration.
func (c *Conversion) Pickup() timing.Duration { return c.pickup }

// latest returns whichever of two floor hits is later.
func latest(a, b *boundary) *boundary {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.pos.Less(b.pos):
		return b
	default:
		return a
	}
}

// PositionToActualTime returns the wall-clock time of p in milliseconds.
func (c *Conversion) PositionToActualTime(p timing.Position) (*big.Rat, error) {
	if p.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeTime, p)
	}

	_, bt, _ := c.tempoByPos.Floor(p)
	_, bs, _ := c.tsByPos.Floor(p)
	b := latest(bt, bs)

	ms := new(big.Rat).Mul(p.Sub(b.pos).Rat(), b.rate())

	return ms.Add(ms, b.ms), nil
}

// ActualTimeToPosition returns the position sounding at ms milliseconds.
func (c *Conversion) ActualTimeToPosition(ms *big.Rat) (timing.Position, error) {
	if ms.Sign() < 0 {
		return timing.Origin, fmt.Errorf("%w: %s ms", ErrNegativeTime, ms.RatString())
	}

	_, bt, _ := c.tempoByMs.Floor(ms)
	_, bs, _ := c.tsByMs.Floor(ms)
	b := latest(bt, bs)

	d := new(big.Rat).Sub(ms, b.ms)
	d.Quo(d, b.rate())

	return b.pos.Add(timing.DurationFromRat(d)), nil
}

// PositionToBP returns the measure and fractional beat at p.
func (c *Conversion) PositionToBP(p timing.Position) (BP, error) {
	if p.Sign() < 0 {
		return BP{}, fmt.Errorf("%w: %s", ErrNegativeTime, p)
	}

	_, a, _ := c.anchorsAt.Floor(p)
	md := a.ts.MeasureDuration()

	elapsed := p.Sub(a.start)
	k := floor(elapsed.Div(md).Rat())
	rem := elapsed.Sub(md.ScaleInt(k))

	return BP{Measure: a.measure + int(k), Beat: rem.Div(a.ts.BeatDuration()).Rat()}, nil
}

// BPToPosition returns the position of a measure and beat. The beat must
// lie inside the measure, and inside the part of it that is played.
func (c *Conversion) BPToPosition(bp BP) (timing.Position, error) {
	_, a, ok := c.measures.Floor(bp.Measure)
	if !ok || bp.Beat.Sign() < 0 || bp.Beat.Cmp(big.NewRat(int64(a.ts.Beats()), 1)) >= 0 {
		return timing.Origin, fmt.Errorf("%w: %s", ErrBeatRange, bp)
	}

	offset := a.ts.MeasureDuration().ScaleInt(int64(bp.Measure - a.measure))
	pos := a.start.Add(offset).Add(a.ts.BeatDuration().Scale(timing.RatioFromRat(bp.Beat)))

	if pos.Sign() < 0 {
		return timing.Origin, fmt.Errorf("%w: %s", ErrBeforeStart, bp)
	}

	if _, next, ok := c.anchorsAt.Higher(a.from); ok && !pos.Less(next.from) {
		return timing.Origin, fmt.Errorf("%w: %s falls after the signature change at %s", ErrBeatRange, bp, next.from)
	}

	return pos, nil
}

// NextChange returns the first time signature change after p.
func (c *Conversion) NextChange(p timing.Position) (timing.Position, bool) {
	_, a, ok := c.anchorsAt.Higher(p)
	if !ok {
		return timing.Origin, false
	}

	return a.from, true
}

// BeatTypeAt returns the accent of the beat at p and whether p is on a beat.
func (c *Conversion) BeatTypeAt(p timing.Position) (meter.BeatType, bool) {
	bp, err := c.PositionToBP(p)
	if err != nil || !bp.OnBeat() {
		return meter.Weak, false
	}

	return c.TimeSignatureAt(p).BeatType(bp.BeatIndex()), true
}

// NextBeat returns the first beat strictly after p. A signature change
// always falls on a beat.
func (c *Conversion) NextBeat(p timing.Position) (timing.Position, error) {
	bp, err := c.PositionToBP(p)
	if err != nil {
		return timing.Origin, err
	}

	step := new(big.Rat).Sub(big.NewRat(floor(bp.Beat)+1, 1), bp.Beat)
	next := p.Add(c.BeatDurationAt(p).Scale(timing.RatioFromRat(step)))

	if change, ok := c.NextChange(p); ok && change.Less(next) {
		return change, nil
	}

	return next, nil
}

// TimeSignatureAt returns the signature in force at p.
func (c *Conversion) TimeSignatureAt(p timing.Position) meter.TimeSignature {
	_, a, _ := c.anchorsAt.Floor(p)

	return a.ts
}

// BeatDurationAt returns the beat length in force at p.
func (c *Conversion) BeatDurationAt(p timing.Position) timing.Duration {
	return c.TimeSignatureAt(p).BeatDuration()
}

// Millis converts a rational millisecond value to float.
func Millis(ms *big.Rat) float64 {
	f, _ := ms.Float64()

	return f
}

func floor(r *big.Rat) int64 {
	return new(big.Int).Div(r.Num(), r.Denom()).Int64()
}

func ceil(r *big.Rat) int64 {
	f := floor(r)
	if r.IsInt() {
		return f
	}

	return f + 1
}
