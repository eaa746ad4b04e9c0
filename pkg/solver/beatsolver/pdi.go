package beatsolver

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/timeconv"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// PDI is a position-delta record: the time shift applied to each cover,
// with tempo, time signature and harmony sequences adjusted to match.
//
// A cover's delta moves it and everything after it, so the effective shift
// of a top-level structure is the sum of the deltas of covers at or before
// its original position.
type PDI struct {
	line   *note.Line
	pickup timing.Duration
	deltas map[note.NodeID]timing.Duration

	Tempo *meter.TempoSequence
	TS    *meter.TSSequence
	Track *harmony.Track

	conv *timeconv.Conversion
}

func newPDI(line *note.Line, tempo *meter.TempoSequence, ts *meter.TSSequence, track *harmony.Track, pickup timing.Duration) *PDI {
	return &PDI{
		line:   line,
		pickup: pickup,
		deltas: make(map[note.NodeID]timing.Duration),
		Tempo:  tempo.Clone(),
		TS:     ts.Clone(),
		Track:  track.Clone(),
	}
}

// Clone returns an independent copy sharing only the source line.
func (d *PDI) Clone() *PDI {
	c := &PDI{
		line:   d.line,
		pickup: d.pickup,
		deltas: make(map[note.NodeID]timing.Duration, len(d.deltas)),
		Tempo:  d.Tempo.Clone(),
		TS:     d.TS.Clone(),
		Track:  d.Track.Clone(),
		conv:   d.conv,
	}

	for k, v := range d.deltas {
		c.deltas[k] = v
	}

	return c
}

// Delta returns the shift recorded for cover itself.
func (d *PDI) Delta(cover note.NodeID) timing.Duration {
	if v, ok := d.deltas[cover]; ok {
		return v
	}

	return timing.Zero
}

// IsZero reports whether no cover moves.
func (d *PDI) IsZero() bool {
	for _, v := range d.deltas {
		if !v.IsZero() {
			return false
		}
	}

	return true
}

// Offset returns the total shift of the top-level structure top.
func (d *PDI) Offset(top note.NodeID) timing.Duration {
	pos := d.line.AbsolutePosition(top)
	sum := timing.Zero

	for c, v := range d.deltas {
		if !pos.Less(d.line.AbsolutePosition(c)) {
			sum = sum.Add(v)
		}
	}

	return sum
}

// Position returns where n starts once the shifts are applied.
func (d *PDI) Position(n note.NodeID) timing.Position {
	cover, ok := d.line.Cover(n)
	if !ok {
		return d.line.AbsolutePosition(n)
	}

	return d.line.AbsolutePosition(n).Add(d.Offset(cover))
}

// AlterAt moves cover later by delta. Tempo and signature events at or after
// the cover's current start move with it; the harmonic context holding that
// start is stretched by delta, pushing later contexts forward.
func (d *PDI) AlterAt(cover note.NodeID, delta timing.Duration) error {
	if delta.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDelta, delta)
	}

	if delta.IsZero() {
		return nil
	}

	at := d.Position(cover)

	if err := d.Tempo.ShiftFrom(at, delta); err != nil {
		return fmt.Errorf("shift tempo: %w", err)
	}

	if err := d.TS.ShiftFrom(at, delta); err != nil {
		return fmt.Errorf("shift time signature: %w", err)
	}

	if err := d.Track.Shift(at, delta); err != nil {
		return fmt.Errorf("shift harmony: %w", err)
	}

	d.deltas[cover] = d.Delta(cover).Add(delta)
	d.conv = nil

	return nil
}

// Span returns the end of the shifted line.
func (d *PDI) Span() timing.Position {
	end := timing.Origin

	for _, top := range d.line.TopLevel() {
		e := d.line.AbsolutePosition(top).Add(d.line.Duration(top)).Add(d.Offset(top))
		end = timing.MaxPosition(end, e)
	}

	return end
}

// Timeline returns the time conversion of the adjusted sequences.
func (d *PDI) Timeline() (*timeconv.Conversion, error) {
	if d.conv != nil {
		return d.conv, nil
	}

	conv, err := timeconv.New(d.Tempo, d.TS, d.Span(), d.pickup)
	if err != nil {
		return nil, err
	}

	d.conv = conv

	return conv, nil
}

// Apply returns a copy of the line with every top-level structure moved by
// its offset. Node IDs are preserved. A tie between structures that end up
// apart is broken.
func (d *PDI) Apply() (*note.Line, error) {
	out := d.line.Clone()
	tops := d.line.TopLevel()

	// Later structures move at least as far as earlier ones; shifting from
	// the back keeps pins ordered.
	for i := len(tops) - 1; i >= 0; i-- {
		if err := out.ShiftTopLevel(tops[i], d.Offset(tops[i])); err != nil {
			return nil, fmt.Errorf("shift %d: %w", tops[i], err)
		}
	}

	for _, n := range out.AllNotes() {
		to, ok := out.TiedTo(n)
		if !ok {
			continue
		}

		a, _ := out.Cover(n)
		b, _ := out.Cover(to)

		if a != b && !d.Offset(a).Equal(d.Offset(b)) {
			out.Untie(n)
		}
	}

	return out, nil
}

func (d *PDI) String() string {
	var parts []string

	for _, top := range d.line.TopLevel() {
		if v := d.Delta(top); !v.IsZero() {
			parts = append(parts, fmt.Sprintf("%d+%s", top, v))
		}
	}

	return "PDI{" + strings.Join(parts, " ") + "}"
}
