package note

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

var (
	quarter = timing.Dur(1, 4)
	eighth  = timing.Dur(1, 8)
)

func spec(p string, base timing.Duration) Spec {
	if p == "" {
		return Spec{Base: base}
	}

	pp := pitch.MustPitch(p)

	return Spec{Pitch: &pp, Base: base}
}

func mustAdd(t *testing.T, l *Line, parent NodeID, s Spec) NodeID {
	t.Helper()

	id, err := l.AddNote(parent, s)
	require.NoError(t, err)

	return id
}

// TestTupletRescale verifies three quarters in a 2 × 1/8 tuplet become twelfths.
func TestTupletRescale(t *testing.T) {
	t.Parallel()

	l := NewLine()
	tup, err := l.AddTuplet(Root, eighth, 2)
	require.NoError(t, err)

	ids := []NodeID{
		mustAdd(t, l, tup, spec("C:4", quarter)),
		mustAdd(t, l, tup, spec("D:4", quarter)),
		mustAdd(t, l, tup, spec("E:4", quarter)),
	}

	for i, id := range ids {
		assert.Equal(t, "1/12", l.Duration(id).String())
		assert.True(t, l.RelativePosition(id).Equal(timing.Pos(int64(i), 12)))
		assert.Equal(t, "1/3", l.Factor(id).String())
	}

	assert.Equal(t, "1/4", l.Duration(tup).String())
	assert.Equal(t, "1/4", l.TotalDuration().String())
}

// TestTuplet_IncrementalRescale verifies each addition rescales earlier children.
func TestTuplet_IncrementalRescale(t *testing.T) {
	t.Parallel()

	l := NewLine()
	tup, err := l.AddTuplet(Root, eighth, 2)
	require.NoError(t, err)

	a := mustAdd(t, l, tup, spec("C:4", eighth))
	assert.Equal(t, "1/4", l.Duration(a).String())

	b := mustAdd(t, l, tup, spec("D:4", eighth))
	assert.Equal(t, "1/8", l.Duration(a).String())
	assert.Equal(t, "1/8", l.RelativePosition(b).String())

	c := mustAdd(t, l, tup, spec("E:4", eighth))
	assert.Equal(t, "1/12", l.Duration(c).String())
	assert.Equal(t, "1/6", l.RelativePosition(c).String())
	assert.Equal(t, "1/4", l.Duration(tup).String())
}

// TestNestedTuplet verifies a tuplet inside a tuplet scales its declared unit.
func TestNestedTuplet(t *testing.T) {
	t.Parallel()

	l := NewLine()
	outer, err := l.AddTuplet(Root, quarter, 2)
	require.NoError(t, err)

	mustAdd(t, l, outer, spec("C:4", quarter))
	mustAdd(t, l, outer, spec("D:4", quarter))

	inner, err := l.AddTuplet(outer, eighth, 2)
	require.NoError(t, err)

	x := mustAdd(t, l, inner, spec("E:4", eighth))
	mustAdd(t, l, inner, spec("F:4", eighth))
	mustAdd(t, l, inner, spec("G:4", eighth))

	// Outer children sum to 3/4 unscaled and are squeezed into 1/2.
	assert.Equal(t, "1/2", l.Duration(outer).String())
	assert.Equal(t, "1/6", l.Duration(inner).String())
	assert.Equal(t, "1/18", l.Duration(x).String())
	assert.Equal(t, "1/3", l.RelativePosition(inner).String())
}

// TestBeamNesting verifies nested beams halve their contents.
func TestBeamNesting(t *testing.T) {
	t.Parallel()

	l := NewLine()
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	mustAdd(t, l, beam, spec("C:4", eighth))
	mustAdd(t, l, beam, spec("D:4", eighth))

	inner, err := l.AddBeam(beam)
	require.NoError(t, err)

	e := mustAdd(t, l, inner, spec("E:4", eighth))
	f := mustAdd(t, l, inner, spec("F:4", eighth))

	assert.Equal(t, "1/16", l.Duration(e).String())
	assert.Equal(t, "1/16", l.RelativePosition(f).String())
	assert.Equal(t, "1/4", l.RelativePosition(inner).String())
	assert.Equal(t, "3/8", l.Duration(beam).String())
	assert.Equal(t, "5/16", l.AbsolutePosition(f).String())
}

// TestBeam_RejectsLongNotes verifies quarter notes cannot be beamed.
func TestBeam_RejectsLongNotes(t *testing.T) {
	t.Parallel()

	l := NewLine()
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	_, err = l.AddNote(beam, spec("C:4", quarter))
	require.ErrorIs(t, err, ErrNotBeamable)
}

// TestLine_PinAndAppend verifies pinned offsets and appended positions.
func TestLine_PinAndAppend(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))
	b := mustAdd(t, l, Root, Spec{Pitch: ptr(pitch.MustPitch("D:4")), Base: quarter, Dots: 1})
	c := mustAdd(t, l, Root, spec("", quarter))

	assert.Equal(t, "0", l.AbsolutePosition(a).String())
	assert.Equal(t, "1/4", l.AbsolutePosition(b).String())
	assert.Equal(t, "3/8", l.Duration(b).String())
	assert.Equal(t, "5/8", l.AbsolutePosition(c).String())
	assert.True(t, l.IsRest(c))

	d, err := l.NewNote(spec("G:4", eighth))
	require.NoError(t, err)
	require.NoError(t, l.Pin(Root, d, timing.Pos(2, 1)))

	assert.Equal(t, "17/8", l.TotalDuration().String())
	assert.Equal(t, []NodeID{a, b, c, d}, l.AllNotes())

	e, err := l.NewNote(spec("F:4", eighth))
	require.NoError(t, err)
	require.NoError(t, l.Pin(Root, e, timing.Pos(1, 1)))
	assert.Equal(t, []NodeID{a, b, c, e, d}, l.AllNotes())
}

func ptr[T any](v T) *T { return &v }

// TestContractViolations verifies structural errors.
func TestContractViolations(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))

	require.ErrorIs(t, l.Append(Root, a), ErrHasParent)

	_, err := l.NewNote(spec("C:4", timing.Dur(-1, 4)))
	require.ErrorIs(t, err, ErrNonPositive)

	_, err = l.NewTuplet(eighth, 0)
	require.ErrorIs(t, err, ErrInvalidTuplet)

	_, err = l.AddNote(a, spec("D:4", quarter))
	require.ErrorIs(t, err, ErrNotCollective)

	beam := l.NewBeam()
	inner, err := l.AddBeam(beam)
	require.NoError(t, err)

	require.NoError(t, l.Unpin(beam))
	require.ErrorIs(t, l.Append(inner, beam), ErrCycle)

	p := l.NewBeam()
	require.ErrorIs(t, l.Pin(p, l.NewBeam(), timing.Origin), ErrNotLine)
}

// TestTies verifies tie validation and breaking on insertion.
func TestTies(t *testing.T) {
	t.Parallel()

	l := NewLine()
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	a := mustAdd(t, l, beam, spec("C:4", eighth))
	b := mustAdd(t, l, beam, spec("C:4", eighth))
	c := mustAdd(t, l, beam, spec("D:4", eighth))

	require.NoError(t, l.Tie(a, b))
	require.ErrorIs(t, l.Tie(b, c), ErrTie)
	require.ErrorIs(t, l.Tie(a, c), ErrTie)

	to, ok := l.TiedTo(a)
	require.True(t, ok)
	assert.Equal(t, b, to)

	x, err := l.NewNote(spec("E:4", eighth))
	require.NoError(t, err)
	require.NoError(t, l.Insert(beam, 1, x))

	_, ok = l.TiedTo(a)
	assert.False(t, ok)

	_, ok = l.TiedFrom(b)
	assert.False(t, ok)
}

// TestTies_SurviveAppendElsewhere verifies unrelated edits keep ties.
func TestTies_SurviveAppendElsewhere(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))
	b := mustAdd(t, l, Root, spec("C:4", quarter))
	require.NoError(t, l.Tie(a, b))

	mustAdd(t, l, Root, spec("E:4", quarter))

	to, ok := l.TiedTo(a)
	require.True(t, ok)
	assert.Equal(t, b, to)
}

// TestReverse_FullyTied verifies a tied chain is re-linked in reverse order.
func TestReverse_FullyTied(t *testing.T) {
	t.Parallel()

	l := NewLine()
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	a := mustAdd(t, l, beam, spec("C:4", eighth))
	b := mustAdd(t, l, beam, spec("C:4", eighth))
	c := mustAdd(t, l, beam, spec("C:4", timing.Dur(1, 16)))

	require.NoError(t, l.Tie(a, b))
	require.NoError(t, l.Tie(b, c))

	require.NoError(t, l.Reverse(Root))

	assert.Equal(t, []NodeID{c, b, a}, l.AllNotes())
	assert.Equal(t, "0", l.AbsolutePosition(c).String())
	assert.Equal(t, "1/16", l.AbsolutePosition(b).String())
	assert.Equal(t, "3/16", l.AbsolutePosition(a).String())

	to, ok := l.TiedTo(c)
	require.True(t, ok)
	assert.Equal(t, b, to)

	to, ok = l.TiedTo(b)
	require.True(t, ok)
	assert.Equal(t, a, to)

	_, ok = l.TiedTo(a)
	assert.False(t, ok)
}

// TestReverse_LinePins verifies pinned gaps are mirrored.
func TestReverse_LinePins(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))

	b, err := l.NewNote(spec("D:4", timing.Dur(1, 2)))
	require.NoError(t, err)
	require.NoError(t, l.Pin(Root, b, timing.Pos(1, 2)))

	require.NoError(t, l.Reverse(Root))

	assert.Equal(t, []NodeID{b, a}, l.AllNotes())
	assert.Equal(t, "0", l.AbsolutePosition(b).String())
	assert.Equal(t, "3/4", l.AbsolutePosition(a).String())
	assert.Equal(t, "1", l.TotalDuration().String())
}

// TestClone verifies clones keep IDs and are independent.
func TestClone(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))
	b := mustAdd(t, l, Root, spec("C:4", quarter))
	require.NoError(t, l.Tie(a, b))

	c := l.Clone()
	require.NoError(t, c.SetPitch(a, pitch.MustPitch("G:4")))
	mustAdd(t, c, Root, spec("E:4", quarter))

	p, ok := l.Pitch(a)
	require.True(t, ok)
	assert.Equal(t, "C:4", p.String())
	assert.Len(t, l.AllNotes(), 2)
	assert.Len(t, c.AllNotes(), 3)

	to, ok := c.TiedTo(a)
	require.True(t, ok)
	assert.Equal(t, b, to)

	c.PruneTies()

	_, ok = c.TiedTo(a)
	assert.False(t, ok)
}

// TestCover verifies covers are top-level children.
func TestCover(t *testing.T) {
	t.Parallel()

	l := NewLine()
	first := mustAdd(t, l, Root, spec("C:4", quarter))
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	inner := mustAdd(t, l, beam, spec("D:4", eighth))

	cv, ok := l.Cover(inner)
	require.True(t, ok)
	assert.Equal(t, beam, cv)

	cv, ok = l.Cover(first)
	require.True(t, ok)
	assert.Equal(t, first, cv)

	_, ok = l.Cover(l.NewBeam())
	assert.False(t, ok)
}

// TestShiftTopLevel verifies shifting a cover keeps its inner layout.
func TestShiftTopLevel(t *testing.T) {
	t.Parallel()

	l := NewLine()
	first := mustAdd(t, l, Root, spec("C:4", quarter))
	beam, err := l.AddBeam(Root)
	require.NoError(t, err)

	a := mustAdd(t, l, beam, spec("D:4", eighth))
	b := mustAdd(t, l, beam, spec("E:4", eighth))

	require.NoError(t, l.ShiftTopLevel(beam, quarter))

	assert.True(t, l.AbsolutePosition(a).Equal(timing.Pos(1, 2)))
	assert.True(t, l.AbsolutePosition(b).Equal(timing.Pos(5, 8)))
	assert.True(t, l.TotalDuration().Equal(timing.Dur(3, 4)))
	assert.Zero(t, l.AbsolutePosition(first).Sign())

	require.ErrorIs(t, l.ShiftTopLevel(a, quarter), ErrNotLine)
	require.ErrorIs(t, l.ShiftTopLevel(first, timing.Dur(-1, 2)), ErrNegativePosition)
}

// TestSoundingIndex verifies interval queries over sounding notes.
func TestSoundingIndex(t *testing.T) {
	t.Parallel()

	l := NewLine()
	a := mustAdd(t, l, Root, spec("C:4", quarter))
	mustAdd(t, l, Root, spec("", quarter))
	c := mustAdd(t, l, Root, spec("E:4", timing.Dur(1, 2)))

	got := l.SoundingAt(timing.Pos(1, 8))
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0].ID)

	assert.Empty(t, l.SoundingAt(timing.Pos(3, 8)))

	got = l.StartingIn(timing.Pos(1, 4), timing.Pos(1, 1))
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].ID)

	assert.Len(t, l.SoundingIn(timing.Origin, timing.Pos(1, 1)), 2)

	got = l.NotesSpanning(timing.Pos(1, 2), timing.Pos(1, 1))
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].ID)

	// Edits invalidate the index.
	d := mustAdd(t, l, Root, spec("F:4", quarter))
	got = l.SoundingAt(timing.Pos(1, 1))
	require.Len(t, got, 1)
	assert.Equal(t, d, got[0].ID)
}

// TestSubLine verifies extraction and the enclosure check.
func TestSubLine(t *testing.T) {
	t.Parallel()

	l := NewLine()
	mustAdd(t, l, Root, spec("C:4", quarter))
	b := mustAdd(t, l, Root, spec("D:4", quarter))
	c := mustAdd(t, l, Root, spec("D:4", quarter))
	mustAdd(t, l, Root, spec("F:4", quarter))
	require.NoError(t, l.Tie(b, c))

	sub, err := l.SubLine(timing.Pos(1, 4), timing.Pos(3, 4))
	require.NoError(t, err)

	notes := sub.AllNotes()
	require.Len(t, notes, 2)
	assert.Equal(t, "0", sub.AbsolutePosition(notes[0]).String())
	assert.Equal(t, "1/2", sub.TotalDuration().String())

	_, ok := sub.TiedTo(notes[0])
	assert.True(t, ok)

	_, err = l.SubLine(timing.Pos(1, 8), timing.Pos(1, 2))
	require.ErrorIs(t, err, ErrNotEnclosed)
}

// TestSubLine_Tuplet verifies a tuplet is copied with its scaling and the
// ties inside it.
func TestSubLine_Tuplet(t *testing.T) {
	t.Parallel()

	l := NewLine()
	tup, err := l.AddTuplet(Root, timing.Dur(1, 8), 2)
	require.NoError(t, err)

	a := mustAdd(t, l, tup, spec("C:4", quarter))
	b := mustAdd(t, l, tup, spec("C:4", quarter))
	mustAdd(t, l, tup, spec("E:4", quarter))
	mustAdd(t, l, Root, spec("G:4", quarter))
	require.NoError(t, l.Tie(a, b))

	sub, err := l.SubLine(timing.Origin, timing.Pos(1, 4))
	require.NoError(t, err)

	notes := sub.AllNotes()
	require.Len(t, notes, 3)
	assert.Equal(t, "1/6", sub.AbsolutePosition(notes[2]).String())
	assert.Equal(t, "1/4", sub.TotalDuration().String())

	next, ok := sub.TiedTo(notes[0])
	require.True(t, ok)
	assert.Equal(t, notes[1], next)
}

// TestProperty_BeamDurationIsSum checks beam durations over random contents.
func TestProperty_BeamDurationIsSum(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("collective duration is the sum of child durations", prop.ForAll(
		func(shifts []int, dots []int) bool {
			l := NewLine()
			beam, _ := l.AddBeam(Root)
			tup, _ := l.AddTuplet(Root, eighth, 3)

			for i, d := range shifts {
				s := Spec{Pitch: ptr(pitch.MustPitch("C:4")), Base: timing.Dur(1, int64(1)<<d), Dots: dots[i%len(dots)]}
				if _, err := l.AddNote(beam, s); err != nil {
					return false
				}

				if _, err := l.AddNote(tup, s); err != nil {
					return false
				}
			}

			sum := timing.Zero
			for _, c := range l.Children(beam) {
				sum = sum.Add(l.Duration(c))
			}

			tsum := timing.Zero
			for _, c := range l.Children(tup) {
				tsum = tsum.Add(l.Duration(c))
			}

			return sum.Equal(l.Duration(beam)) && tsum.Equal(timing.Dur(3, 8)) && l.Duration(tup).Equal(timing.Dur(3, 8))
		},
		gen.SliceOfN(5, gen.IntRange(3, 5)),
		gen.SliceOfN(3, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
