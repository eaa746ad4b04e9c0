package lineparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

func pitches(t *testing.T, l *note.Line) []string {
	t.Helper()

	var out []string

	for _, id := range l.AllNotes() {
		p, ok := l.Pitch(id)
		if !ok {
			out = append(out, "R")

			continue
		}

		out = append(out, p.String())
	}

	return out
}

func durations(l *note.Line) []string {
	var out []string
	for _, id := range l.AllNotes() {
		out = append(out, l.Duration(id).String())
	}

	return out
}

// TestParse_StickyState verifies duration and octave carry across notes.
func TestParse_StickyState(t *testing.T) {
	t.Parallel()

	r, err := Parse("hC:5 D iE:3 f# Bb r")
	require.NoError(t, err)

	assert.Equal(t, []string{"C:5", "D:5", "E:3", "F#:3", "Bb:3", "R"}, pitches(t, r.Line))
	assert.Equal(t, []string{"1/2", "1/2", "1/8", "1/8", "1/8", "1/8"}, durations(r.Line))
	assert.Zero(t, r.Track.Len())
}

// TestParse_Defaults verifies an undecorated note is a quarter in octave 4.
func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	r := MustParse("{ C }")
	assert.Equal(t, []string{"C:4"}, pitches(t, r.Line))
	assert.Equal(t, "1/4", r.Line.TotalDuration().String())
}

// TestParse_Dots verifies dots bind to the duration and carry with it.
func TestParse_Dots(t *testing.T) {
	t.Parallel()

	r, err := Parse("q@C D h@@E qF")
	require.NoError(t, err)

	assert.Equal(t, []string{"3/8", "3/8", "7/8", "1/4"}, durations(r.Line))

	base, dots := r.Line.Base(r.Line.AllNotes()[2])
	assert.Equal(t, "1/2", base.String())
	assert.Equal(t, 2, dots)
}

// TestParse_Accidentals verifies single and double alterations.
func TestParse_Accidentals(t *testing.T) {
	t.Parallel()

	r, err := Parse("C## Dbb eb G#")
	require.NoError(t, err)

	assert.Equal(t, []string{"C##:4", "Dbb:4", "Eb:4", "G#:4"}, pitches(t, r.Line))
}

// TestParse_Tuplet verifies three quarters in a 2 × 1/8 tuplet become twelfths.
func TestParse_Tuplet(t *testing.T) {
	t.Parallel()

	r, err := Parse("(I, 2)[C D E]")
	require.NoError(t, err)

	ids := r.Line.AllNotes()
	require.Len(t, ids, 3)

	for i, id := range ids {
		assert.Equal(t, "1/12", r.Line.Duration(id).String())
		assert.Equal(t, timing.Dur(int64(i), 12).String(), r.Line.RelativePosition(id).String())
	}

	tu := r.Line.Parent(ids[0])
	assert.Equal(t, note.KindTuplet, r.Line.Kind(tu))

	unit, count := r.Line.Tuplet(tu)
	assert.Equal(t, "1/8", unit.String())
	assert.Equal(t, 2, count)

	r, err = Parse("(1/4, 2)[iC D E] hF")
	require.NoError(t, err)
	assert.Equal(t, "1", r.Line.TotalDuration().String())
}

// TestParse_Beams verifies nested beams build the tree.
func TestParse_Beams(t *testing.T) {
	t.Parallel()

	r, err := Parse("[iC D [E F]] qG")
	require.NoError(t, err)

	ids := r.Line.AllNotes()
	require.Len(t, ids, 5)

	outer := r.Line.Parent(ids[0])
	assert.Equal(t, note.KindBeam, r.Line.Kind(outer))
	assert.Equal(t, note.Root, r.Line.Parent(outer))

	inner := r.Line.Parent(ids[2])
	assert.Equal(t, note.KindBeam, r.Line.Kind(inner))
	assert.Equal(t, outer, r.Line.Parent(inner))

	assert.Equal(t, "1/16", r.Line.Duration(ids[2]).String(), "a nested beam halves its notes")
	assert.Equal(t, note.Root, r.Line.Parent(ids[4]))
	assert.Equal(t, "3/8", r.Line.AbsolutePosition(ids[4]).String())
}

// TestParse_Ties verifies a tie links to the next note in line order.
func TestParse_Ties(t *testing.T) {
	t.Parallel()

	r, err := Parse("C- [iC D-] D E")
	require.NoError(t, err)

	ids := r.Line.AllNotes()

	to, ok := r.Line.TiedTo(ids[0])
	require.True(t, ok)
	assert.Equal(t, ids[1], to)

	to, ok = r.Line.TiedTo(ids[2])
	require.True(t, ok)
	assert.Equal(t, ids[3], to)

	_, ok = r.Line.TiedTo(ids[3])
	assert.False(t, ok)

	_, err = Parse("C- D")
	require.ErrorIs(t, err, note.ErrTie)

	_, err = Parse("C D-")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Pos)
}

// TestParse_HarmonicTags verifies tags become a contiguous track over the line.
func TestParse_HarmonicTags(t *testing.T) {
	t.Parallel()

	r, err := Parse("C <C-Major: I> D E <G-Major: V7> hF G")
	require.NoError(t, err)

	hcs := r.Track.Contexts()
	require.Len(t, hcs, 2)

	assert.Equal(t, "0", hcs[0].Position.String())
	assert.Equal(t, "3/4", hcs[0].Duration.String())
	assert.True(t, hcs[0].Tonality.Equal(pitch.MustTonality("C-Major")))
	assert.Equal(t, pitch.MustChordTemplate("I"), hcs[0].Chord.Template)

	assert.Equal(t, "3/4", hcs[1].Position.String())
	assert.Equal(t, "1", hcs[1].Duration.String())
	assert.True(t, hcs[1].Chord.Template.Seventh)
	assert.Equal(t, r.Line.TotalDuration().String(), r.Track.Duration().String())
}

// TestParse_SupersededTag verifies the later of two tags on one note wins.
func TestParse_SupersededTag(t *testing.T) {
	t.Parallel()

	r, err := Parse("<C-Major: I> C <C-Major: IV> <C-Major: V> D")
	require.NoError(t, err)

	hcs := r.Track.Contexts()
	require.Len(t, hcs, 2)
	assert.Equal(t, 5, hcs[1].Chord.Template.Degree)
}

// TestParse_Errors verifies failures report a position and cause.
func TestParse_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		src      string
		pos      int
		expected string
		is       error
	}{
		{name: "bad letter", src: "C Z", pos: 2, expected: "pitch letter or R", is: ErrSyntax},
		{name: "open beam", src: "[iC D", pos: 5, is: ErrSyntax},
		{name: "open wrapper", src: "{ C", pos: 3, is: ErrSyntax},
		{name: "trailing input", src: "{ C } D", pos: 6, expected: "end of input", is: ErrSyntax},
		{name: "missing octave", src: "C:", pos: 2, expected: "octave number", is: ErrSyntax},
		{name: "dangling tag", src: "C <C-Major: I>", pos: 2, is: ErrSyntax},
		{name: "bad tonality", src: "<H-Major: I> C", pos: 1, is: pitch.ErrInvalidTonality},
		{name: "bad chord", src: "<C-Major: IX> C", pos: 1, is: pitch.ErrInvalidChord},
		{name: "bad tuplet count", src: "(I, x)[C]", pos: 1, is: ErrSyntax},
		{name: "tuplet without body", src: "(I, 2) C", pos: 7, is: ErrSyntax},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tc.src)
			require.ErrorIs(t, err, tc.is)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.pos, perr.Pos)

			if tc.expected != "" {
				assert.Equal(t, tc.expected, perr.Expected)
			}
		})
	}
}

// TestParse_StructuralError verifies note tree rejections surface with a position.
func TestParse_StructuralError(t *testing.T) {
	t.Parallel()

	_, err := Parse("C [qD E]")
	require.ErrorIs(t, err, note.ErrNotBeamable)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Pos)
}

// TestMustParse_Panics verifies MustParse panics on bad input.
func TestMustParse_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustParse("C [") })
}

// TestDurationLetter verifies the letter table is invertible.
func TestDurationLetter(t *testing.T) {
	t.Parallel()

	for c, d := range durationLetters {
		got, ok := DurationLetter(d)
		require.True(t, ok)
		assert.Equal(t, c, got)
	}

	_, ok := DurationLetter(timing.Dur(3, 8))
	assert.False(t, ok)
}
