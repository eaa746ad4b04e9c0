// Package render turns note lines into text, MIDI files, piano-roll charts
// and token diffs.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// ErrUnwritable is returned for notes with no duration letter.
var ErrUnwritable = errors.New("duration has no notation letter")

// LineText writes l in the notation lineparse reads. When track is non-nil a
// harmonic tag is written before the first note at or after each context
// start. Durations and octaves are only written when they change.
func LineText(l *note.Line, track *harmony.Track) (string, error) {
	tw := &textWriter{line: l}
	if track != nil {
		tw.contexts = track.Contexts()
	}

	if err := tw.children(note.Root); err != nil {
		return "", err
	}

	return bracketSpacing.Replace(strings.Join(tw.tokens, " ")), nil
}

var bracketSpacing = strings.NewReplacer("[ ", "[", " ]", "]")

type textWriter struct {
	line     *note.Line
	tokens   []string
	contexts []*harmony.HarmonicContext
	next     int

	started bool
	base    timing.Duration
	dots    int
	octave  int
	pitched bool
}

func (w *textWriter) children(id note.NodeID) error {
	for _, c := range w.line.Children(id) {
		if err := w.node(c); err != nil {
			return err
		}
	}

	return nil
}

func (w *textWriter) node(id note.NodeID) error {
	switch w.line.Kind(id) {
	case note.KindNote:
		return w.note(id)
	case note.KindBeam:
		w.tag(w.line.AbsolutePosition(id))
		w.tokens = append(w.tokens, "[")
	case note.KindTuplet:
		w.tag(w.line.AbsolutePosition(id))
		unit, count := w.line.Tuplet(id)
		w.tokens = append(w.tokens, fmt.Sprintf("(%s, %d)[", unitText(unit), count))
	default:
		return w.children(id)
	}

	if err := w.children(id); err != nil {
		return err
	}

	w.tokens = append(w.tokens, "]")

	return nil
}

func unitText(d timing.Duration) string {
	if c, ok := lineparse.DurationLetter(d); ok {
		return string(c)
	}

	return d.String()
}

func (w *textWriter) note(id note.NodeID) error {
	w.tag(w.line.AbsolutePosition(id))

	var b strings.Builder

	base, dots := w.line.Base(id)
	if !w.started || !base.Equal(w.base) || dots != w.dots {
		c, ok := lineparse.DurationLetter(base)
		if !ok {
			return fmt.Errorf("%w: note %d base %s", ErrUnwritable, id, base)
		}

		b.WriteString(strings.ToLower(string(c)))
		b.WriteString(strings.Repeat("@", dots))

		w.started, w.base, w.dots = true, base, dots
	}

	if p, ok := w.line.Pitch(id); ok {
		b.WriteString(p.Tone.String())

		if !w.pitched || p.Octave != w.octave {
			fmt.Fprintf(&b, ":%d", p.Octave)

			w.pitched, w.octave = true, p.Octave
		}
	} else {
		b.WriteString("R")
	}

	if _, tied := w.line.TiedTo(id); tied {
		b.WriteString("-")
	}

	w.tokens = append(w.tokens, b.String())

	return nil
}

// tag writes the last context starting at or before at that is not yet written.
func (w *textWriter) tag(at timing.Position) {
	var hc *harmony.HarmonicContext

	for w.next < len(w.contexts) && !at.Less(w.contexts[w.next].Position) {
		hc = w.contexts[w.next]
		w.next++
	}

	if hc != nil {
		w.tokens = append(w.tokens, fmt.Sprintf("<%s: %s>", hc.Tonality, hc.Chord.Template))
	}
}
