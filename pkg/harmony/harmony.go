// Package harmony holds harmonic contexts and the contiguous track they form.
package harmony

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/orderedmap"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Track errors.
var (
	ErrNonPositive = errors.New("harmonic context duration must be positive")
	ErrNotInTrack  = errors.New("harmonic context not in track")
	ErrEmptyTrack  = errors.New("empty harmonic context track")
)

// HarmonicContext is a tonality and chord held for a duration.
type HarmonicContext struct {
	Tonality *pitch.Tonality
	Chord    *pitch.Chord
	Duration timing.Duration
	Position timing.Position
}

// New creates a harmonic context for chord template ct in tonality t.
func New(t *pitch.Tonality, ct pitch.ChordTemplate, d timing.Duration) (*HarmonicContext, error) {
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNonPositive, d)
	}

	return &HarmonicContext{Tonality: t, Chord: pitch.NewChord(ct, t), Duration: d}, nil
}

// Parse creates a harmonic context from "C-Major" and "IV" style names.
func Parse(tonality, chord string, d timing.Duration) (*HarmonicContext, error) {
	t, err := pitch.ParseTonality(tonality)
	if err != nil {
		return nil, err
	}

	ct, err := pitch.ParseChordTemplate(chord)
	if err != nil {
		return nil, err
	}

	return New(t, ct, d)
}

// MustParse is Parse that panics on error.
func MustParse(tonality, chord string, d timing.Duration) *HarmonicContext {
	hc, err := Parse(tonality, chord, d)
	if err != nil {
		panic(err)
	}

	return hc
}

// End returns the position just past the context.
func (hc *HarmonicContext) End() timing.Position { return hc.Position.Add(hc.Duration) }

// Contains reports whether p lies in [Position, End).
func (hc *HarmonicContext) Contains(p timing.Position) bool {
	return !p.Less(hc.Position) && p.Less(hc.End())
}

func (hc *HarmonicContext) String() string {
	return fmt.Sprintf("<%s: %s>@%s+%s", hc.Tonality, hc.Chord, hc.Position, hc.Duration)
}

// Track is a contiguous run of harmonic contexts starting at the origin.
type Track struct {
	contexts []*HarmonicContext
	index    *orderedmap.Map[timing.Position, *HarmonicContext]
}

func comparePositions(a, b timing.Position) int { return a.Cmp(b) }

// NewTrack creates a track from contexts in order.
func NewTrack(contexts ...*HarmonicContext) *Track {
	t := &Track{contexts: append([]*HarmonicContext(nil), contexts...)}
	t.reindex()

	return t
}

// reindex rewrites positions as the running sum of durations.
func (t *Track) reindex() {
	t.index = orderedmap.New[timing.Position, *HarmonicContext](comparePositions)
	pos := timing.Origin

	for _, hc := range t.contexts {
		hc.Position = pos
		t.index.Insert(pos, hc)
		pos = pos.Add(hc.Duration)
	}
}

// Len returns the number of contexts.
func (t *Track) Len() int { return len(t.contexts) }

// Append adds hc at the end of the track.
func (t *Track) Append(hc *HarmonicContext) error {
	if hc.Duration.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrNonPositive, hc.Duration)
	}

	hc.Position = timing.Origin.Add(t.Duration())
	t.contexts = append(t.contexts, hc)
	t.index.Insert(hc.Position, hc)

	return nil
}

// Duration returns the summed duration of all contexts.
func (t *Track) Duration() timing.Duration {
	if len(t.contexts) == 0 {
		return timing.Zero
	}

	return t.contexts[len(t.contexts)-1].End().Since()
}

// Contexts returns the contexts in order.
func (t *Track) Contexts() []*HarmonicContext { return append([]*HarmonicContext(nil), t.contexts...) }

// HCByPosition returns the context whose span contains p.
func (t *Track) HCByPosition(p timing.Position) (*HarmonicContext, bool) {
	_, hc, ok := t.index.Floor(p)
	if !ok || !hc.Contains(p) {
		return nil, false
	}

	return hc, true
}

// IndexOf returns the position of hc in the track, or -1.
func (t *Track) IndexOf(hc *HarmonicContext) int {
	for i, c := range t.contexts {
		if c == hc {
			return i
		}
	}

	return -1
}

// SetDuration changes hc's duration and moves the contexts after it.
func (t *Track) SetDuration(hc *HarmonicContext, d timing.Duration) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrNonPositive, d)
	}

	if t.IndexOf(hc) < 0 {
		return fmt.Errorf("%w: %s", ErrNotInTrack, hc)
	}

	hc.Duration = d
	t.reindex()

	return nil
}

// Extend lengthens hc by delta.
func (t *Track) Extend(hc *HarmonicContext, delta timing.Duration) error {
	return t.SetDuration(hc, hc.Duration.Add(delta))
}

// Shift opens a gap of delta at position at by extending the context that
// contains it, pushing later contexts forward. Past the end of the track
// the last context is extended.
func (t *Track) Shift(at timing.Position, delta timing.Duration) error {
	if len(t.contexts) == 0 {
		return ErrEmptyTrack
	}

	hc, ok := t.HCByPosition(at)
	if !ok {
		hc = t.contexts[len(t.contexts)-1]
	}

	return t.Extend(hc, delta)
}

// Clone returns a deep copy. Tonalities and chords are immutable and shared.
func (t *Track) Clone() *Track {
	c := &Track{contexts: make([]*HarmonicContext, len(t.contexts))}

	for i, hc := range t.contexts {
		cp := *hc
		c.contexts[i] = &cp
	}

	c.reindex()

	return c
}

func (t *Track) String() string {
	parts := make([]string, len(t.contexts))
	for i, hc := range t.contexts {
		parts[i] = hc.String()
	}

	return strings.Join(parts, " ")
}
