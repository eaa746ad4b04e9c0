package constraint

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/curve"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

// fitReach is how many semitones from the curve value a fitted pitch may lie.
const fitReach = 2

// FitPitchToFunction places the actor on the pitch nearest a curve's value
// at the actor's position. The curve maps whole-note position to chromatic
// distance. Scale tones are preferred, and on strong beats a pitch a half
// step from a chord tone it does not belong to is rejected.
type FitPitchToFunction struct {
	actor note.NodeID
	fn    curve.Function
}

// NewFitPitchToFunction creates a FitPitchToFunction constraint.
func NewFitPitchToFunction(actor note.NodeID, fn curve.Function) (*FitPitchToFunction, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil curve", ErrInvalidParam)
	}

	return &FitPitchToFunction{actor: actor, fn: fn}, nil
}

// Kind implements Constraint.
func (c *FitPitchToFunction) Kind() Kind { return KindFitPitchToFunction }

// Actors implements Constraint.
func (c *FitPitchToFunction) Actors() []note.NodeID { return []note.NodeID{c.actor} }

func halfStepClash(p pitch.DiatonicPitch, chord *pitch.Chord) bool {
	if chord.ContainsClass(p.Tone) {
		return false
	}

	pc := p.Tone.PitchClass()

	for _, t := range chord.Tones {
		d := (pc - t.PitchClass() + 12) % 12
		if d == 1 || d == 11 {
			return true
		}
	}

	return false
}

// fit returns the pitch the curve selects for cn.
func (c *FitPitchToFunction) fit(pm *PMap, cn *ContextualNote) (pitch.DiatonicPitch, bool) {
	if cn.Policy.HC == nil {
		return pitch.DiatonicPitch{}, false
	}

	t := cn.Policy.HC.Tonality
	v := c.fn.Eval(cn.Position.Float64())
	base := int(math.Round(v))

	strong := false

	if pm.Timeline != nil {
		bt, on := pm.Timeline.BeatTypeAt(cn.Position)
		strong = on && bt == meter.Strong
	}

	type candidate struct {
		p     pitch.DiatonicPitch
		tonal bool
		dist  float64
	}

	var cands []candidate

	for cd := base - fitReach; cd <= base+fitReach; cd++ {
		p := pitch.SpellChromatic(cd, t)
		_, tonal := t.Annotation(p.Tone)
		cands = append(cands, candidate{p: p, tonal: tonal, dist: math.Abs(float64(cd) - v)})
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.tonal != b.tonal {
			if a.tonal {
				return -1
			}

			return 1
		}

		return cmp.Compare(a.dist, b.dist)
	})

	for _, k := range cands {
		if !cn.Policy.Range.Contains(k.p) {
			continue
		}

		if strong && halfStepClash(k.p, cn.Policy.HC.Chord) {
			continue
		}

		return k.p, true
	}

	return pitch.DiatonicPitch{}, false
}

// Verify implements Constraint.
func (c *FitPitchToFunction) Verify(pm *PMap) bool {
	cn, ok := pm.Get(c.actor)
	if !ok || cn.Pitch == nil {
		return false
	}

	want, ok := c.fit(pm, cn)

	return ok && want.Enharmonic(*cn.Pitch)
}

// Values implements Constraint.
func (c *FitPitchToFunction) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	out := mapx.NewInsertionSet[pitch.DiatonicPitch]()

	cn, ok := pm.Get(actor)
	if !ok || actor != c.actor {
		return out
	}

	if p, ok := c.fit(pm, cn); ok {
		out.Add(p)
	}

	return out
}

// Clone implements Constraint.
func (c *FitPitchToFunction) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &FitPitchToFunction{actor: mapActors([]note.NodeID{c.actor}, m)[0], fn: c.fn}
}

func (c *FitPitchToFunction) String() string { return fmt.Sprintf("FitPitchToFunction(%d)", c.actor) }
