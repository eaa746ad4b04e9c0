package constraint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

// ChordalPitch requires the actor to sound a tone of its context's chord.
type ChordalPitch struct {
	actor note.NodeID
}

// NewChordalPitch creates a ChordalPitch constraint.
func NewChordalPitch(actor note.NodeID) *ChordalPitch { return &ChordalPitch{actor: actor} }

// Kind implements Constraint.
func (c *ChordalPitch) Kind() Kind { return KindChordalPitch }

// Actors implements Constraint.
func (c *ChordalPitch) Actors() []note.NodeID { return []note.NodeID{c.actor} }

func (c *ChordalPitch) holds(cn *ContextualNote, p pitch.DiatonicPitch) bool {
	return cn.Policy.HC != nil && cn.Policy.HC.Chord.ContainsClass(p.Tone) && cn.Policy.Range.Contains(p)
}

// Verify implements Constraint.
func (c *ChordalPitch) Verify(pm *PMap) bool {
	cn, ok := pm.Get(c.actor)

	return ok && cn.Pitch != nil && c.holds(cn, *cn.Pitch)
}

// Values implements Constraint.
func (c *ChordalPitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	cn, ok := pm.Get(actor)
	if !ok || actor != c.actor {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.holds(cn, p) })
}

// Clone implements Constraint.
func (c *ChordalPitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &ChordalPitch{actor: mapActors([]note.NodeID{c.actor}, m)[0]}
}

func (c *ChordalPitch) String() string { return fmt.Sprintf("ChordalPitch(%d)", c.actor) }

// ScalarPitch requires the actor to sound a scale tone of its context's
// tonality, optionally restricted to the 0-based scale degrees in Degrees.
type ScalarPitch struct {
	actor   note.NodeID
	degrees []int
}

// NewScalarPitch creates a ScalarPitch constraint.
func NewScalarPitch(actor note.NodeID, degrees ...int) (*ScalarPitch, error) {
	for _, d := range degrees {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: scale degree %d", ErrInvalidParam, d)
		}
	}

	return &ScalarPitch{actor: actor, degrees: slices.Clone(degrees)}, nil
}

// Kind implements Constraint.
func (c *ScalarPitch) Kind() Kind { return KindScalarPitch }

// Actors implements Constraint.
func (c *ScalarPitch) Actors() []note.NodeID { return []note.NodeID{c.actor} }

func (c *ScalarPitch) holds(cn *ContextualNote, p pitch.DiatonicPitch) bool {
	if cn.Policy.HC == nil || !cn.Policy.Range.Contains(p) {
		return false
	}

	t := cn.Policy.HC.Tonality

	tone, ok := t.Annotation(p.Tone)
	if !ok {
		return false
	}

	return len(c.degrees) == 0 || slices.Contains(c.degrees, t.Index(tone))
}

// Verify implements Constraint.
func (c *ScalarPitch) Verify(pm *PMap) bool {
	cn, ok := pm.Get(c.actor)

	return ok && cn.Pitch != nil && c.holds(cn, *cn.Pitch)
}

// Values implements Constraint.
func (c *ScalarPitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	cn, ok := pm.Get(actor)
	if !ok || actor != c.actor {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.holds(cn, p) })
}

// Clone implements Constraint.
func (c *ScalarPitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &ScalarPitch{actor: mapActors([]note.NodeID{c.actor}, m)[0], degrees: slices.Clone(c.degrees)}
}

func (c *ScalarPitch) String() string {
	if len(c.degrees) == 0 {
		return fmt.Sprintf("ScalarPitch(%d)", c.actor)
	}

	return fmt.Sprintf("ScalarPitch(%d, degrees=%v)", c.actor, c.degrees)
}

// respell prefers the tonality's spelling of p.
func respell(t *pitch.Tonality, p pitch.DiatonicPitch) pitch.DiatonicPitch {
	if t == nil {
		return p
	}

	tone, ok := t.Annotation(p.Tone)
	if !ok {
		return p
	}

	q, _ := pitch.Respell(p, tone)

	return q
}

// FixedPitch pins the actor to one pitch. The candidate is spelled as a
// scale tone when the tonality has an enharmonic one.
type FixedPitch struct {
	actor note.NodeID
	pitch pitch.DiatonicPitch
}

// NewFixedPitch creates a FixedPitch constraint.
func NewFixedPitch(actor note.NodeID, p pitch.DiatonicPitch) *FixedPitch {
	return &FixedPitch{actor: actor, pitch: p}
}

// Kind implements Constraint.
func (c *FixedPitch) Kind() Kind { return KindFixedPitch }

// Actors implements Constraint.
func (c *FixedPitch) Actors() []note.NodeID { return []note.NodeID{c.actor} }

// Pitch returns the fixed pitch as declared.
func (c *FixedPitch) Pitch() pitch.DiatonicPitch { return c.pitch }

// Verify implements Constraint.
func (c *FixedPitch) Verify(pm *PMap) bool {
	p, ok := pm.Assigned(c.actor)

	return ok && p.Chromatic() == c.pitch.Chromatic()
}

// Values implements Constraint.
func (c *FixedPitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	if actor != c.actor || !pm.Contains(actor) {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return mapx.NewInsertionSet(respell(tonalityOf(pm, actor), c.pitch))
}

// Clone implements Constraint.
func (c *FixedPitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &FixedPitch{actor: mapActors([]note.NodeID{c.actor}, m)[0], pitch: c.pitch}
}

func (c *FixedPitch) String() string { return fmt.Sprintf("FixedPitch(%d, %s)", c.actor, c.pitch) }

// FixedPitchSelectSet restricts the actor to a set of pitches.
type FixedPitchSelectSet struct {
	actor   note.NodeID
	pitches []pitch.DiatonicPitch
}

// NewFixedPitchSelectSet creates a FixedPitchSelectSet constraint.
func NewFixedPitchSelectSet(actor note.NodeID, pitches ...pitch.DiatonicPitch) (*FixedPitchSelectSet, error) {
	if len(pitches) == 0 {
		return nil, fmt.Errorf("%w: empty pitch set", ErrInvalidParam)
	}

	ps := slices.Clone(pitches)
	slices.SortStableFunc(ps, pitch.Compare)

	return &FixedPitchSelectSet{actor: actor, pitches: ps}, nil
}

// Kind implements Constraint.
func (c *FixedPitchSelectSet) Kind() Kind { return KindFixedPitchSelectSet }

// Actors implements Constraint.
func (c *FixedPitchSelectSet) Actors() []note.NodeID { return []note.NodeID{c.actor} }

// Verify implements Constraint.
func (c *FixedPitchSelectSet) Verify(pm *PMap) bool {
	p, ok := pm.Assigned(c.actor)

	return ok && slices.ContainsFunc(c.pitches, p.Enharmonic)
}

// Values implements Constraint.
func (c *FixedPitchSelectSet) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	out := mapx.NewInsertionSet[pitch.DiatonicPitch]()

	cn, ok := pm.Get(actor)
	if !ok || actor != c.actor {
		return out
	}

	t := tonalityOf(pm, actor)

	for _, p := range c.pitches {
		if cn.Policy.Range.Contains(p) {
			out.Add(respell(t, p))
		}
	}

	return out
}

// Clone implements Constraint.
func (c *FixedPitchSelectSet) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &FixedPitchSelectSet{actor: mapActors([]note.NodeID{c.actor}, m)[0], pitches: slices.Clone(c.pitches)}
}

func (c *FixedPitchSelectSet) String() string {
	names := make([]string, len(c.pitches))
	for i, p := range c.pitches {
		names[i] = p.String()
	}

	return fmt.Sprintf("FixedPitchSelectSet(%d, {%s})", c.actor, strings.Join(names, " "))
}

// PitchRange keeps every actor inside a closed chromatic range.
type PitchRange struct {
	actors []note.NodeID
	rng    pitch.Range
}

// NewPitchRange creates a PitchRange constraint.
func NewPitchRange(r pitch.Range, actors ...note.NodeID) (*PitchRange, error) {
	if len(actors) == 0 {
		return nil, fmt.Errorf("%w: PitchRange needs at least one actor", ErrArity)
	}

	return &PitchRange{actors: slices.Clone(actors), rng: r}, nil
}

// Kind implements Constraint.
func (c *PitchRange) Kind() Kind { return KindPitchRange }

// Actors implements Constraint.
func (c *PitchRange) Actors() []note.NodeID { return slices.Clone(c.actors) }

// Verify implements Constraint.
func (c *PitchRange) Verify(pm *PMap) bool {
	ps, ok := assignedAll(pm, c.actors)

	return ok && !slices.ContainsFunc(ps, func(p pitch.DiatonicPitch) bool { return !c.rng.Contains(p) })
}

// Values implements Constraint.
func (c *PitchRange) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	if !slices.Contains(c.actors, actor) {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, c.rng.Contains)
}

func (c *PitchRange) admits(_ *PMap, _ note.NodeID, p pitch.DiatonicPitch) bool {
	return c.rng.Contains(p)
}

// Clone implements Constraint.
func (c *PitchRange) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &PitchRange{actors: mapActors(c.actors, m), rng: c.rng}
}

func (c *PitchRange) String() string {
	return fmt.Sprintf("PitchRange(%s, %s)", actorList(c.actors), c.rng)
}
