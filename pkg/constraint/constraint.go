// Package constraint declares the constraints a melody must satisfy and the
// parameter map the pitch search mutates.
//
// A constraint names its actors, the notes it is about. Verify checks a
// complete assignment; Values proposes candidate pitches for one actor
// given whatever its peers hold so far, in ascending order.
package constraint

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timeconv"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Construction errors.
var (
	ErrArity        = errors.New("wrong number of actors")
	ErrInvalidParam = errors.New("invalid constraint parameter")
	ErrUnknownKind  = errors.New("unknown constraint kind")
	ErrNoContext    = errors.New("no harmonic context at note position")
)

// Kind discriminates the constraint variants.
type Kind int

// Constraint kinds.
const (
	KindChordalPitch Kind = iota
	KindScalarPitch
	KindFixedPitch
	KindFixedPitchSelectSet
	KindEqualPitch
	KindNotEqualPitch
	KindComparativePitch
	KindPitchRange
	KindPitchStep
	KindRelativeDiatonic
	KindRelativeScalarStep
	KindStepSequence
	KindFitPitchToFunction
	KindOnBeat
)

var kindNames = [...]string{
	"ChordalPitch", "ScalarPitch", "FixedPitch", "FixedPitchSelectSet",
	"EqualPitch", "NotEqualPitch", "ComparativePitch", "PitchRange",
	"PitchStep", "RelativeDiatonic", "RelativeScalarStep", "StepSequence",
	"FitPitchToFunction", "OnBeat",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// ParseKind resolves a kind name, case insensitive.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Constraint is implemented by every variant. Constraints compare by identity.
type Constraint interface {
	Kind() Kind
	Actors() []note.NodeID
	// Verify reports whether every actor is assigned and the assignment holds.
	Verify(pm *PMap) bool
	// Values returns the candidate pitches for actor consistent with the
	// peers assigned in pm, in ascending order.
	Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch]
	// Clone copies the constraint onto the actors that actors maps to.
	// Actors missing from the map are kept.
	Clone(actors map[note.NodeID]note.NodeID) Constraint
	fmt.Stringer
}

// Policy is the environment an actor is evaluated in.
type Policy struct {
	HC    *harmony.HarmonicContext
	Range pitch.Range
}

// ContextualNote is a p-map slot: a note, its policy and position, and the
// pitch assigned so far.
type ContextualNote struct {
	Note     note.NodeID
	Policy   Policy
	Position timing.Position
	Pitch    *pitch.DiatonicPitch
}

// PMap maps actors to their slots in insertion order. Timeline, when set,
// lets beat-sensitive constraints classify positions.
type PMap struct {
	order    []note.NodeID
	slots    map[note.NodeID]*ContextualNote
	Timeline *timeconv.Conversion
}

// NewPMap creates an empty parameter map.
func NewPMap() *PMap {
	return &PMap{slots: make(map[note.NodeID]*ContextualNote)}
}

// Build creates a p-map with a slot for each actor of line, each bound to
// the harmonic context at its position and to r.
func Build(line *note.Line, track *harmony.Track, r pitch.Range, actors []note.NodeID) (*PMap, error) {
	pm := NewPMap()

	for _, a := range actors {
		if pm.Contains(a) {
			continue
		}

		pos := line.AbsolutePosition(a)

		hc, ok := track.HCByPosition(pos)
		if !ok {
			return nil, fmt.Errorf("%w: note %d at %s", ErrNoContext, a, pos)
		}

		pm.Put(&ContextualNote{Note: a, Policy: Policy{HC: hc, Range: r}, Position: pos})
	}

	return pm, nil
}

// Put adds or replaces the slot for cn.Note.
func (pm *PMap) Put(cn *ContextualNote) {
	if _, ok := pm.slots[cn.Note]; !ok {
		pm.order = append(pm.order, cn.Note)
	}

	pm.slots[cn.Note] = cn
}

// Get returns actor's slot.
func (pm *PMap) Get(actor note.NodeID) (*ContextualNote, bool) {
	cn, ok := pm.slots[actor]

	return cn, ok
}

// Contains reports whether actor has a slot.
func (pm *PMap) Contains(actor note.NodeID) bool {
	_, ok := pm.slots[actor]

	return ok
}

// Len returns the number of slots.
func (pm *PMap) Len() int { return len(pm.order) }

// Actors returns the actors in insertion order.
func (pm *PMap) Actors() []note.NodeID { return slices.Clone(pm.order) }

// Assign sets actor's pitch. It reports false if actor has no slot.
func (pm *PMap) Assign(actor note.NodeID, p pitch.DiatonicPitch) bool {
	cn, ok := pm.slots[actor]
	if !ok {
		return false
	}

	cn.Pitch = &p

	return true
}

// Unassign clears actor's pitch.
func (pm *PMap) Unassign(actor note.NodeID) {
	if cn, ok := pm.slots[actor]; ok {
		cn.Pitch = nil
	}
}

// Assigned returns actor's pitch, if any.
func (pm *PMap) Assigned(actor note.NodeID) (pitch.DiatonicPitch, bool) {
	cn, ok := pm.slots[actor]
	if !ok || cn.Pitch == nil {
		return pitch.DiatonicPitch{}, false
	}

	return *cn.Pitch, true
}

// Unassigned returns the actors without a pitch in insertion order.
func (pm *PMap) Unassigned() []note.NodeID {
	var out []note.NodeID

	for _, a := range pm.order {
		if pm.slots[a].Pitch == nil {
			out = append(out, a)
		}
	}

	return out
}

// Complete reports whether every slot holds a pitch.
func (pm *PMap) Complete() bool {
	for _, cn := range pm.slots {
		if cn.Pitch == nil {
			return false
		}
	}

	return true
}

// Clone returns a copy with independent slots.
func (pm *PMap) Clone() *PMap {
	c := &PMap{order: slices.Clone(pm.order), slots: make(map[note.NodeID]*ContextualNote, len(pm.slots)), Timeline: pm.Timeline}

	for a, cn := range pm.slots {
		cp := *cn
		if cn.Pitch != nil {
			p := *cn.Pitch
			cp.Pitch = &p
		}

		c.slots[a] = &cp
	}

	return c
}

func (pm *PMap) String() string {
	parts := make([]string, 0, len(pm.order))

	for _, a := range pm.order {
		p := "?"
		if cn := pm.slots[a]; cn.Pitch != nil {
			p = cn.Pitch.String()
		}

		parts = append(parts, fmt.Sprintf("%d=%s", a, p))
	}

	return "{" + strings.Join(parts, " ") + "}"
}

// assignedAll returns the pitches of actors, or false if any is unassigned.
func assignedAll(pm *PMap, actors []note.NodeID) ([]pitch.DiatonicPitch, bool) {
	out := make([]pitch.DiatonicPitch, len(actors))

	for i, a := range actors {
		p, ok := pm.Assigned(a)
		if !ok {
			return nil, false
		}

		out[i] = p
	}

	return out, true
}

// universe returns the scale pitches available to actor, ascending.
func universe(pm *PMap, actor note.NodeID) []pitch.DiatonicPitch {
	cn, ok := pm.Get(actor)
	if !ok || cn.Policy.HC == nil {
		return nil
	}

	return pitch.Scale(cn.Policy.HC.Tonality, cn.Policy.Range)
}

// universeWhere filters actor's universe.
func universeWhere(pm *PMap, actor note.NodeID, keep func(pitch.DiatonicPitch) bool) *mapx.InsertionSet[pitch.DiatonicPitch] {
	out := mapx.NewInsertionSet[pitch.DiatonicPitch]()

	for _, p := range universe(pm, actor) {
		if keep(p) {
			out.Add(p)
		}
	}

	return out
}

func all(pitch.DiatonicPitch) bool { return true }

// partialAdmitter is implemented by constraints over many actors that can
// reject a pitch before all of them are placed.
type partialAdmitter interface {
	admits(pm *PMap, actor note.NodeID, p pitch.DiatonicPitch) bool
}

// Admits reports whether c lets actor take p given the pitches already in
// pm. While another actor of c is open only the checks c can make on the
// placed peers apply; the search verifies the rest once the last actor is
// placed. pm is left as it was found.
func Admits(c Constraint, pm *PMap, actor note.NodeID, p pitch.DiatonicPitch) bool {
	cn, ok := pm.Get(actor)
	if !ok {
		return false
	}

	prev := cn.Pitch
	cn.Pitch = &p

	defer func() { cn.Pitch = prev }()

	for _, a := range c.Actors() {
		if _, ok := pm.Assigned(a); ok {
			continue
		}

		if pa, ok := c.(partialAdmitter); ok {
			return pa.admits(pm, actor, p)
		}

		return true
	}

	return c.Verify(pm)
}

// mapActors substitutes actors through m.
func mapActors(actors []note.NodeID, m map[note.NodeID]note.NodeID) []note.NodeID {
	out := make([]note.NodeID, len(actors))

	for i, a := range actors {
		if b, ok := m[a]; ok {
			out[i] = b
		} else {
			out[i] = a
		}
	}

	return out
}

func actorList(actors []note.NodeID) string {
	parts := make([]string, len(actors))
	for i, a := range actors {
		parts[i] = fmt.Sprint(a)
	}

	return strings.Join(parts, ",")
}

// tonalityOf returns actor's tonality, or nil.
func tonalityOf(pm *PMap, actor note.NodeID) *pitch.Tonality {
	cn, ok := pm.Get(actor)
	if !ok || cn.Policy.HC == nil {
		return nil
	}

	return cn.Policy.HC.Tonality
}

// Partition splits constraints into on-beat constraints and the rest.
func Partition(cs []Constraint) ([]*OnBeat, []Constraint) {
	var beats []*OnBeat

	var pitches []Constraint

	for _, c := range cs {
		if ob, ok := c.(*OnBeat); ok {
			beats = append(beats, ob)
		} else {
			pitches = append(pitches, c)
		}
	}

	return beats, pitches
}

// ActorsOf returns the distinct actors of cs in first-seen order.
func ActorsOf[C Constraint](cs []C) []note.NodeID {
	seen := mapx.NewInsertionSet[note.NodeID]()

	for _, c := range cs {
		for _, a := range c.Actors() {
			seen.Add(a)
		}
	}

	return seen.Items()
}
