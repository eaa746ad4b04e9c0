package constraint

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

func needActors(kind Kind, actors []note.NodeID, n int, exact bool) error {
	if len(actors) < n || (exact && len(actors) != n) {
		return fmt.Errorf("%w: %s takes %d actors, got %d", ErrArity, kind, n, len(actors))
	}

	if mapx.NewInsertionSet(actors...).Len() != len(actors) {
		return fmt.Errorf("%w: %s has repeated actors", ErrArity, kind)
	}

	return nil
}

// peersAssigned returns the pitches of the actors other than actor that hold one.
func peersAssigned(pm *PMap, actors []note.NodeID, actor note.NodeID) []pitch.DiatonicPitch {
	var out []pitch.DiatonicPitch

	for _, a := range actors {
		if a == actor {
			continue
		}

		if p, ok := pm.Assigned(a); ok {
			out = append(out, p)
		}
	}

	return out
}

// EqualPitch requires all actors to sound the same pitch.
type EqualPitch struct {
	actors []note.NodeID
}

// NewEqualPitch creates an EqualPitch constraint.
func NewEqualPitch(actors ...note.NodeID) (*EqualPitch, error) {
	if err := needActors(KindEqualPitch, actors, 2, false); err != nil {
		return nil, err
	}

	return &EqualPitch{actors: slices.Clone(actors)}, nil
}

// Kind implements Constraint.
func (c *EqualPitch) Kind() Kind { return KindEqualPitch }

// Actors implements Constraint.
func (c *EqualPitch) Actors() []note.NodeID { return slices.Clone(c.actors) }

// Verify implements Constraint.
func (c *EqualPitch) Verify(pm *PMap) bool {
	ps, ok := assignedAll(pm, c.actors)
	if !ok {
		return false
	}

	for _, p := range ps[1:] {
		if !p.Enharmonic(ps[0]) {
			return false
		}
	}

	return true
}

// Values implements Constraint.
func (c *EqualPitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	if !slices.Contains(c.actors, actor) {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	cn, ok := pm.Get(actor)
	if !ok {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	peers := peersAssigned(pm, c.actors, actor)
	if len(peers) == 0 {
		return universeWhere(pm, actor, all)
	}

	// An assigned peer decides the pitch, chromatic or not.
	first := peers[0]
	if !cn.Policy.Range.Contains(first) || !c.admits(pm, actor, first) {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return mapx.NewInsertionSet(first)
}

func (c *EqualPitch) admits(pm *PMap, actor note.NodeID, p pitch.DiatonicPitch) bool {
	return !slices.ContainsFunc(peersAssigned(pm, c.actors, actor), func(q pitch.DiatonicPitch) bool { return !q.Enharmonic(p) })
}

// Clone implements Constraint.
func (c *EqualPitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &EqualPitch{actors: mapActors(c.actors, m)}
}

func (c *EqualPitch) String() string { return fmt.Sprintf("EqualPitch(%s)", actorList(c.actors)) }

// NotEqualPitch requires the actors to sound pairwise distinct pitches.
type NotEqualPitch struct {
	actors []note.NodeID
}

// NewNotEqualPitch creates a NotEqualPitch constraint.
func NewNotEqualPitch(actors ...note.NodeID) (*NotEqualPitch, error) {
	if err := needActors(KindNotEqualPitch, actors, 2, false); err != nil {
		return nil, err
	}

	return &NotEqualPitch{actors: slices.Clone(actors)}, nil
}

// Kind implements Constraint.
func (c *NotEqualPitch) Kind() Kind { return KindNotEqualPitch }

// Actors implements Constraint.
func (c *NotEqualPitch) Actors() []note.NodeID { return slices.Clone(c.actors) }

// Verify implements Constraint.
func (c *NotEqualPitch) Verify(pm *PMap) bool {
	ps, ok := assignedAll(pm, c.actors)
	if !ok {
		return false
	}

	seen := make(map[int]bool, len(ps))

	for _, p := range ps {
		if seen[p.Chromatic()] {
			return false
		}

		seen[p.Chromatic()] = true
	}

	return true
}

// Values implements Constraint.
func (c *NotEqualPitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	if !slices.Contains(c.actors, actor) {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.admits(pm, actor, p) })
}

func (c *NotEqualPitch) admits(pm *PMap, actor note.NodeID, p pitch.DiatonicPitch) bool {
	return !slices.ContainsFunc(peersAssigned(pm, c.actors, actor), p.Enharmonic)
}

// Clone implements Constraint.
func (c *NotEqualPitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &NotEqualPitch{actors: mapActors(c.actors, m)}
}

func (c *NotEqualPitch) String() string {
	return fmt.Sprintf("NotEqualPitch(%s)", actorList(c.actors))
}

// Comparison orders two chromatic distances.
type Comparison int

// Comparisons.
const (
	Less Comparison = iota
	LessEqual
	Equal
	GreaterEqual
	Greater
)

var comparisonSymbols = [...]string{"<", "<=", "==", ">=", ">"}

func (op Comparison) String() string { return comparisonSymbols[op] }

// ParseComparison accepts <, <=, ==, = , >= and >.
func ParseComparison(s string) (Comparison, error) {
	if s == "=" {
		return Equal, nil
	}

	i := slices.Index(comparisonSymbols[:], s)
	if i < 0 {
		return 0, fmt.Errorf("%w: comparison %q", ErrInvalidParam, s)
	}

	return Comparison(i), nil
}

func (op Comparison) holds(a, b pitch.DiatonicPitch) bool {
	x, y := a.Chromatic(), b.Chromatic()

	switch op {
	case Less:
		return x < y
	case LessEqual:
		return x <= y
	case Equal:
		return x == y
	case GreaterEqual:
		return x >= y
	case Greater:
		return x > y
	}

	return false
}

// ComparativePitch requires first op second on chromatic distance.
type ComparativePitch struct {
	first, second note.NodeID
	op            Comparison
}

// NewComparativePitch creates a ComparativePitch constraint.
func NewComparativePitch(first, second note.NodeID, op Comparison) (*ComparativePitch, error) {
	if err := needActors(KindComparativePitch, []note.NodeID{first, second}, 2, true); err != nil {
		return nil, err
	}

	return &ComparativePitch{first: first, second: second, op: op}, nil
}

// Kind implements Constraint.
func (c *ComparativePitch) Kind() Kind { return KindComparativePitch }

// Actors implements Constraint.
func (c *ComparativePitch) Actors() []note.NodeID { return []note.NodeID{c.first, c.second} }

// Verify implements Constraint.
func (c *ComparativePitch) Verify(pm *PMap) bool {
	a, ok1 := pm.Assigned(c.first)
	b, ok2 := pm.Assigned(c.second)

	return ok1 && ok2 && c.op.holds(a, b)
}

// Values implements Constraint.
func (c *ComparativePitch) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	switch actor {
	case c.first:
		b, ok := pm.Assigned(c.second)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.op.holds(p, b) })
	case c.second:
		a, ok := pm.Assigned(c.first)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.op.holds(a, p) })
	}

	return mapx.NewInsertionSet[pitch.DiatonicPitch]()
}

// Clone implements Constraint.
func (c *ComparativePitch) Clone(m map[note.NodeID]note.NodeID) Constraint {
	ids := mapActors([]note.NodeID{c.first, c.second}, m)

	return &ComparativePitch{first: ids[0], second: ids[1], op: c.op}
}

func (c *ComparativePitch) String() string {
	return fmt.Sprintf("ComparativePitch(%d %s %d)", c.first, c.op, c.second)
}

// stepFrom walks n scale steps from p in t, reporting false when p is not
// a scale tone.
func stepFrom(t *pitch.Tonality, p pitch.DiatonicPitch, n int) (pitch.DiatonicPitch, bool) {
	if t == nil {
		return pitch.DiatonicPitch{}, false
	}

	tone, ok := t.Annotation(p.Tone)
	if !ok {
		return pitch.DiatonicPitch{}, false
	}

	q, _ := pitch.Respell(p, tone)

	return pitch.ScaleStep(t, q, n)
}

// PitchStep requires second to lie Steps scale steps above (or below)
// first, in first's tonality.
type PitchStep struct {
	first, second note.NodeID
	steps         int
}

// NewPitchStep creates a PitchStep constraint. A negative count, or up
// false, steps downwards.
func NewPitchStep(first, second note.NodeID, steps int, up bool) (*PitchStep, error) {
	if err := needActors(KindPitchStep, []note.NodeID{first, second}, 2, true); err != nil {
		return nil, err
	}

	if !up {
		steps = -steps
	}

	return &PitchStep{first: first, second: second, steps: steps}, nil
}

// Kind implements Constraint.
func (c *PitchStep) Kind() Kind { return KindPitchStep }

// Actors implements Constraint.
func (c *PitchStep) Actors() []note.NodeID { return []note.NodeID{c.first, c.second} }

// Verify implements Constraint.
func (c *PitchStep) Verify(pm *PMap) bool {
	a, ok1 := pm.Assigned(c.first)
	b, ok2 := pm.Assigned(c.second)

	if !ok1 || !ok2 {
		return false
	}

	want, ok := stepFrom(tonalityOf(pm, c.first), a, c.steps)

	return ok && want.Enharmonic(b)
}

// Values implements Constraint.
func (c *PitchStep) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	var (
		from  pitch.DiatonicPitch
		steps int
		ok    bool
	)

	switch actor {
	case c.first:
		from, ok = pm.Assigned(c.second)
		steps = -c.steps
	case c.second:
		from, ok = pm.Assigned(c.first)
		steps = c.steps
	default:
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	if !ok {
		return universeWhere(pm, actor, all)
	}

	want, ok := stepFrom(tonalityOf(pm, c.first), from, steps)
	if !ok {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, want.Enharmonic)
}

// Clone implements Constraint.
func (c *PitchStep) Clone(m map[note.NodeID]note.NodeID) Constraint {
	ids := mapActors([]note.NodeID{c.first, c.second}, m)

	return &PitchStep{first: ids[0], second: ids[1], steps: c.steps}
}

func (c *PitchStep) String() string {
	return fmt.Sprintf("PitchStep(%d, %d, %+d)", c.first, c.second, c.steps)
}

// RelativeDiatonic keeps second within [first − Down, first + Up].
type RelativeDiatonic struct {
	first, second note.NodeID
	up, down      pitch.Interval
}

// NewRelativeDiatonic creates a RelativeDiatonic constraint.
func NewRelativeDiatonic(first, second note.NodeID, up, down pitch.Interval) (*RelativeDiatonic, error) {
	if err := needActors(KindRelativeDiatonic, []note.NodeID{first, second}, 2, true); err != nil {
		return nil, err
	}

	if up.Semitones < 0 || down.Semitones < 0 {
		return nil, fmt.Errorf("%w: negative interval", ErrInvalidParam)
	}

	return &RelativeDiatonic{first: first, second: second, up: up, down: down}, nil
}

// Kind implements Constraint.
func (c *RelativeDiatonic) Kind() Kind { return KindRelativeDiatonic }

// Actors implements Constraint.
func (c *RelativeDiatonic) Actors() []note.NodeID { return []note.NodeID{c.first, c.second} }

func (c *RelativeDiatonic) within(a, b pitch.DiatonicPitch) bool {
	cd := b.Chromatic()

	return cd >= a.Chromatic()-c.down.Semitones && cd <= a.Chromatic()+c.up.Semitones
}

// Verify implements Constraint.
func (c *RelativeDiatonic) Verify(pm *PMap) bool {
	a, ok1 := pm.Assigned(c.first)
	b, ok2 := pm.Assigned(c.second)

	return ok1 && ok2 && c.within(a, b)
}

// Values implements Constraint.
func (c *RelativeDiatonic) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	switch actor {
	case c.first:
		b, ok := pm.Assigned(c.second)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.within(p, b) })
	case c.second:
		a, ok := pm.Assigned(c.first)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.within(a, p) })
	}

	return mapx.NewInsertionSet[pitch.DiatonicPitch]()
}

// Clone implements Constraint.
func (c *RelativeDiatonic) Clone(m map[note.NodeID]note.NodeID) Constraint {
	ids := mapActors([]note.NodeID{c.first, c.second}, m)

	return &RelativeDiatonic{first: ids[0], second: ids[1], up: c.up, down: c.down}
}

func (c *RelativeDiatonic) String() string {
	return fmt.Sprintf("RelativeDiatonic(%d, %d, up=%s, down=%s)", c.first, c.second, c.up, c.down)
}

// RelativeScalarStep keeps second between Lower scale steps below and
// Upper scale steps above first.
type RelativeScalarStep struct {
	first, second note.NodeID
	lower, upper  int
}

// NewRelativeScalarStep creates a RelativeScalarStep constraint.
func NewRelativeScalarStep(first, second note.NodeID, lower, upper int) (*RelativeScalarStep, error) {
	if err := needActors(KindRelativeScalarStep, []note.NodeID{first, second}, 2, true); err != nil {
		return nil, err
	}

	if lower < 0 || upper < 0 {
		return nil, fmt.Errorf("%w: negative step bound", ErrInvalidParam)
	}

	return &RelativeScalarStep{first: first, second: second, lower: lower, upper: upper}, nil
}

// Kind implements Constraint.
func (c *RelativeScalarStep) Kind() Kind { return KindRelativeScalarStep }

// Actors implements Constraint.
func (c *RelativeScalarStep) Actors() []note.NodeID { return []note.NodeID{c.first, c.second} }

// window returns the chromatic distances reachable from p by steps in [lo, hi].
func (c *RelativeScalarStep) window(pm *PMap, p pitch.DiatonicPitch, lo, hi int) map[int]bool {
	t := tonalityOf(pm, c.first)
	out := make(map[int]bool, hi-lo+1)

	for k := lo; k <= hi; k++ {
		if q, ok := stepFrom(t, p, k); ok {
			out[q.Chromatic()] = true
		}
	}

	return out
}

// Verify implements Constraint.
func (c *RelativeScalarStep) Verify(pm *PMap) bool {
	a, ok1 := pm.Assigned(c.first)
	b, ok2 := pm.Assigned(c.second)

	return ok1 && ok2 && c.window(pm, a, -c.lower, c.upper)[b.Chromatic()]
}

// Values implements Constraint.
func (c *RelativeScalarStep) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	var win map[int]bool

	switch actor {
	case c.first:
		b, ok := pm.Assigned(c.second)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		win = c.window(pm, b, -c.upper, c.lower)
	case c.second:
		a, ok := pm.Assigned(c.first)
		if !ok {
			return universeWhere(pm, actor, all)
		}

		win = c.window(pm, a, -c.lower, c.upper)
	default:
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return win[p.Chromatic()] })
}

// Clone implements Constraint.
func (c *RelativeScalarStep) Clone(m map[note.NodeID]note.NodeID) Constraint {
	ids := mapActors([]note.NodeID{c.first, c.second}, m)

	return &RelativeScalarStep{first: ids[0], second: ids[1], lower: c.lower, upper: c.upper}
}

func (c *RelativeScalarStep) String() string {
	return fmt.Sprintf("RelativeScalarStep(%d, %d, -%d..+%d)", c.first, c.second, c.lower, c.upper)
}

// StepSequence fixes the diatonic differences between consecutive actors.
type StepSequence struct {
	actors []note.NodeID
	deltas []int
}

// NewStepSequence creates a StepSequence; deltas has one entry per
// consecutive pair.
func NewStepSequence(actors []note.NodeID, deltas []int) (*StepSequence, error) {
	if err := needActors(KindStepSequence, actors, 2, false); err != nil {
		return nil, err
	}

	if len(deltas) != len(actors)-1 {
		return nil, fmt.Errorf("%w: %d deltas for %d actors", ErrInvalidParam, len(deltas), len(actors))
	}

	return &StepSequence{actors: slices.Clone(actors), deltas: slices.Clone(deltas)}, nil
}

// Kind implements Constraint.
func (c *StepSequence) Kind() Kind { return KindStepSequence }

// Actors implements Constraint.
func (c *StepSequence) Actors() []note.NodeID { return slices.Clone(c.actors) }

// offset returns the diatonic distance of actor i relative to actor 0.
func (c *StepSequence) offset(i int) int {
	sum := 0
	for _, d := range c.deltas[:i] {
		sum += d
	}

	return sum
}

// Verify implements Constraint.
func (c *StepSequence) Verify(pm *PMap) bool {
	ps, ok := assignedAll(pm, c.actors)
	if !ok {
		return false
	}

	for i, d := range c.deltas {
		if ps[i+1].Diatonic()-ps[i].Diatonic() != d {
			return false
		}
	}

	return true
}

// Values implements Constraint.
func (c *StepSequence) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	i := slices.Index(c.actors, actor)
	if i < 0 {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, func(p pitch.DiatonicPitch) bool { return c.admits(pm, actor, p) })
}

// admits checks p against the diatonic distance each placed peer implies.
func (c *StepSequence) admits(pm *PMap, actor note.NodeID, p pitch.DiatonicPitch) bool {
	i := slices.Index(c.actors, actor)
	if i < 0 {
		return false
	}

	for j, a := range c.actors {
		if q, ok := pm.Assigned(a); ok && j != i && q.Diatonic()+c.offset(i)-c.offset(j) != p.Diatonic() {
			return false
		}
	}

	return true
}

// Clone implements Constraint.
func (c *StepSequence) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &StepSequence{actors: mapActors(c.actors, m), deltas: slices.Clone(c.deltas)}
}

func (c *StepSequence) String() string {
	return fmt.Sprintf("StepSequence(%s, %v)", actorList(c.actors), c.deltas)
}
