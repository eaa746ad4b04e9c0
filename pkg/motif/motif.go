// Package motif groups notes of a line with the constraints written over
// them, so that a melodic idea can be stamped onto another place.
//
// Every group copies by position alignment: the notes from its first to its
// last actor form a run, the run is laid over the notes that start at the
// anchor, and each note must keep its offset from the run start, its
// duration and its rest status. Constraints are then cloned through the
// resulting actor map.
package motif

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
)

// Sentinel errors.
var (
	ErrForeignActor = errors.New("constraint actor outside the group")
	ErrEmpty        = errors.New("group has no notes")
	ErrMixedLines   = errors.New("group elements belong to different lines")
	ErrNotNote      = errors.New("node is not a note of the line")
)

// Element is a copyable group: a Motif, a Phrase, a Form or a MelodicForm.
type Element interface {
	Name() string
	// Line is the line the group's notes belong to.
	Line() *note.Line
	// Actors returns the group's notes in line order.
	Actors() []note.NodeID
	// AllConstraints returns the group's constraints and those of its parts.
	AllConstraints() []constraint.Constraint

	remap(dst *note.Line, m map[note.NodeID]note.NodeID) (Element, bool)
}

// run returns the notes of line from the first to the last of actors, in
// line order. Actors that are not attached notes make the run invalid.
func run(line *note.Line, actors []note.NodeID) ([]note.NodeID, bool) {
	all := line.AllNotes()
	lo, hi := -1, -1

	for _, a := range actors {
		i := slices.Index(all, a)
		if i < 0 {
			return nil, false
		}

		if lo < 0 || i < lo {
			lo = i
		}

		if i > hi {
			hi = i
		}
	}

	if lo < 0 {
		return nil, false
	}

	return all[lo : hi+1], true
}

// align lays src over the notes of dst starting at first. It returns the
// position-aligned actor map or false when the shapes differ.
func align(srcLine *note.Line, src []note.NodeID, dst *note.Line, first note.NodeID) (map[note.NodeID]note.NodeID, bool) {
	if len(src) == 0 {
		return nil, false
	}

	all := dst.AllNotes()

	start := slices.Index(all, first)
	if start < 0 || start+len(src) > len(all) {
		return nil, false
	}

	target := all[start : start+len(src)]
	srcOrigin := srcLine.AbsolutePosition(src[0])
	dstOrigin := dst.AbsolutePosition(target[0])
	m := make(map[note.NodeID]note.NodeID, len(src))

	for i, s := range src {
		d := target[i]

		if !srcLine.AbsolutePosition(s).Sub(srcOrigin).Equal(dst.AbsolutePosition(d).Sub(dstOrigin)) {
			return nil, false
		}

		if !srcLine.Duration(s).Equal(dst.Duration(d)) || srcLine.IsRest(s) != dst.IsRest(d) {
			return nil, false
		}

		m[s] = d
	}

	return m, true
}

// copyTo aligns e's run at first and rebuilds e through the actor map.
func copyTo(e Element, dst *note.Line, first note.NodeID) (Element, bool) {
	src, ok := run(e.Line(), e.Actors())
	if !ok {
		return nil, false
	}

	m, ok := align(e.Line(), src, dst, first)
	if !ok {
		return nil, false
	}

	return e.remap(dst, m)
}

func checkActors(name string, owned []note.NodeID, cs []constraint.Constraint) error {
	for _, c := range cs {
		for _, a := range c.Actors() {
			if !slices.Contains(owned, a) {
				return fmt.Errorf("%w: %s: %d in %s", ErrForeignActor, name, a, c)
			}
		}
	}

	return nil
}

func cloneAll(cs []constraint.Constraint, m map[note.NodeID]note.NodeID) ([]constraint.Constraint, bool) {
	out := make([]constraint.Constraint, len(cs))

	for i, c := range cs {
		for _, a := range c.Actors() {
			if _, ok := m[a]; !ok {
				return nil, false
			}
		}

		out[i] = c.Clone(m)
	}

	return out, true
}

func mapAll(ids []note.NodeID, m map[note.NodeID]note.NodeID) ([]note.NodeID, bool) {
	out := make([]note.NodeID, len(ids))

	for i, id := range ids {
		d, ok := m[id]
		if !ok {
			return nil, false
		}

		out[i] = d
	}

	return out, true
}

// Motif is a note structure with constraints over its notes.
type Motif struct {
	name        string
	line        *note.Line
	root        note.NodeID
	notes       []note.NodeID
	constraints []constraint.Constraint
}

// NewMotif groups the structure root of line with constraints whose actors
// all lie under root.
func NewMotif(name string, line *note.Line, root note.NodeID, constraints ...constraint.Constraint) (*Motif, error) {
	if root <= note.Root || int(root) >= line.Len() || !line.Attached(root) {
		return nil, fmt.Errorf("%w: motif %s root %d", ErrNotNote, name, root)
	}

	notes := line.Notes(root)
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: motif %s", ErrEmpty, name)
	}

	if err := checkActors(name, notes, constraints); err != nil {
		return nil, err
	}

	return &Motif{name: name, line: line, root: root, notes: notes, constraints: slices.Clone(constraints)}, nil
}

// Name implements Element.
func (m *Motif) Name() string { return m.name }

// Line implements Element.
func (m *Motif) Line() *note.Line { return m.line }

// Root returns the motif's structure.
func (m *Motif) Root() note.NodeID { return m.root }

// Actors implements Element.
func (m *Motif) Actors() []note.NodeID { return slices.Clone(m.notes) }

// Constraints returns the motif's own constraints.
func (m *Motif) Constraints() []constraint.Constraint { return slices.Clone(m.constraints) }

// AllConstraints implements Element.
func (m *Motif) AllConstraints() []constraint.Constraint { return m.Constraints() }

// CopyTo stamps the motif onto dst starting at the note first. The notes
// there must form a structure of the same kind holding exactly the aligned
// notes. It reports false when the region does not fit.
func (m *Motif) CopyTo(dst *note.Line, first note.NodeID) (*Motif, bool) {
	e, ok := copyTo(m, dst, first)
	if !ok {
		return nil, false
	}

	return e.(*Motif), true
}

func (m *Motif) remap(dst *note.Line, am map[note.NodeID]note.NodeID) (Element, bool) {
	notes, ok := mapAll(m.notes, am)
	if !ok {
		return nil, false
	}

	root, ok := enclosing(dst, notes)
	if !ok || dst.Kind(root) != m.line.Kind(m.root) || len(dst.Notes(root)) != len(notes) {
		return nil, false
	}

	cs, ok := cloneAll(m.constraints, am)
	if !ok {
		return nil, false
	}

	return &Motif{name: m.name, line: dst, root: root, notes: notes, constraints: cs}, true
}

// enclosing returns the deepest node of line holding every id. A single
// note is its own enclosing node.
func enclosing(line *note.Line, ids []note.NodeID) (note.NodeID, bool) {
	if len(ids) == 0 {
		return note.None, false
	}

	chain := func(id note.NodeID) []note.NodeID {
		var out []note.NodeID
		for ; id != note.None; id = line.Parent(id) {
			out = append(out, id)
		}

		slices.Reverse(out)

		return out
	}

	common := chain(ids[0])

	for _, id := range ids[1:] {
		c := chain(id)

		n := 0
		for n < len(common) && n < len(c) && common[n] == c[n] {
			n++
		}

		common = common[:n]
	}

	if len(common) == 0 {
		return note.None, false
	}

	return common[len(common)-1], true
}

// Phrase is a run of notes, not necessarily one structure, with constraints
// over them.
type Phrase struct {
	name        string
	line        *note.Line
	notes       []note.NodeID
	constraints []constraint.Constraint
}

// NewPhrase groups notes of line with constraints over them. The notes are
// kept in line order.
func NewPhrase(name string, line *note.Line, notes []note.NodeID, constraints ...constraint.Constraint) (*Phrase, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: phrase %s", ErrEmpty, name)
	}

	all := line.AllNotes()

	ordered := slices.Clone(notes)
	for _, n := range ordered {
		if !slices.Contains(all, n) {
			return nil, fmt.Errorf("%w: phrase %s note %d", ErrNotNote, name, n)
		}
	}

	slices.SortFunc(ordered, func(a, b note.NodeID) int {
		return slices.Index(all, a) - slices.Index(all, b)
	})

	if err := checkActors(name, ordered, constraints); err != nil {
		return nil, err
	}

	return &Phrase{name: name, line: line, notes: ordered, constraints: slices.Clone(constraints)}, nil
}

// Name implements Element.
func (p *Phrase) Name() string { return p.name }

// Line implements Element.
func (p *Phrase) Line() *note.Line { return p.line }

// Actors implements Element.
func (p *Phrase) Actors() []note.NodeID { return slices.Clone(p.notes) }

// Constraints returns the phrase's own constraints.
func (p *Phrase) Constraints() []constraint.Constraint { return slices.Clone(p.constraints) }

// AllConstraints implements Element.
func (p *Phrase) AllConstraints() []constraint.Constraint { return p.Constraints() }

// CopyTo stamps the phrase onto dst starting at the note first.
func (p *Phrase) CopyTo(dst *note.Line, first note.NodeID) (*Phrase, bool) {
	e, ok := copyTo(p, dst, first)
	if !ok {
		return nil, false
	}

	return e.(*Phrase), true
}

func (p *Phrase) remap(dst *note.Line, am map[note.NodeID]note.NodeID) (Element, bool) {
	notes, ok := mapAll(p.notes, am)
	if !ok {
		return nil, false
	}

	cs, ok := cloneAll(p.constraints, am)
	if !ok {
		return nil, false
	}

	return &Phrase{name: p.name, line: dst, notes: notes, constraints: cs}, true
}

// group is the shared body of Form and MelodicForm.
type group struct {
	name        string
	line        *note.Line
	elements    []Element
	constraints []constraint.Constraint
}

func newGroup(name string, elements []Element, constraints []constraint.Constraint) (group, error) {
	if len(elements) == 0 {
		return group{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	line := elements[0].Line()

	var owned []note.NodeID

	for _, e := range elements {
		if e.Line() != line {
			return group{}, fmt.Errorf("%w: %s: %s", ErrMixedLines, name, e.Name())
		}

		owned = append(owned, e.Actors()...)
	}

	if err := checkActors(name, owned, constraints); err != nil {
		return group{}, err
	}

	return group{name: name, line: line, elements: slices.Clone(elements), constraints: slices.Clone(constraints)}, nil
}

func (g *group) actors() []note.NodeID {
	all := g.line.AllNotes()

	var out []note.NodeID

	for _, e := range g.elements {
		for _, a := range e.Actors() {
			if !slices.Contains(out, a) {
				out = append(out, a)
			}
		}
	}

	slices.SortFunc(out, func(a, b note.NodeID) int {
		return slices.Index(all, a) - slices.Index(all, b)
	})

	return out
}

func (g *group) allConstraints() []constraint.Constraint {
	var out []constraint.Constraint

	for _, e := range g.elements {
		out = append(out, e.AllConstraints()...)
	}

	return append(out, g.constraints...)
}

func (g *group) remap(dst *note.Line, am map[note.NodeID]note.NodeID) (group, bool) {
	elements := make([]Element, len(g.elements))

	for i, e := range g.elements {
		c, ok := e.remap(dst, am)
		if !ok {
			return group{}, false
		}

		elements[i] = c
	}

	cs, ok := cloneAll(g.constraints, am)
	if !ok {
		return group{}, false
	}

	return group{name: g.name, line: dst, elements: elements, constraints: cs}, true
}

// Form is a sequence of motifs and forms with constraints across them.
type Form struct {
	group
}

// NewForm groups parts, each a *Motif or a *Form, with constraints whose
// actors belong to the parts.
func NewForm(name string, parts []Element, constraints ...constraint.Constraint) (*Form, error) {
	for _, p := range parts {
		switch p.(type) {
		case *Motif, *Form:
		default:
			return nil, fmt.Errorf("form %s: unsupported part %T", name, p)
		}
	}

	g, err := newGroup(name, parts, constraints)
	if err != nil {
		return nil, err
	}

	return &Form{group: g}, nil
}

// Name implements Element.
func (f *Form) Name() string { return f.name }

// Line implements Element.
func (f *Form) Line() *note.Line { return f.line }

// Parts returns the form's motifs and forms.
func (f *Form) Parts() []Element { return slices.Clone(f.elements) }

// Actors implements Element.
func (f *Form) Actors() []note.NodeID { return f.actors() }

// Constraints returns the cross-part constraints.
func (f *Form) Constraints() []constraint.Constraint { return slices.Clone(f.constraints) }

// AllConstraints implements Element.
func (f *Form) AllConstraints() []constraint.Constraint { return f.allConstraints() }

// CopyTo stamps the form onto dst starting at the note first. Every part is
// rebuilt through one actor map, so parts keep their relative placement.
func (f *Form) CopyTo(dst *note.Line, first note.NodeID) (*Form, bool) {
	e, ok := copyTo(f, dst, first)
	if !ok {
		return nil, false
	}

	return e.(*Form), true
}

func (f *Form) remap(dst *note.Line, am map[note.NodeID]note.NodeID) (Element, bool) {
	g, ok := f.group.remap(dst, am)
	if !ok {
		return nil, false
	}

	return &Form{group: g}, true
}

// MelodicForm is the top-level grouping of a melody: forms and phrases with
// constraints over the whole.
type MelodicForm struct {
	group
}

// NewMelodicForm groups parts, each a *Form, *Motif or *Phrase, with
// constraints over the whole melody.
func NewMelodicForm(name string, parts []Element, constraints ...constraint.Constraint) (*MelodicForm, error) {
	for _, p := range parts {
		switch p.(type) {
		case *Motif, *Form, *Phrase:
		default:
			return nil, fmt.Errorf("melodic form %s: unsupported part %T", name, p)
		}
	}

	g, err := newGroup(name, parts, constraints)
	if err != nil {
		return nil, err
	}

	return &MelodicForm{group: g}, nil
}

// Name implements Element.
func (mf *MelodicForm) Name() string { return mf.name }

// Line implements Element.
func (mf *MelodicForm) Line() *note.Line { return mf.line }

// Parts returns the melodic form's parts.
func (mf *MelodicForm) Parts() []Element { return slices.Clone(mf.elements) }

// Actors implements Element.
func (mf *MelodicForm) Actors() []note.NodeID { return mf.actors() }

// Constraints returns the constraints over the whole melody.
func (mf *MelodicForm) Constraints() []constraint.Constraint { return slices.Clone(mf.constraints) }

// AllConstraints implements Element.
func (mf *MelodicForm) AllConstraints() []constraint.Constraint { return mf.allConstraints() }

// CopyTo stamps the melodic form onto dst starting at the note first.
func (mf *MelodicForm) CopyTo(dst *note.Line, first note.NodeID) (*MelodicForm, bool) {
	e, ok := copyTo(mf, dst, first)
	if !ok {
		return nil, false
	}

	return e.(*MelodicForm), true
}

func (mf *MelodicForm) remap(dst *note.Line, am map[note.NodeID]note.NodeID) (Element, bool) {
	g, ok := mf.group.remap(dst, am)
	if !ok {
		return nil, false
	}

	return &MelodicForm{group: g}, true
}
