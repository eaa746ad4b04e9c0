package note

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// checkAttach validates that child may be placed under parent.
func (l *Line) checkAttach(parent, child NodeID) error {
	p, err := l.get(parent)
	if err != nil {
		return err
	}

	c, err := l.get(child)
	if err != nil {
		return err
	}

	if p.kind == KindNote {
		return fmt.Errorf("%w: %d is a note", ErrNotCollective, parent)
	}

	if child == Root || c.parent != None {
		return fmt.Errorf("%w: %d", ErrHasParent, child)
	}

	for a := parent; a != None; a = l.nodes[a].parent {
		if a == child {
			return fmt.Errorf("%w: %d under %d", ErrCycle, child, parent)
		}
	}

	if p.kind == KindBeam && c.kind == KindNote && !c.base.Less(beamLimit) {
		return fmt.Errorf("%w: base %s", ErrNotBeamable, c.base)
	}

	return nil
}

// Append adds child at the end of parent. Under a line the child is pinned
// at the line's current end.
func (l *Line) Append(parent, child NodeID) error {
	if err := l.checkAttach(parent, child); err != nil {
		return err
	}

	if l.nodes[parent].kind == KindLine {
		p := &l.nodes[parent]

		return l.pin(parent, child, timing.Origin.Add(p.dur.Scale(p.crf.Inverse())))
	}

	return l.insertAt(parent, len(l.nodes[parent].children), child)
}

// Insert places child at index among a beam's or tuplet's children. A tie
// spanning the insertion point is broken.
func (l *Line) Insert(parent NodeID, index int, child NodeID) error {
	if err := l.checkAttach(parent, child); err != nil {
		return err
	}

	if l.nodes[parent].kind == KindLine {
		return fmt.Errorf("%w: use Pin for lines", ErrNotCollective)
	}

	if index < 0 || index > len(l.nodes[parent].children) {
		return fmt.Errorf("%w: index %d", ErrInvalidNode, index)
	}

	return l.insertAt(parent, index, child)
}

func (l *Line) insertAt(parent NodeID, index int, child NodeID) error {
	p := &l.nodes[parent]
	p.children = slices.Insert(p.children, index, child)
	l.nodes[child].parent = parent

	l.layout(child, l.childFactor(parent, child))
	l.refresh(parent)
	l.PruneTies()

	return nil
}

// Pin places child in a line at offset at, in the line's own time frame.
func (l *Line) Pin(parent, child NodeID, at timing.Position) error {
	if err := l.checkAttach(parent, child); err != nil {
		return err
	}

	if l.nodes[parent].kind != KindLine {
		return fmt.Errorf("%w: %d is a %s", ErrNotLine, parent, l.nodes[parent].kind)
	}

	if at.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativePosition, at)
	}

	return l.pin(parent, child, at)
}

func (l *Line) pin(parent, child NodeID, pos timing.Position) error {
	c := &l.nodes[child]
	c.pin = pos
	c.parent = parent

	p := &l.nodes[parent]
	idx := len(p.children)

	for i, s := range p.children {
		if pos.Less(l.nodes[s].pin) {
			idx = i

			break
		}
	}

	p.children = slices.Insert(p.children, idx, child)

	l.layout(child, l.childFactor(parent, child))
	l.refresh(parent)
	l.PruneTies()

	return nil
}

// Unpin detaches id from its parent. Ties into or out of the detached
// subtree are broken.
func (l *Line) Unpin(id NodeID) error {
	n, err := l.get(id)
	if err != nil {
		return err
	}

	if n.parent == None {
		return nil
	}

	parent := n.parent
	p := &l.nodes[parent]
	p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	n.parent = None

	l.layout(id, timing.One())
	l.refresh(parent)
	l.PruneTies()

	return nil
}

// Move re-pins a child of a line at a new offset.
func (l *Line) Move(id NodeID, at timing.Position) error {
	n, err := l.get(id)
	if err != nil {
		return err
	}

	parent := n.parent
	if parent == None || l.nodes[parent].kind != KindLine {
		return fmt.Errorf("%w: parent of %d", ErrNotLine, id)
	}

	if at.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativePosition, at)
	}

	p := &l.nodes[parent]
	p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	n.parent = None

	return l.pin(parent, id, at)
}

// ShiftTopLevel moves a direct child of the line later by delta. A negative
// delta moves it earlier, but never before the start of the line.
func (l *Line) ShiftTopLevel(id NodeID, delta timing.Duration) error {
	n, err := l.get(id)
	if err != nil {
		return err
	}

	if n.parent != Root {
		return fmt.Errorf("%w: %d is not a top-level child", ErrNotLine, id)
	}

	if delta.IsZero() {
		return nil
	}

	return l.Move(id, n.pin.Add(delta.Scale(l.nodes[Root].crf.Inverse())))
}

// Tie links note a forward to note b, which must be the next note in line
// order and sound the same pitch.
func (l *Line) Tie(a, b NodeID) error {
	na, err := l.get(a)
	if err != nil {
		return err
	}

	nb, err := l.get(b)
	if err != nil {
		return err
	}

	if na.kind != KindNote || nb.kind != KindNote || na.rest || nb.rest {
		return fmt.Errorf("%w: %d and %d must be sounding notes", ErrTie, a, b)
	}

	if na.tiedTo != None || nb.tiedFrom != None {
		return fmt.Errorf("%w: %d or %d already tied", ErrTie, a, b)
	}

	if na.pitch.Chromatic() != nb.pitch.Chromatic() {
		return fmt.Errorf("%w: pitch %s != %s", ErrTie, na.pitch, nb.pitch)
	}

	if l.next(a) != b {
		return fmt.Errorf("%w: %d does not follow %d", ErrTie, b, a)
	}

	na.tiedTo = b
	nb.tiedFrom = a

	return nil
}

// Untie removes the forward tie from a, if any.
func (l *Line) Untie(a NodeID) {
	if !l.valid(a) {
		return
	}

	na := &l.nodes[a]
	if na.tiedTo == None {
		return
	}

	l.nodes[na.tiedTo].tiedFrom = None
	na.tiedTo = None
}

// PruneTies breaks every tie that no longer links adjacent notes of equal pitch.
func (l *Line) PruneTies() {
	following := make(map[NodeID]NodeID)
	seen := make(map[NodeID]bool)

	for i := range l.nodes {
		n := &l.nodes[i]
		if n.kind != KindNote || n.tiedTo == None {
			continue
		}

		id := NodeID(i)
		if r := l.root(id); !seen[r] {
			seen[r] = true

			leaves := l.leaves(r)
			for j := 1; j < len(leaves); j++ {
				following[leaves[j-1]] = leaves[j]
			}
		}

		to := n.tiedTo
		tn := &l.nodes[to]

		next, ok := following[id]
		if !ok || next != to || tn.rest || n.rest || tn.pitch.Chromatic() != n.pitch.Chromatic() {
			l.Untie(id)
		}
	}
}

// next returns the leaf after id in line order within id's tree, or None.
func (l *Line) next(id NodeID) NodeID {
	leaves := l.leaves(l.root(id))

	i := slices.Index(leaves, id)
	if i < 0 || i+1 >= len(leaves) {
		return None
	}

	return leaves[i+1]
}

// root returns the topmost ancestor of id.
func (l *Line) root(id NodeID) NodeID {
	for l.nodes[id].parent != None {
		id = l.nodes[id].parent
	}

	return id
}
