package note

import (
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/interval"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// AddNote creates a note from s and appends it to parent.
func (l *Line) AddNote(parent NodeID, s Spec) (NodeID, error) {
	id, err := l.NewNote(s)
	if err != nil {
		return None, err
	}

	return id, l.Append(parent, id)
}

// AddBeam creates a beam and appends it to parent.
func (l *Line) AddBeam(parent NodeID) (NodeID, error) {
	id := l.NewBeam()

	return id, l.Append(parent, id)
}

// AddTuplet creates a tuplet and appends it to parent.
func (l *Line) AddTuplet(parent NodeID, unit timing.Duration, count int) (NodeID, error) {
	id, err := l.NewTuplet(unit, count)
	if err != nil {
		return None, err
	}

	return id, l.Append(parent, id)
}

// leaves returns the notes under id in line order.
func (l *Line) leaves(id NodeID) []NodeID {
	var out []NodeID

	l.walk(id, func(n NodeID) {
		if l.nodes[n].kind == KindNote {
			out = append(out, n)
		}
	})

	return out
}

func (l *Line) walk(id NodeID, visit func(NodeID)) {
	visit(id)

	for _, c := range l.nodes[id].children {
		l.walk(c, visit)
	}
}

// AllNotes returns every note and rest in the line in positional order.
func (l *Line) AllNotes() []NodeID { return l.leaves(Root) }

// Notes returns the notes under id in positional order.
func (l *Line) Notes(id NodeID) []NodeID { return l.leaves(id) }

// AbsolutePosition returns the sum of relative positions from id up to its root.
func (l *Line) AbsolutePosition(id NodeID) timing.Position {
	pos := timing.Origin

	for id != None && l.nodes[id].parent != None {
		pos = pos.Add(l.nodes[id].relPos.Since())
		id = l.nodes[id].parent
	}

	return pos
}

// TopLevel returns the line's direct children in positional order.
func (l *Line) TopLevel() []NodeID { return l.Children(Root) }

// Cover returns the top-level child containing id.
func (l *Line) Cover(id NodeID) (NodeID, bool) {
	for id != None {
		p := l.nodes[id].parent
		if p == Root {
			return id, true
		}

		id = p
	}

	return None, false
}

// Sounding is a note with its absolute span.
type Sounding struct {
	ID    NodeID
	Start timing.Position
	End   timing.Position
}

func comparePositions(a, b timing.Position) int { return a.Cmp(b) }

func (l *Line) buildIndex() *interval.Tree[timing.Position, NodeID] {
	if l.index != nil {
		return l.index
	}

	tree := interval.New[timing.Position, NodeID](comparePositions)

	for _, id := range l.AllNotes() {
		if l.nodes[id].rest {
			continue
		}

		start := l.AbsolutePosition(id)
		tree.Put(interval.Interval[timing.Position]{Lo: start, Hi: start.Add(l.nodes[id].dur)}, id)
	}

	l.index = tree

	return tree
}

func toSounding(nodes []*interval.Node[timing.Position, NodeID]) []Sounding {
	out := make([]Sounding, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Sounding{ID: n.Value(), Start: n.Interval().Lo, End: n.Interval().Hi})
	}

	return out
}

// SoundingAt returns the pitched notes sounding at p.
func (l *Line) SoundingAt(p timing.Position) []Sounding {
	return toSounding(l.buildIndex().QueryPoint(p))
}

// SoundingIn returns the pitched notes sounding anywhere in [from, to).
func (l *Line) SoundingIn(from, to timing.Position) []Sounding {
	return toSounding(l.buildIndex().QueryInterval(interval.Interval[timing.Position]{Lo: from, Hi: to}))
}

// StartingIn returns the pitched notes that start in [from, to).
func (l *Line) StartingIn(from, to timing.Position) []Sounding {
	return toSounding(l.buildIndex().QueryIntervalStart(interval.Interval[timing.Position]{Lo: from, Hi: to}))
}

// NotesSpanning returns the pitched notes whose span is exactly [from, to).
func (l *Line) NotesSpanning(from, to timing.Position) []Sounding {
	return toSounding(l.buildIndex().FindExactInterval(interval.Interval[timing.Position]{Lo: from, Hi: to}))
}

// SubLine copies the top-level structures lying in [from, to) into a new
// line, re-based at from. Every top-level structure intersecting the range
// must be wholly inside it.
func (l *Line) SubLine(from, to timing.Position) (*Line, error) {
	out := NewLine()
	mapping := make(map[NodeID]NodeID)

	for _, c := range l.nodes[Root].children {
		start := l.nodes[c].relPos
		end := start.Add(l.nodes[c].dur)

		if !from.Less(end) || !start.Less(to) {
			continue
		}

		if start.Less(from) || to.Less(end) {
			return nil, fmt.Errorf("%w: [%s, %s) cuts %s at [%s, %s)", ErrNotEnclosed, from, to, l.nodes[c].kind, start, end)
		}

		id, err := l.copyInto(out, c, mapping)
		if err != nil {
			return nil, err
		}

		if err := out.Pin(Root, id, timing.Origin.Add(start.Sub(from))); err != nil {
			return nil, err
		}
	}

	for a, na := range mapping {
		if b, ok := mapping[l.nodes[a].tiedTo]; ok && l.nodes[a].tiedTo != None {
			if err := out.Tie(na, b); err != nil {
				return nil, fmt.Errorf("copy tie %d-%d: %w", a, l.nodes[a].tiedTo, err)
			}
		}
	}

	return out, nil
}

// copyInto recreates the subtree at id inside dst, detached, recording the
// ID correspondence in mapping.
func (l *Line) copyInto(dst *Line, id NodeID, mapping map[NodeID]NodeID) (NodeID, error) {
	n := l.nodes[id]

	var nid NodeID

	switch n.kind {
	case KindNote:
		nid = dst.alloc(node{kind: KindNote, parent: None, pitch: n.pitch, rest: n.rest, base: n.base, dots: n.dots, tiedTo: None, tiedFrom: None})
	case KindBeam:
		nid = dst.NewBeam()
	case KindTuplet:
		var err error

		if nid, err = dst.NewTuplet(n.unit, n.count); err != nil {
			return None, fmt.Errorf("copy tuplet %d: %w", id, err)
		}
	case KindLine:
		nid = dst.NewSubLine()
	}

	mapping[id] = nid

	for _, c := range n.children {
		cid, err := l.copyInto(dst, c, mapping)
		if err != nil {
			return None, err
		}

		cn := &dst.nodes[cid]
		cn.parent = nid
		cn.pin = l.nodes[c].pin
		dst.nodes[nid].children = append(dst.nodes[nid].children, cid)
	}

	dst.layout(nid, timing.One())

	return nid, nil
}
