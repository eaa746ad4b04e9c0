// Package note implements the note tree: notes, beams, tuplets and lines.
//
// A Line owns an arena of nodes addressed by NodeID. Node 0 is the line
// itself. Parents are stored as indices and ties as index pairs; every
// structural edit re-lays out the affected ancestors so that the following
// hold after each call:
//
//   - a node's reduction factor is the product of its ancestors' local factors;
//   - a beam or tuplet child sits at the sum of its preceding siblings' durations;
//   - a tuplet's rendered duration equals unit × count × its reduction factor;
//   - a tie links a note to the next note in line order.
package note

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/interval"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Sentinel errors for structural operations.
var (
	ErrInvalidNode      = errors.New("invalid node")
	ErrHasParent        = errors.New("node already has a parent")
	ErrNotCollective    = errors.New("node is not a collective")
	ErrNotLine          = errors.New("node is not a line")
	ErrNotNote          = errors.New("node is not a note")
	ErrCycle            = errors.New("node would contain itself")
	ErrNonPositive      = errors.New("duration must be positive")
	ErrNegativeDots     = errors.New("negative dot count")
	ErrInvalidTuplet    = errors.New("invalid tuplet")
	ErrNotBeamable      = errors.New("note too long for a beam")
	ErrTie              = errors.New("invalid tie")
	ErrNotEnclosed      = errors.New("range does not enclose whole structures")
	ErrNegativePosition = errors.New("negative position")
)

// NodeID addresses a node within its Line.
type NodeID int

// Root is the ID of the line node itself.
const Root NodeID = 0

// None marks an absent node reference.
const None NodeID = -1

// Kind discriminates node variants.
type Kind int

// Node kinds.
const (
	KindNote Kind = iota
	KindBeam
	KindTuplet
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindBeam:
		return "beam"
	case KindTuplet:
		return "tuplet"
	case KindLine:
		return "line"
	default:
		return "unknown"
	}
}

// beamLimit is the shortest base duration a beam cannot hold.
var beamLimit = timing.Dur(1, 4)

type node struct {
	kind     Kind
	parent   NodeID
	children []NodeID

	relPos timing.Position
	pin    timing.Position
	crf    timing.Ratio
	dur    timing.Duration

	// Note fields.
	pitch    pitch.DiatonicPitch
	rest     bool
	base     timing.Duration
	dots     int
	tiedTo   NodeID
	tiedFrom NodeID

	// Tuplet fields.
	unit  timing.Duration
	count int
}

// Line is a note tree rooted at a line node. It is not safe for concurrent use.
type Line struct {
	nodes []node
	index *interval.Tree[timing.Position, NodeID]
}

// NewLine creates an empty line.
func NewLine() *Line {
	l := &Line{}
	l.nodes = append(l.nodes, node{kind: KindLine, parent: None, tiedTo: None, tiedFrom: None})

	return l
}

// Spec describes a note to create. A nil Pitch makes a rest.
type Spec struct {
	Pitch *pitch.DiatonicPitch
	Base  timing.Duration
	Dots  int
}

// NewNote creates a detached note.
func (l *Line) NewNote(s Spec) (NodeID, error) {
	if s.Base.Sign() <= 0 {
		return None, fmt.Errorf("%w: %s", ErrNonPositive, s.Base)
	}

	if s.Dots < 0 {
		return None, fmt.Errorf("%w: %d", ErrNegativeDots, s.Dots)
	}

	n := node{kind: KindNote, parent: None, base: s.Base, dots: s.Dots, tiedTo: None, tiedFrom: None, rest: s.Pitch == nil}
	if s.Pitch != nil {
		n.pitch = *s.Pitch
	}

	id := l.alloc(n)
	l.layout(id, timing.One())

	return id, nil
}

// NewBeam creates a detached empty beam.
func (l *Line) NewBeam() NodeID {
	return l.alloc(node{kind: KindBeam, parent: None, tiedTo: None, tiedFrom: None})
}

// NewTuplet creates a detached empty tuplet whose rendered duration is unit × count.
func (l *Line) NewTuplet(unit timing.Duration, count int) (NodeID, error) {
	if unit.Sign() <= 0 || count <= 0 {
		return None, fmt.Errorf("%w: unit %s count %d", ErrInvalidTuplet, unit, count)
	}

	return l.alloc(node{kind: KindTuplet, parent: None, unit: unit, count: count, tiedTo: None, tiedFrom: None}), nil
}

// NewSubLine creates a detached empty line node.
func (l *Line) NewSubLine() NodeID {
	return l.alloc(node{kind: KindLine, parent: None, tiedTo: None, tiedFrom: None})
}

func (l *Line) alloc(n node) NodeID {
	id := NodeID(len(l.nodes))
	l.nodes = append(l.nodes, n)
	l.layout(id, timing.One())

	return id
}

func (l *Line) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(l.nodes)
}

func (l *Line) get(id NodeID) (*node, error) {
	if !l.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNode, id)
	}

	return &l.nodes[id], nil
}

// Len returns the arena size including detached nodes.
func (l *Line) Len() int { return len(l.nodes) }

// Kind returns the node's kind.
func (l *Line) Kind(id NodeID) Kind { return l.nodes[id].kind }

// Parent returns the node's parent, or None.
func (l *Line) Parent(id NodeID) NodeID { return l.nodes[id].parent }

// Children returns a copy of a collective's children.
func (l *Line) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), l.nodes[id].children...)
}

// RelativePosition returns the node's position within its parent.
func (l *Line) RelativePosition(id NodeID) timing.Position { return l.nodes[id].relPos }

// Factor returns the node's contextual reduction factor.
func (l *Line) Factor(id NodeID) timing.Ratio { return l.nodes[id].crf }

// Duration returns the rendered duration of a node.
func (l *Line) Duration(id NodeID) timing.Duration { return l.nodes[id].dur }

// TotalDuration returns the line's duration.
func (l *Line) TotalDuration() timing.Duration { return l.nodes[Root].dur }

// Pitch returns a note's pitch; ok is false for rests and non-notes.
func (l *Line) Pitch(id NodeID) (pitch.DiatonicPitch, bool) {
	n := &l.nodes[id]
	if n.kind != KindNote || n.rest {
		return pitch.DiatonicPitch{}, false
	}

	return n.pitch, true
}

// IsRest reports whether id is a rest.
func (l *Line) IsRest(id NodeID) bool {
	return l.nodes[id].kind == KindNote && l.nodes[id].rest
}

// Base returns a note's undotted, unreduced duration and dot count.
func (l *Line) Base(id NodeID) (timing.Duration, int) {
	return l.nodes[id].base, l.nodes[id].dots
}

// Tuplet returns a tuplet's unit and count.
func (l *Line) Tuplet(id NodeID) (timing.Duration, int) {
	return l.nodes[id].unit, l.nodes[id].count
}

// TiedTo returns the note id is tied forward to.
func (l *Line) TiedTo(id NodeID) (NodeID, bool) {
	t := l.nodes[id].tiedTo

	return t, t != None
}

// TiedFrom returns the note tied forward into id.
func (l *Line) TiedFrom(id NodeID) (NodeID, bool) {
	t := l.nodes[id].tiedFrom

	return t, t != None
}

// SetPitch replaces a note's pitch. Ties are left untouched; see PruneTies.
func (l *Line) SetPitch(id NodeID, p pitch.DiatonicPitch) error {
	n, err := l.get(id)
	if err != nil {
		return err
	}

	if n.kind != KindNote {
		return fmt.Errorf("%w: %d is a %s", ErrNotNote, id, n.kind)
	}

	n.pitch = p
	n.rest = false
	l.index = nil

	return nil
}

// Attached reports whether id is reachable from the root.
func (l *Line) Attached(id NodeID) bool {
	for id != None {
		if id == Root {
			return true
		}

		id = l.nodes[id].parent
	}

	return false
}

// Clone returns a deep copy. Node IDs are preserved.
func (l *Line) Clone() *Line {
	c := &Line{nodes: make([]node, len(l.nodes))}

	copy(c.nodes, l.nodes)

	for i := range c.nodes {
		c.nodes[i].children = append([]NodeID(nil), l.nodes[i].children...)
	}

	return c
}

func (l *Line) String() string {
	return fmt.Sprintf("Line(%d notes, duration %s)", len(l.AllNotes()), l.TotalDuration())
}
