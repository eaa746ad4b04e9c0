package note

import (
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

var half = timing.NewRatio(1, 2)

// childFactor returns the reduction factor a child inherits from parent.
func (l *Line) childFactor(parent, child NodeID) timing.Ratio {
	p := &l.nodes[parent]
	if p.kind == KindBeam && l.nodes[child].kind == KindBeam {
		return p.crf.Mul(half)
	}

	return p.crf
}

// layout recomputes the subtree at id under reduction factor crf.
func (l *Line) layout(id NodeID, crf timing.Ratio) {
	n := &l.nodes[id]
	n.crf = crf

	switch n.kind {
	case KindNote:
		d, _ := timing.ApplyDots(n.base, n.dots)
		n.dur = d.Scale(crf)
	case KindBeam:
		for _, c := range n.children {
			l.layout(c, l.childFactor(id, c))
		}

		l.restack(id)
	case KindTuplet:
		l.rescale(id)
	case KindLine:
		for _, c := range n.children {
			l.layout(c, crf)
		}

		l.restack(id)
	}
}

// rescale lays out a tuplet's children at the tuplet's own factor, then
// scales the subtree so the children fill unit × count.
func (l *Line) rescale(id NodeID) {
	n := &l.nodes[id]
	declared := n.unit.ScaleInt(int64(n.count)).Scale(n.crf)

	sum := timing.Zero

	for _, c := range n.children {
		l.layout(c, n.crf)
		sum = sum.Add(l.nodes[c].dur)
	}

	if sum.Sign() > 0 {
		f := declared.Div(sum)
		if !f.IsOne() {
			for _, c := range n.children {
				l.scale(c, f)
			}
		}
	}

	pos := timing.Origin

	for _, c := range n.children {
		l.nodes[c].relPos = pos
		pos = pos.Add(l.nodes[c].dur)
	}

	n.dur = declared
}

// scale multiplies the subtree's factors, durations and relative positions by f.
func (l *Line) scale(id NodeID, f timing.Ratio) {
	n := &l.nodes[id]
	n.crf = n.crf.Mul(f)
	n.dur = n.dur.Scale(f)
	n.relPos = n.relPos.Scale(f)

	for _, c := range n.children {
		l.scale(c, f)
	}
}

// restack recomputes child positions and the duration of a beam or line
// from its children's durations.
func (l *Line) restack(id NodeID) {
	n := &l.nodes[id]

	switch n.kind {
	case KindBeam:
		pos := timing.Origin

		for _, c := range n.children {
			l.nodes[c].relPos = pos
			pos = pos.Add(l.nodes[c].dur)
		}

		n.dur = pos.Since()
	case KindLine:
		end := timing.Origin

		for _, c := range n.children {
			cn := &l.nodes[c]
			cn.relPos = cn.pin.Scale(n.crf)
			end = timing.MaxPosition(end, cn.relPos.Add(cn.dur))
		}

		n.dur = end.Since()
	case KindTuplet:
		l.rescale(id)
	case KindNote:
	}
}

// refresh propagates a change in id's children up the ancestor chain. A
// tuplet absorbs the change by rescaling, so propagation stops there.
func (l *Line) refresh(id NodeID) {
	l.index = nil

	for id != None {
		n := &l.nodes[id]
		l.restack(id)

		if n.kind == KindTuplet {
			return
		}

		id = n.parent
	}
}
