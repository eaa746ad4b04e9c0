package note

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Reverse reverses the order of everything under collective id. Ties inside
// the collective are re-linked in the new order; ties crossing its boundary
// are broken.
func (l *Line) Reverse(id NodeID) error {
	n, err := l.get(id)
	if err != nil {
		return err
	}

	if n.kind == KindNote {
		return fmt.Errorf("%w: %d is a note", ErrNotCollective, id)
	}

	type tie struct{ from, to NodeID }

	inside := make(map[NodeID]bool)
	for _, leaf := range l.leaves(id) {
		inside[leaf] = true
	}

	var ties []tie

	for leaf := range inside {
		to := l.nodes[leaf].tiedTo
		if to != None && inside[to] {
			ties = append(ties, tie{from: leaf, to: to})
		}
	}

	for _, t := range ties {
		l.Untie(t.from)
	}

	l.reverse(id)
	l.refresh(id)
	l.PruneTies()

	for _, t := range ties {
		// The pair is adjacent in reverse order now; the old target leads.
		l.nodes[t.to].tiedTo = t.from
		l.nodes[t.from].tiedFrom = t.to
	}

	return nil
}

func (l *Line) reverse(id NodeID) {
	n := &l.nodes[id]
	if n.kind == KindNote {
		return
	}

	for _, c := range n.children {
		l.reverse(c)
	}

	slices.Reverse(n.children)

	if n.kind != KindLine {
		l.restack(id)

		return
	}

	inv := n.crf.Inverse()
	total := n.dur.Scale(inv)

	for _, c := range n.children {
		cn := &l.nodes[c]
		own := cn.dur.Scale(inv)
		cn.pin = timing.Origin.Add(total.Sub(cn.pin.Since()).Sub(own))
	}

	slices.SortStableFunc(n.children, func(a, b NodeID) int {
		return l.nodes[a].pin.Cmp(l.nodes[b].pin)
	})

	l.restack(id)
}
