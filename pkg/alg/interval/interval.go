// Package interval provides an augmented interval tree over half-open
// intervals [Lo, Hi) with point, overlap, start and exact-match queries.
//
// The tree is a red-black tree keyed by the lower bound. Each node stores the
// minimum lower bound and the maximum upper bound of its subtree, enabling
// pruning in both directions during queries. Put returns a node handle;
// Delete always physically unlinks the node behind the handle, so handles held
// by callers stay valid across unrelated deletions.
package interval

import (
	"errors"
	"fmt"
)

// ErrStaleHandle is returned when deleting a node that is no longer in the tree.
var ErrStaleHandle = errors.New("interval: stale handle")

// ErrInvariant is returned by Verify when the tree structure is corrupted.
var ErrInvariant = errors.New("interval: invariant violated")

// Interval is the half-open range [Lo, Hi).
type Interval[K any] struct {
	Lo K
	Hi K
}

// Node is a stored interval with its value. Pointers returned by Put act as
// deletion handles.
type Node[K, V any] struct {
	interval    Interval[K]
	value       V
	minLo       K
	maxHi       K
	left, right *Node[K, V]
	parent      *Node[K, V]
	color       color
	owner       *Tree[K, V]
}

// Interval returns the node's interval.
func (n *Node[K, V]) Interval() Interval[K] { return n.interval }

// Value returns the node's value.
func (n *Node[K, V]) Value() V { return n.value }

// color represents the red-black tree node color.
type color bool

// Red-black tree color constants.
const (
	red   color = false
	black color = true
)

// Tree is an augmented interval tree. It is not safe for concurrent use.
type Tree[K, V any] struct {
	cmp      func(a, b K) int
	root     *Node[K, V]
	sentinel *Node[K, V]
	size     int
}

// New creates an empty tree ordered by cmp.
func New[K, V any](cmp func(a, b K) int) *Tree[K, V] {
	sentinel := &Node[K, V]{color: black}

	return &Tree[K, V]{cmp: cmp, root: sentinel, sentinel: sentinel}
}

// Len returns the number of intervals in the tree.
func (t *Tree[K, V]) Len() int {
	return t.size
}

// Put stores iv with value and returns its handle.
func (t *Tree[K, V]) Put(iv Interval[K], value V) *Node[K, V] {
	z := &Node[K, V]{
		interval: iv,
		value:    value,
		minLo:    iv.Lo,
		maxHi:    iv.Hi,
		left:     t.sentinel,
		right:    t.sentinel,
		color:    red,
		owner:    t,
	}

	y := t.sentinel

	for x := t.root; x != t.sentinel; {
		y = x

		if t.cmp(iv.Lo, x.interval.Lo) < 0 {
			x = x.left
		} else {
			x = x.right
		}
	}

	z.parent = y

	switch {
	case y == t.sentinel:
		t.root = z
	case t.cmp(iv.Lo, y.interval.Lo) < 0:
		y.left = z
	default:
		y.right = z
	}

	t.propagate(z)
	t.insertFixup(z)
	t.size++

	return z
}

// Delete removes the node behind handle n.
func (t *Tree[K, V]) Delete(n *Node[K, V]) error {
	if n == nil || n.owner != t {
		return ErrStaleHandle
	}

	t.deleteNode(n)
	n.owner = nil
	n.left, n.right, n.parent = nil, nil, nil
	t.size--

	return nil
}

// QueryPoint returns every node whose interval contains p.
func (t *Tree[K, V]) QueryPoint(p K) []*Node[K, V] {
	var out []*Node[K, V]

	t.collect(t.root, &out,
		func(n *Node[K, V]) bool {
			return t.cmp(n.minLo, p) <= 0 && t.cmp(n.maxHi, p) > 0
		},
		func(n *Node[K, V]) bool {
			return t.cmp(n.interval.Lo, p) <= 0 && t.cmp(p, n.interval.Hi) < 0
		})

	return out
}

// QueryInterval returns every node whose interval intersects q.
func (t *Tree[K, V]) QueryInterval(q Interval[K]) []*Node[K, V] {
	var out []*Node[K, V]

	t.collect(t.root, &out,
		func(n *Node[K, V]) bool {
			return t.cmp(n.minLo, q.Hi) < 0 && t.cmp(q.Lo, n.maxHi) < 0
		},
		func(n *Node[K, V]) bool {
			return t.cmp(n.interval.Lo, q.Hi) < 0 && t.cmp(q.Lo, n.interval.Hi) < 0
		})

	return out
}

// QueryIntervalStart returns every node whose lower bound lies in q.
func (t *Tree[K, V]) QueryIntervalStart(q Interval[K]) []*Node[K, V] {
	var out []*Node[K, V]

	t.collect(t.root, &out,
		func(n *Node[K, V]) bool {
			return t.cmp(n.minLo, q.Hi) < 0 && t.cmp(q.Lo, n.maxHi) < 0
		},
		func(n *Node[K, V]) bool {
			return t.cmp(q.Lo, n.interval.Lo) <= 0 && t.cmp(n.interval.Lo, q.Hi) < 0
		})

	return out
}

// FindExactInterval returns every node whose interval equals q.
func (t *Tree[K, V]) FindExactInterval(q Interval[K]) []*Node[K, V] {
	var out []*Node[K, V]

	t.collect(t.root, &out,
		func(n *Node[K, V]) bool {
			return t.cmp(n.minLo, q.Lo) <= 0 && t.cmp(n.maxHi, q.Hi) >= 0
		},
		func(n *Node[K, V]) bool {
			return t.cmp(n.interval.Lo, q.Lo) == 0 && t.cmp(n.interval.Hi, q.Hi) == 0
		})

	return out
}

// All returns every node in lower-bound order.
func (t *Tree[K, V]) All() []*Node[K, V] {
	out := make([]*Node[K, V], 0, t.size)

	t.collect(t.root, &out,
		func(*Node[K, V]) bool { return true },
		func(*Node[K, V]) bool { return true })

	return out
}

// collect walks the subtree in order, descending only where keep holds for
// the subtree aggregate, and appends nodes accepted by match.
func (t *Tree[K, V]) collect(n *Node[K, V], out *[]*Node[K, V], keep, match func(*Node[K, V]) bool) {
	if n == t.sentinel || !keep(n) {
		return
	}

	t.collect(n.left, out, keep, match)

	if match(n) {
		*out = append(*out, n)
	}

	t.collect(n.right, out, keep, match)
}

// deleteNode unlinks z, splicing its successor into its place when z has
// two children.
func (t *Tree[K, V]) deleteNode(z *Node[K, V]) {
	var x, fixFrom *Node[K, V]

	y := z
	yColor := y.color

	switch {
	case z.left == t.sentinel:
		x = z.right
		t.transplant(z, z.right)
		fixFrom = z.parent
	case z.right == t.sentinel:
		x = z.left
		t.transplant(z, z.left)
		fixFrom = z.parent
	default:
		y = minimum(z.right, t.sentinel)
		yColor = y.color
		x = y.right

		if y.parent == z {
			x.parent = y
			fixFrom = y
		} else {
			fixFrom = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}

		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	t.propagate(fixFrom)

	if yColor == black {
		t.deleteFixup(x)
	}

	t.sentinel.parent = nil
}

// transplant replaces the subtree rooted at u with the one rooted at v.
func (t *Tree[K, V]) transplant(u, v *Node[K, V]) {
	switch {
	case u.parent == t.sentinel:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}

	v.parent = u.parent
}

// insertFixup restores red-black properties after insertion.
func (t *Tree[K, V]) insertFixup(n *Node[K, V]) {
	for n.parent.color == red {
		parent := n.parent
		grandparent := parent.parent
		n = t.insertFixupCase(n, parent, grandparent, parent == grandparent.left)
	}

	t.root.color = black
}

// insertFixupCase handles one side of the insert fixup.
// When leftCase is true, parent is grandparent.left; otherwise parent is grandparent.right.
func (t *Tree[K, V]) insertFixupCase(n, parent, grandparent *Node[K, V], leftCase bool) *Node[K, V] {
	uncle := childOf(grandparent, !leftCase)

	if uncle.color == red {
		parent.color = black
		uncle.color = black
		grandparent.color = red

		return grandparent
	}

	if n == childOf(parent, !leftCase) {
		t.rotate(parent, leftCase)
		n, parent = parent, n
	}

	parent.color = black
	grandparent.color = red
	t.rotate(grandparent, !leftCase)

	return n
}

// deleteFixup restores red-black properties after deletion. x may be the
// sentinel, whose parent was set by deleteNode.
func (t *Tree[K, V]) deleteFixup(x *Node[K, V]) {
	for x != t.root && x.color == black {
		isLeft := x == x.parent.left
		parent := x.parent
		sibling := childOf(parent, !isLeft)

		if sibling.color == red {
			sibling.color = black
			parent.color = red
			t.rotate(parent, isLeft)
			sibling = childOf(parent, !isLeft)
		}

		if childOf(sibling, isLeft).color == black && childOf(sibling, !isLeft).color == black {
			sibling.color = red
			x = parent

			continue
		}

		if childOf(sibling, !isLeft).color == black {
			childOf(sibling, isLeft).color = black
			sibling.color = red
			t.rotate(sibling, !isLeft)
			sibling = childOf(parent, !isLeft)
		}

		sibling.color = parent.color
		parent.color = black
		childOf(sibling, !isLeft).color = black
		t.rotate(parent, isLeft)
		x = t.root
	}

	x.color = black
}

// rotate performs a rotation at node n. When left is true, rotates left;
// otherwise rotates right. Maintains the subtree aggregates.
func (t *Tree[K, V]) rotate(n *Node[K, V], left bool) {
	var pivot *Node[K, V]

	if left {
		pivot = n.right
		n.right = pivot.left

		if pivot.left != t.sentinel {
			pivot.left.parent = n
		}

		pivot.left = n
	} else {
		pivot = n.left
		n.left = pivot.right

		if pivot.right != t.sentinel {
			pivot.right.parent = n
		}

		pivot.right = n
	}

	pivot.parent = n.parent

	switch {
	case n.parent == t.sentinel:
		t.root = pivot
	case n == n.parent.left:
		n.parent.left = pivot
	default:
		n.parent.right = pivot
	}

	n.parent = pivot

	t.recalc(n)
	t.recalc(pivot)
}

// recalc recomputes a node's aggregates from its interval and children.
func (t *Tree[K, V]) recalc(n *Node[K, V]) {
	lo, hi := n.interval.Lo, n.interval.Hi

	for _, c := range [2]*Node[K, V]{n.left, n.right} {
		if c == t.sentinel {
			continue
		}

		if t.cmp(c.minLo, lo) < 0 {
			lo = c.minLo
		}

		if t.cmp(c.maxHi, hi) > 0 {
			hi = c.maxHi
		}
	}

	n.minLo, n.maxHi = lo, hi
}

// propagate recalculates aggregates from n up to the root.
func (t *Tree[K, V]) propagate(n *Node[K, V]) {
	for n != nil && n != t.sentinel {
		t.recalc(n)
		n = n.parent
	}
}

// Verify checks the red-black and augmentation invariants.
func (t *Tree[K, V]) Verify() error {
	if t.root.color != black {
		return fmt.Errorf("%w: red root", ErrInvariant)
	}

	count := 0

	if _, err := t.verify(t.root, &count); err != nil {
		return err
	}

	if count != t.size {
		return fmt.Errorf("%w: size %d, counted %d", ErrInvariant, t.size, count)
	}

	return nil
}

func (t *Tree[K, V]) verify(n *Node[K, V], count *int) (int, error) {
	if n == t.sentinel {
		return 1, nil
	}

	*count++

	if n.color == red && (n.left.color == red || n.right.color == red) {
		return 0, fmt.Errorf("%w: red node with red child", ErrInvariant)
	}

	for _, c := range [2]*Node[K, V]{n.left, n.right} {
		if c != t.sentinel && c.parent != n {
			return 0, fmt.Errorf("%w: broken parent link", ErrInvariant)
		}
	}

	if n.left != t.sentinel && t.cmp(n.left.interval.Lo, n.interval.Lo) > 0 {
		return 0, fmt.Errorf("%w: left key out of order", ErrInvariant)
	}

	if n.right != t.sentinel && t.cmp(n.right.interval.Lo, n.interval.Lo) < 0 {
		return 0, fmt.Errorf("%w: right key out of order", ErrInvariant)
	}

	lh, err := t.verify(n.left, count)
	if err != nil {
		return 0, err
	}

	rh, err := t.verify(n.right, count)
	if err != nil {
		return 0, err
	}

	if lh != rh {
		return 0, fmt.Errorf("%w: black height %d != %d", ErrInvariant, lh, rh)
	}

	lo, hi := n.minLo, n.maxHi
	t.recalc(n)

	if t.cmp(lo, n.minLo) != 0 || t.cmp(hi, n.maxHi) != 0 {
		return 0, fmt.Errorf("%w: stale subtree bounds", ErrInvariant)
	}

	if n.color == black {
		lh++
	}

	return lh, nil
}

// childOf returns the left or right child of a node.
// When left is true, returns n.left; otherwise n.right.
func childOf[K, V any](n *Node[K, V], left bool) *Node[K, V] {
	if left {
		return n.left
	}

	return n.right
}

// minimum returns the leftmost node in the subtree rooted at n.
func minimum[K, V any](n, sentinel *Node[K, V]) *Node[K, V] {
	for n.left != sentinel {
		n = n.left
	}

	return n
}
