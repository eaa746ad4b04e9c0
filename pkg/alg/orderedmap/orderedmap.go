// Package orderedmap provides a generic map ordered by a comparison function,
// with floor and ceiling lookup and a value-to-key reverse index.
//
// Keys are held in a sorted slice searched with binary search, so Get, Floor
// and Ceil are O(log N) and Insert/Remove are O(N). The maps in this module
// hold tempo changes, meter changes and similar sparse event data where
// lookups dominate edits.
package orderedmap

import (
	"iter"
	"slices"
)

// Map is an ordered map from K to V. Values must be unique per key for
// KeyOf to be meaningful.
type Map[K any, V comparable] struct {
	cmp  func(a, b K) int
	keys []K
	vals []V
	rev  map[V]K
}

// New creates an empty map ordered by cmp.
func New[K any, V comparable](cmp func(a, b K) int) *Map[K, V] {
	return &Map[K, V]{
		cmp: cmp,
		rev: make(map[V]K),
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.keys) }

func (m *Map[K, V]) search(k K) (int, bool) {
	return slices.BinarySearchFunc(m.keys, k, m.cmp)
}

// Insert sets k to v, replacing any previous value for k.
func (m *Map[K, V]) Insert(k K, v V) {
	idx, found := m.search(k)
	if found {
		delete(m.rev, m.vals[idx])
		m.keys[idx] = k
		m.vals[idx] = v
		m.rev[v] = k

		return
	}

	m.keys = slices.Insert(m.keys, idx, k)
	m.vals = slices.Insert(m.vals, idx, v)
	m.rev[v] = k
}

// Remove deletes k. It reports whether k was present.
func (m *Map[K, V]) Remove(k K) bool {
	idx, found := m.search(k)
	if !found {
		return false
	}

	delete(m.rev, m.vals[idx])
	m.keys = slices.Delete(m.keys, idx, idx+1)
	m.vals = slices.Delete(m.vals, idx, idx+1)

	return true
}

// Get returns the value stored at k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	idx, found := m.search(k)
	if !found {
		var zero V

		return zero, false
	}

	return m.vals[idx], true
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	_, found := m.search(k)

	return found
}

// KeyOf returns the key under which v is stored.
func (m *Map[K, V]) KeyOf(v V) (K, bool) {
	k, ok := m.rev[v]

	return k, ok
}

// Floor returns the entry with the greatest key <= k.
func (m *Map[K, V]) Floor(k K) (K, V, bool) {
	idx, found := m.search(k)
	if !found {
		idx--
	}

	return m.at(idx)
}

// Ceil returns the entry with the least key >= k.
func (m *Map[K, V]) Ceil(k K) (K, V, bool) {
	idx, _ := m.search(k)

	return m.at(idx)
}

// Lower returns the entry with the greatest key < k.
func (m *Map[K, V]) Lower(k K) (K, V, bool) {
	idx, _ := m.search(k)

	return m.at(idx - 1)
}

// Higher returns the entry with the least key > k.
func (m *Map[K, V]) Higher(k K) (K, V, bool) {
	idx, found := m.search(k)
	if found {
		idx++
	}

	return m.at(idx)
}

// Min returns the entry with the least key.
func (m *Map[K, V]) Min() (K, V, bool) { return m.at(0) }

// Max returns the entry with the greatest key.
func (m *Map[K, V]) Max() (K, V, bool) { return m.at(len(m.keys) - 1) }

func (m *Map[K, V]) at(idx int) (K, V, bool) {
	if idx < 0 || idx >= len(m.keys) {
		var (
			zk K
			zv V
		)

		return zk, zv, false
	}

	return m.keys[idx], m.vals[idx], true
}

// Keys returns the keys in order.
func (m *Map[K, V]) Keys() []K { return slices.Clone(m.keys) }

// Values returns the values in key order.
func (m *Map[K, V]) Values() []V { return slices.Clone(m.vals) }

// All iterates over entries in key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.keys {
			if !yield(m.keys[i], m.vals[i]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return m.CloneFunc(func(v V) V { return v })
}

// CloneFunc returns a copy with each value passed through cloneV.
func (m *Map[K, V]) CloneFunc(cloneV func(V) V) *Map[K, V] {
	c := &Map[K, V]{
		cmp:  m.cmp,
		keys: slices.Clone(m.keys),
		vals: make([]V, len(m.vals)),
		rev:  make(map[V]K, len(m.rev)),
	}

	for i, v := range m.vals {
		nv := cloneV(v)
		c.vals[i] = nv
		c.rev[nv] = c.keys[i]
	}

	return c
}

// Set is an ordered set of K.
type Set[K any] struct {
	cmp  func(a, b K) int
	keys []K
}

// NewSet creates an empty set ordered by cmp.
func NewSet[K any](cmp func(a, b K) int) *Set[K] {
	return &Set[K]{cmp: cmp}
}

// Len returns the number of elements.
func (s *Set[K]) Len() int { return len(s.keys) }

// Add inserts k. It reports whether k was new.
func (s *Set[K]) Add(k K) bool {
	idx, found := slices.BinarySearchFunc(s.keys, k, s.cmp)
	if found {
		return false
	}

	s.keys = slices.Insert(s.keys, idx, k)

	return true
}

// Remove deletes k. It reports whether k was present.
func (s *Set[K]) Remove(k K) bool {
	idx, found := slices.BinarySearchFunc(s.keys, k, s.cmp)
	if !found {
		return false
	}

	s.keys = slices.Delete(s.keys, idx, idx+1)

	return true
}

// Contains reports whether k is present.
func (s *Set[K]) Contains(k K) bool {
	_, found := slices.BinarySearchFunc(s.keys, k, s.cmp)

	return found
}

// Floor returns the greatest element <= k.
func (s *Set[K]) Floor(k K) (K, bool) {
	idx, found := slices.BinarySearchFunc(s.keys, k, s.cmp)
	if !found {
		idx--
	}

	return s.at(idx)
}

// Ceil returns the least element >= k.
func (s *Set[K]) Ceil(k K) (K, bool) {
	idx, _ := slices.BinarySearchFunc(s.keys, k, s.cmp)

	return s.at(idx)
}

func (s *Set[K]) at(idx int) (K, bool) {
	if idx < 0 || idx >= len(s.keys) {
		var zero K

		return zero, false
	}

	return s.keys[idx], true
}

// All iterates over elements in order.
func (s *Set[K]) All() iter.Seq[K] {
	return slices.Values(s.keys)
}

// Items returns the elements in order.
func (s *Set[K]) Items() []K { return slices.Clone(s.keys) }
