// Package mapx provides an insertion-ordered generic set.
package mapx

import (
	"iter"
	"slices"
)

// InsertionSet is a set that iterates in insertion order.
type InsertionSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

// NewInsertionSet creates a set holding items in order, skipping duplicates.
func NewInsertionSet[T comparable](items ...T) *InsertionSet[T] {
	s := &InsertionSet[T]{index: make(map[T]struct{}, len(items))}

	for _, it := range items {
		s.Add(it)
	}

	return s
}

// Add appends v if absent. It reports whether v was new.
func (s *InsertionSet[T]) Add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}

	if _, ok := s.index[v]; ok {
		return false
	}

	s.index[v] = struct{}{}
	s.items = append(s.items, v)

	return true
}

// Contains reports whether v is present.
func (s *InsertionSet[T]) Contains(v T) bool {
	if s == nil {
		return false
	}

	_, ok := s.index[v]

	return ok
}

// Len returns the number of elements.
func (s *InsertionSet[T]) Len() int {
	if s == nil {
		return 0
	}

	return len(s.items)
}

// Items returns the elements in insertion order.
func (s *InsertionSet[T]) Items() []T {
	if s == nil {
		return nil
	}

	return slices.Clone(s.items)
}

// All iterates over the elements in insertion order.
func (s *InsertionSet[T]) All() iter.Seq[T] {
	if s == nil {
		return func(func(T) bool) {}
	}

	return slices.Values(s.items)
}

// Filter returns the elements of s accepted by keep, in order.
func (s *InsertionSet[T]) Filter(keep func(T) bool) *InsertionSet[T] {
	out := NewInsertionSet[T]()

	for _, v := range s.items {
		if keep(v) {
			out.Add(v)
		}
	}

	return out
}

// Clone returns an independent copy.
func (s *InsertionSet[T]) Clone() *InsertionSet[T] {
	return NewInsertionSet(s.items...)
}
