// Package event holds time-ordered event sequences with floor lookup and
// successor/predecessor navigation.
package event

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/orderedmap"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Sequence errors.
var (
	ErrNotInSequence = errors.New("event not in sequence")
	ErrNegativeTime  = errors.New("negative event time")
	ErrTimeCollision = errors.New("event time already occupied")
	ErrNegativeShift = errors.New("negative shift")
)

// Event is an object stamped with a position.
type Event[T any] struct {
	time   timing.Position
	Object T
}

// New creates a detached event.
func New[T any](at timing.Position, obj T) *Event[T] {
	return &Event[T]{time: at, Object: obj}
}

// Time returns the event's position.
func (e *Event[T]) Time() timing.Position { return e.time }

// String implements fmt.Stringer.
func (e *Event[T]) String() string { return fmt.Sprintf("%v@%s", e.Object, e.time) }

// Sequence is a strictly ordered collection of events keyed by time.
type Sequence[T any] struct {
	events *orderedmap.Map[timing.Position, *Event[T]]
}

func comparePositions(a, b timing.Position) int { return a.Cmp(b) }

// NewSequence builds a sequence from events. Later events replace earlier
// ones at the same time.
func NewSequence[T any](events ...*Event[T]) (*Sequence[T], error) {
	s := &Sequence[T]{events: orderedmap.New[timing.Position, *Event[T]](comparePositions)}

	for _, e := range events {
		if _, err := s.Add(e); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Len returns the number of events.
func (s *Sequence[T]) Len() int { return s.events.Len() }

// Add inserts e, returning the event it replaced at the same time, if any.
func (s *Sequence[T]) Add(e *Event[T]) (*Event[T], error) {
	if e.time.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeTime, e.time)
	}

	old, _ := s.events.Get(e.time)
	s.events.Insert(e.time, e)

	return old, nil
}

// Remove deletes e from the sequence.
func (s *Sequence[T]) Remove(e *Event[T]) error {
	if got, ok := s.events.Get(e.time); !ok || got != e {
		return fmt.Errorf("%w: %s", ErrNotInSequence, e)
	}

	s.events.Remove(e.time)

	return nil
}

// Move re-stamps e at a new time. The target time must be free.
func (s *Sequence[T]) Move(e *Event[T], at timing.Position) error {
	if at.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeTime, at)
	}

	if got, ok := s.events.Get(at); ok && got != e {
		return fmt.Errorf("%w: %s", ErrTimeCollision, at)
	}

	if err := s.Remove(e); err != nil {
		return err
	}

	e.time = at
	s.events.Insert(at, e)

	return nil
}

// At returns the event stamped exactly at t.
func (s *Sequence[T]) At(t timing.Position) (*Event[T], bool) { return s.events.Get(t) }

// Floor returns the latest event at or before t.
func (s *Sequence[T]) Floor(t timing.Position) (*Event[T], bool) {
	_, e, ok := s.events.Floor(t)

	return e, ok
}

// Successor returns the event following e.
func (s *Sequence[T]) Successor(e *Event[T]) (*Event[T], bool) {
	_, next, ok := s.events.Higher(e.time)

	return next, ok
}

// Predecessor returns the event preceding e.
func (s *Sequence[T]) Predecessor(e *Event[T]) (*Event[T], bool) {
	_, prev, ok := s.events.Lower(e.time)

	return prev, ok
}

// First returns the earliest event.
func (s *Sequence[T]) First() (*Event[T], bool) {
	_, e, ok := s.events.Min()

	return e, ok
}

// Last returns the latest event.
func (s *Sequence[T]) Last() (*Event[T], bool) {
	_, e, ok := s.events.Max()

	return e, ok
}

// Events returns the events in time order.
func (s *Sequence[T]) Events() []*Event[T] { return s.events.Values() }

// ShiftFrom moves every event at or after from by delta. An event at the
// origin stays put.
func (s *Sequence[T]) ShiftFrom(from timing.Position, delta timing.Duration) error {
	if delta.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeShift, delta)
	}

	if delta.IsZero() {
		return nil
	}

	var moved []*Event[T]

	for t, e := range s.events.All() {
		if t.Sign() > 0 && !t.Less(from) {
			moved = append(moved, e)
		}
	}

	for _, e := range moved {
		s.events.Remove(e.time)
	}

	for _, e := range moved {
		e.time = e.time.Add(delta)
		s.events.Insert(e.time, e)
	}

	return nil
}

// Clone returns a copy holding new events with the same objects.
func (s *Sequence[T]) Clone() *Sequence[T] {
	return s.CloneFunc(func(v T) T { return v })
}

// CloneFunc returns a copy whose event objects are copied with cloneObj.
func (s *Sequence[T]) CloneFunc(cloneObj func(T) T) *Sequence[T] {
	return &Sequence[T]{events: s.events.CloneFunc(func(e *Event[T]) *Event[T] {
		return &Event[T]{time: e.time, Object: cloneObj(e.Object)}
	})}
}
