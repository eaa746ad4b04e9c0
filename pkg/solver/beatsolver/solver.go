// Package beatsolver shifts the top-level structures of a line in time so
// that notes under OnBeat constraints start on the required beats.
//
// The unit of movement is a cover: the top-level child of the line holding
// a constrained note. Covers are handled in positional order. For each cover
// the first failing actor asks its constraint for the shift onto the next
// acceptable beat; the shift is applied to a copy of the current record and
// the search recurses into the next cover.
package beatsolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Sentinel errors.
var (
	ErrDetachedActor = errors.New("actor is not a note attached to the line")
	ErrNegativeDelta = errors.New("negative cover delta")
	ErrDuplicate     = errors.New("actor has more than one on-beat constraint")
)

// DefaultSearchMeasures bounds how many measures past its start a cover may move.
const DefaultSearchMeasures = 2

// Problem is the timeline a beat search runs over.
type Problem struct {
	Line   *note.Line
	Tempo  *meter.TempoSequence
	TS     *meter.TSSequence
	Track  *harmony.Track
	Pickup timing.Duration
}

// Option configures a Solver.
type Option func(*Solver)

// WithSearchMeasures sets how many measures a cover may travel.
func WithSearchMeasures(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.measures = n
		}
	}
}

// WithInstanceLimit stops the search after n records. n <= 0 is unlimited.
func WithInstanceLimit(n int) Option {
	return func(s *Solver) {
		s.limit = n
	}
}

// WithLogger sets the logger for search diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// Solver searches cover shifts for a fixed problem.
type Solver struct {
	problem Problem

	// coverage lists the covers holding actors in positional order.
	coverage []note.NodeID
	// actorsByCover lists each cover's actors in line order.
	actorsByCover map[note.NodeID][]note.NodeID
	byActor       map[note.NodeID]*constraint.OnBeat

	measures int
	limit    int
	logger   *slog.Logger
}

// New indexes constraints against p.Line.
func New(p Problem, constraints []*constraint.OnBeat, opts ...Option) (*Solver, error) {
	s := &Solver{
		problem:       p,
		actorsByCover: make(map[note.NodeID][]note.NodeID),
		byActor:       make(map[note.NodeID]*constraint.OnBeat),
		measures:      DefaultSearchMeasures,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, c := range constraints {
		a := c.Actor()

		if a < 0 || int(a) >= p.Line.Len() || p.Line.Kind(a) != note.KindNote || !p.Line.Attached(a) {
			return nil, fmt.Errorf("%w: %d", ErrDetachedActor, a)
		}

		if _, dup := s.byActor[a]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicate, a)
		}

		s.byActor[a] = c
	}

	for _, n := range p.Line.AllNotes() {
		if _, ok := s.byActor[n]; !ok {
			continue
		}

		cover, _ := p.Line.Cover(n)
		if _, seen := s.actorsByCover[cover]; !seen {
			s.coverage = append(s.coverage, cover)
		}

		s.actorsByCover[cover] = append(s.actorsByCover[cover], n)
	}

	slices.SortStableFunc(s.coverage, func(a, b note.NodeID) int {
		return p.Line.AbsolutePosition(a).Cmp(p.Line.AbsolutePosition(b))
	})

	return s, nil
}

// Covers returns the covers holding constrained notes in positional order.
func (s *Solver) Covers() []note.NodeID { return slices.Clone(s.coverage) }

// Solve returns every record that puts each actor on an acceptable beat.
// When nothing needs to move the result is a single zero record; when no
// arrangement works it is nil. On cancellation the records found so far
// are returned with the context's error.
func (s *Solver) Solve(ctx context.Context) ([]*PDI, error) {
	p := s.problem
	root := newPDI(p.Line, p.Tempo, p.TS, p.Track, p.Pickup)

	if _, err := root.Timeline(); err != nil {
		return nil, err
	}

	var out []*PDI

	err := s.search(ctx, root, 0, &out)

	s.logger.DebugContext(ctx, "beat solve done", "covers", len(s.coverage), "results", len(out))

	return out, err
}

func (s *Solver) full(out []*PDI) bool {
	return s.limit > 0 && len(out) >= s.limit
}

func (s *Solver) search(ctx context.Context, pdi *PDI, i int, out *[]*PDI) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.full(*out) {
		return nil
	}

	if i == len(s.coverage) {
		ok, err := s.holds(pdi, s.coverage...)
		if err != nil || !ok {
			return err
		}

		*out = append(*out, pdi)

		return nil
	}

	cover := s.coverage[i]

	conv, err := pdi.Timeline()
	if err != nil {
		return err
	}

	actor, failing := s.firstFailing(pdi, cover)
	if !failing {
		return s.search(ctx, pdi, i+1, out)
	}

	start := pdi.Position(actor)
	limit := conv.TimeSignatureAt(start).MeasureDuration().ScaleInt(int64(s.measures + 1))

	for _, delta := range s.byActor[actor].Deltas(start, conv, s.measures) {
		next := pdi.Clone()
		if err := next.AlterAt(cover, delta); err != nil {
			return err
		}

		s.logger.DebugContext(ctx, "beat solve: shift cover", "cover", int(cover), "actor", int(actor), "delta", delta.String())

		if limit.Less(next.Delta(cover)) {
			continue
		}

		ok, err := s.holds(next, cover)
		if err != nil {
			return err
		}

		// Another actor in the cover may have slipped off its beat; search
		// this cover again from the shifted position.
		j := i + 1
		if !ok {
			j = i
		}

		if err := s.search(ctx, next, j, out); err != nil {
			return err
		}
	}

	return nil
}

// firstFailing returns the first actor in cover whose constraint fails under pdi.
func (s *Solver) firstFailing(pdi *PDI, cover note.NodeID) (note.NodeID, bool) {
	conv, err := pdi.Timeline()
	if err != nil {
		return note.None, false
	}

	for _, a := range s.actorsByCover[cover] {
		if !s.byActor[a].VerifyAt(pdi.Position(a), conv) {
			return a, true
		}
	}

	return note.None, false
}

// holds reports whether every actor in covers is on its beat under pdi.
func (s *Solver) holds(pdi *PDI, covers ...note.NodeID) (bool, error) {
	conv, err := pdi.Timeline()
	if err != nil {
		return false, err
	}

	for _, cover := range covers {
		for _, a := range s.actorsByCover[cover] {
			if !s.byActor[a].VerifyAt(pdi.Position(a), conv) {
				return false, nil
			}
		}
	}

	return true, nil
}
