// Package pitchsolver assigns pitches to the actors of a p-map so that a set
// of pitch constraints holds.
//
// The search is a backtracking walk with forward filtering. Actors are ranked
// once by the size of their candidate set; the solver visits the first
// unassigned actor in that ranking, tries each candidate and extends every
// surviving assignment through the actor's peers. Partial p-maps that still
// hold unassigned actors are queued and resumed with the next ranked actor.
package pitchsolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

// Sentinel errors.
var (
	ErrPoliciesInsufficient = errors.New("policies insufficient for solution")
	ErrUnknownActor         = errors.New("constraint actor has no p-map slot")
)

// Unlimited disables the instance limit.
const Unlimited = -1

// Option configures a Solver.
type Option func(*Solver)

// WithInstanceLimit stops the search once n full solutions are found.
// Unlimited (or any n <= 0) searches exhaustively.
func WithInstanceLimit(n int) Option {
	return func(s *Solver) {
		s.limit = n
	}
}

// WithAcceptPartials makes Solve also report p-maps that could not be completed.
func WithAcceptPartials(accept bool) Option {
	return func(s *Solver) {
		s.acceptPartials = accept
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

// Solver searches pitch assignments for a fixed set of constraints.
type Solver struct {
	constraints []constraint.Constraint
	byActor     map[note.NodeID][]constraint.Constraint

	limit          int
	acceptPartials bool
	logger         *slog.Logger
}

// New creates a solver over constraints. OnBeat constraints belong to the
// beat solver and must be partitioned out by the caller.
func New(constraints []constraint.Constraint, opts ...Option) *Solver {
	s := &Solver{
		constraints: slices.Clone(constraints),
		byActor:     make(map[note.NodeID][]constraint.Constraint),
		limit:       Unlimited,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, c := range s.constraints {
		for a := range mapx.NewInsertionSet(c.Actors()...).All() {
			s.byActor[a] = append(s.byActor[a], c)
		}
	}

	return s
}

// Constraints returns the solver's constraints.
func (s *Solver) Constraints() []constraint.Constraint { return slices.Clone(s.constraints) }

// Result holds the outcome of a search.
type Result struct {
	// Solutions are complete p-maps on which every constraint verifies.
	Solutions []*constraint.PMap
	// Partials are p-maps that could not be extended; filled only when
	// partials are accepted.
	Partials []*constraint.PMap
	// Visits counts actor visits.
	Visits int
}

// Solve searches assignments for the unassigned actors of pm. The input is
// not modified. On cancellation the solutions found so far are returned with
// the context's error.
func (s *Solver) Solve(ctx context.Context, pm *constraint.PMap) (*Result, error) {
	start := pm.Clone()
	res := &Result{}

	for _, c := range s.constraints {
		for _, a := range c.Actors() {
			if !start.Contains(a) {
				return nil, fmt.Errorf("%w: %d in %s", ErrUnknownActor, a, c)
			}
		}
	}

	for _, c := range s.constraints {
		if s.settled(start, c) && !c.Verify(start) {
			s.logger.DebugContext(ctx, "pitch solve: preassigned actors violate constraint", "constraint", c.String())

			return res, nil
		}
	}

	open := start.Unassigned()
	if len(open) == 0 {
		if s.verifyAll(start) {
			res.Solutions = append(res.Solutions, start)
		}

		return res, nil
	}

	for _, a := range open {
		if len(s.byActor[a]) == 0 {
			return nil, fmt.Errorf("%w: actor %d has no constraint", ErrPoliciesInsufficient, a)
		}
	}

	sr := &search{Solver: s, ctx: ctx, res: res, ranking: s.rank(start, open)}
	sr.run(start)

	s.logger.DebugContext(ctx, "pitch solve done",
		"actors", start.Len(), "solutions", len(res.Solutions), "partials", len(res.Partials), "visits", res.Visits)

	return res, sr.err
}

// rank orders actors by ascending candidate-set size, ties kept in p-map order.
func (s *Solver) rank(pm *constraint.PMap, actors []note.NodeID) []note.NodeID {
	sizes := make(map[note.NodeID]int, len(actors))
	for _, a := range actors {
		sizes[a] = s.candidates(pm, a).Len()
	}

	out := slices.Clone(actors)
	slices.SortStableFunc(out, func(a, b note.NodeID) int { return cmp.Compare(sizes[a], sizes[b]) })

	return out
}

// candidates gathers the pitches any constraint on actor proposes and keeps
// those every constraint admits, ascending. A pitch only one constraint
// names, such as a chromatic FixedPitch, survives constraints that merely
// bound it. The first proposal of a sound fixes its spelling.
func (s *Solver) candidates(pm *constraint.PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	cs := s.byActor[actor]

	var proposed []pitch.DiatonicPitch

	for _, c := range cs {
		for p := range c.Values(pm, actor).All() {
			if !slices.ContainsFunc(proposed, p.Enharmonic) {
				proposed = append(proposed, p)
			}
		}
	}

	slices.SortStableFunc(proposed, pitch.Compare)

	out := mapx.NewInsertionSet[pitch.DiatonicPitch]()

	for _, p := range proposed {
		if !slices.ContainsFunc(cs, func(c constraint.Constraint) bool { return !constraint.Admits(c, pm, actor, p) }) {
			out.Add(p)
		}
	}

	return out
}

// settled reports whether every actor of c is assigned in pm.
func (s *Solver) settled(pm *constraint.PMap, c constraint.Constraint) bool {
	for _, a := range c.Actors() {
		if _, ok := pm.Assigned(a); !ok {
			return false
		}
	}

	return true
}

func (s *Solver) verifyAll(pm *constraint.PMap) bool {
	for _, c := range s.constraints {
		if !c.Verify(pm) {
			return false
		}
	}

	return true
}

// consistent verifies actor's constraints whose actors are all assigned.
func (s *Solver) consistent(pm *constraint.PMap, actor note.NodeID) bool {
	for _, c := range s.byActor[actor] {
		if s.settled(pm, c) && !c.Verify(pm) {
			return false
		}
	}

	return true
}

// peers returns the unassigned actors sharing a constraint with actor.
func (s *Solver) peers(pm *constraint.PMap, actor note.NodeID) []note.NodeID {
	out := mapx.NewInsertionSet[note.NodeID]()

	for _, c := range s.byActor[actor] {
		for _, a := range c.Actors() {
			if _, ok := pm.Assigned(a); !ok && a != actor {
				out.Add(a)
			}
		}
	}

	return out.Items()
}

// search is the state of one Solve call.
type search struct {
	*Solver

	ctx     context.Context
	res     *Result
	ranking []note.NodeID
	err     error
}

func (sr *search) run(start *constraint.PMap) {
	queue := []*constraint.PMap{start}

	for len(queue) > 0 && sr.err == nil && !sr.full(0) {
		cur := queue[0]
		queue = queue[1:]

		actor, ok := sr.next(cur)
		if !ok {
			if sr.verifyAll(cur) {
				sr.res.Solutions = append(sr.res.Solutions, cur)
			}

			continue
		}

		found := sr.visit(cur, actor)
		if len(found) == 0 && sr.acceptPartials && sr.err == nil {
			sr.res.Partials = append(sr.res.Partials, cur)
		}

		for _, r := range found {
			if !r.Complete() {
				queue = append(queue, r)

				continue
			}

			if sr.full(0) {
				break
			}

			if sr.verifyAll(r) {
				sr.res.Solutions = append(sr.res.Solutions, r)
			}
		}
	}
}

// next returns the first ranked actor still unassigned in pm.
func (sr *search) next(pm *constraint.PMap) (note.NodeID, bool) {
	for _, a := range sr.ranking {
		if _, ok := pm.Assigned(a); !ok {
			return a, true
		}
	}

	return note.None, false
}

// full reports whether the instance limit is met counting pending extra
// complete solutions.
func (sr *search) full(pending int) bool {
	return sr.limit > 0 && len(sr.res.Solutions)+pending >= sr.limit
}

// visit assigns each candidate of actor in turn and extends the assignment
// through actor's peers. A candidate is dropped as soon as one peer admits
// no extension.
func (sr *search) visit(pm *constraint.PMap, actor note.NodeID) []*constraint.PMap {
	if err := sr.ctx.Err(); err != nil {
		sr.err = err

		return nil
	}

	sr.res.Visits++

	var (
		out      []*constraint.PMap
		complete int
	)

	for v := range sr.candidates(pm, actor).All() {
		q := pm.Clone()
		q.Assign(actor, v)

		if !sr.consistent(q, actor) {
			continue
		}

		partials := []*constraint.PMap{q}

		for _, peer := range sr.peers(q, actor) {
			var extended []*constraint.PMap

			for _, p := range partials {
				if _, ok := p.Assigned(peer); ok {
					extended = append(extended, p)

					continue
				}

				extended = append(extended, sr.visit(p, peer)...)
			}

			partials = extended
			if len(partials) == 0 || sr.err != nil {
				break
			}
		}

		for _, p := range partials {
			if p.Complete() {
				complete++
			}
		}

		out = append(out, partials...)

		if sr.err != nil || sr.full(complete) {
			break
		}
	}

	return out
}

// Apply returns a copy of line with every assigned actor of pm set to its
// pitch. Ties left between differing pitches are broken.
func Apply(line *note.Line, pm *constraint.PMap) (*note.Line, error) {
	out := line.Clone()

	for _, a := range pm.Actors() {
		p, ok := pm.Assigned(a)
		if !ok {
			continue
		}

		if err := out.SetPitch(a, p); err != nil {
			return nil, fmt.Errorf("apply pitch to actor %d: %w", a, err)
		}
	}

	out.PruneTies()

	return out, nil
}
