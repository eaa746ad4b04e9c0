// Package melodic runs the beat and pitch solvers as one search over a score.
//
// On-beat constraints go to the beat solver. Each beat record it produces is
// applied to a copy of the line, and the pitch constraints are then solved
// against the shifted line, its shifted harmony track and the instrument's
// range.
package melodic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/instrument"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/beatsolver"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/pitchsolver"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

const (
	tracerName = "melodist"

	defaultBPM   = 60
	defaultBeats = 4
)

// Sentinel errors.
var (
	ErrNoInstrument = errors.New("score has no instrument")
	ErrNoLine       = errors.New("score has no line")
	ErrNoTrack      = errors.New("score has no harmonic context track")
	ErrNoResult     = errors.New("no such beat result")
)

// Score is the material a melodic solve runs over. A nil Tempo means 60
// quarter beats per minute, a nil TS means 4/4.
type Score struct {
	Line       *note.Line
	Track      *harmony.Track
	Tempo      *meter.TempoSequence
	TS         *meter.TSSequence
	Pickup     timing.Duration
	Instrument *instrument.Instrument
}

func (s *Score) validate() error {
	switch {
	case s.Line == nil:
		return ErrNoLine
	case s.Track == nil:
		return ErrNoTrack
	case s.Instrument == nil:
		return ErrNoInstrument
	}

	return nil
}

// Option configures a Solver.
type Option func(*Solver)

// WithInstanceLimit caps the pitch solutions per beat record.
func WithInstanceLimit(n int) Option {
	return func(s *Solver) { s.pitchLimit = n }
}

// WithBeatLimit caps the number of beat records.
func WithBeatLimit(n int) Option {
	return func(s *Solver) { s.beatLimit = n }
}

// WithAcceptPartials keeps p-maps the pitch search could not complete.
func WithAcceptPartials(accept bool) Option {
	return func(s *Solver) { s.acceptPartials = accept }
}

// WithSearchMeasures bounds how far the beat solver may move a cover.
func WithSearchMeasures(n int) Option {
	return func(s *Solver) { s.measures = n }
}

// WithLogger sets the logger passed down to both solvers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer for solve spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Solver) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics records every run on m.
func WithMetrics(m *observability.SolverMetrics) Option {
	return func(s *Solver) { s.metrics = m }
}

// Solver is a reusable melodic solver configuration.
type Solver struct {
	pitchLimit     int
	beatLimit      int
	acceptPartials bool
	measures       int

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.SolverMetrics
}

// New creates a Solver.
func New(opts ...Option) *Solver {
	s := &Solver{
		pitchLimit: pitchsolver.Unlimited,
		measures:   beatsolver.DefaultSearchMeasures,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Variant is one beat record together with the pitch search run on it.
type Variant struct {
	Beat  *beatsolver.PDI
	Line  *note.Line
	Pitch *pitchsolver.Result
}

// Results holds the outcome of a melodic solve. BeatResults and
// PitchResults are parallel: PitchResults[i] was solved over BeatResults[i].
type Results struct {
	BeatResults  []*beatsolver.PDI
	PitchResults []*pitchsolver.Result

	lines []*note.Line
}

// Len returns the number of beat records.
func (r *Results) Len() int { return len(r.BeatResults) }

// Variant returns the i-th beat record with its pitch result.
func (r *Results) Variant(i int) (Variant, bool) {
	if i < 0 || i >= len(r.BeatResults) {
		return Variant{}, false
	}

	return Variant{Beat: r.BeatResults[i], Line: r.lines[i], Pitch: r.PitchResults[i]}, true
}

// Solutions counts the complete pitch assignments over all beat records.
func (r *Results) Solutions() int {
	n := 0

	for _, pr := range r.PitchResults {
		if pr != nil {
			n += len(pr.Solutions)
		}
	}

	return n
}

// Apply builds the final line for beat record beatIdx with the pitches of
// pm, which should come from PitchResults[beatIdx]. A nil pm yields the
// beat-shifted line alone.
func (r *Results) Apply(beatIdx int, pm *constraint.PMap) (*note.Line, error) {
	if beatIdx < 0 || beatIdx >= len(r.lines) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoResult, beatIdx, len(r.lines))
	}

	if pm == nil {
		return r.lines[beatIdx].Clone(), nil
	}

	return pitchsolver.Apply(r.lines[beatIdx], pm)
}

// Lines applies every complete pitch solution, beat record by beat record.
func (r *Results) Lines() ([]*note.Line, error) {
	var out []*note.Line

	for i, pr := range r.PitchResults {
		for _, pm := range pr.Solutions {
			l, err := r.Apply(i, pm)
			if err != nil {
				return nil, err
			}

			out = append(out, l)
		}
	}

	return out, nil
}

// Solve runs both stages over score. The score is not modified. An
// infeasible beat stage yields empty results and no error. On cancellation
// the results gathered so far are returned with the context's error.
func (s *Solver) Solve(ctx context.Context, score *Score, constraints []constraint.Constraint) (*Results, error) {
	if err := score.validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "melodic.solve", trace.WithAttributes(
		attribute.Int("solver.constraints", len(constraints)),
		attribute.String("solver.instrument", score.Instrument.Name),
	))
	defer span.End()

	res, err := s.solve(ctx, score, constraints)

	s.metrics.RecordSolve(ctx, observability.SolveStats{
		Solver:    observability.SolverMelodic,
		Duration:  time.Since(started),
		Solutions: res.Solutions(),
		Err:       err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return res, err
	}

	span.SetAttributes(
		attribute.Int("beat.results", res.Len()),
		attribute.Int("pitch.solutions", res.Solutions()),
	)

	s.logger.InfoContext(ctx, "melodic solve done",
		"beat_results", res.Len(), "solutions", res.Solutions(), "elapsed", time.Since(started))

	return res, nil
}

func (s *Solver) solve(ctx context.Context, score *Score, constraints []constraint.Constraint) (*Results, error) {
	res := &Results{}
	beats, pitches := constraint.Partition(constraints)

	records, err := s.solveBeats(ctx, score, beats)
	if err != nil {
		return res, err
	}

	actors := constraint.ActorsOf(pitches)

	// Node ids survive cloning and beat shifts, so the identity map retargets
	// each pitch constraint onto the shifted copy.
	identity := make(map[note.NodeID]note.NodeID, len(actors))
	for _, a := range actors {
		identity[a] = a
	}

	for i, pdi := range records {
		line, err := pdi.Apply()
		if err != nil {
			return res, fmt.Errorf("apply beat record %d: %w", i, err)
		}

		retargeted := make([]constraint.Constraint, len(pitches))
		for j, c := range pitches {
			retargeted[j] = c.Clone(identity)
		}

		pr, err := s.solvePitches(ctx, i, pdi, line, score.Instrument, retargeted, actors)
		if pr != nil {
			res.BeatResults = append(res.BeatResults, pdi)
			res.PitchResults = append(res.PitchResults, pr)
			res.lines = append(res.lines, line)
		}

		if err != nil {
			return res, err
		}
	}

	return res, nil
}

func (s *Solver) solveBeats(ctx context.Context, score *Score, beats []*constraint.OnBeat) ([]*beatsolver.PDI, error) {
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "beat.solve", trace.WithAttributes(attribute.Int("beat.constraints", len(beats))))
	defer span.End()

	tempo := score.Tempo
	if tempo == nil {
		tempo = meter.NewTempoSequence(meter.MustTempo(defaultBPM))
	}

	ts := score.TS
	if ts == nil {
		ts = meter.NewTSSequence(meter.MustTimeSignature(defaultBeats, timing.Dur(1, 4)))
	}

	bs, err := beatsolver.New(beatsolver.Problem{
		Line:   score.Line,
		Tempo:  tempo,
		TS:     ts,
		Track:  score.Track,
		Pickup: score.Pickup,
	}, beats,
		beatsolver.WithSearchMeasures(s.measures),
		beatsolver.WithInstanceLimit(s.beatLimit),
		beatsolver.WithLogger(s.logger),
	)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("beat stage: %w", err)
	}

	records, err := bs.Solve(ctx)

	s.metrics.RecordSolve(ctx, observability.SolveStats{
		Solver:    observability.SolverBeat,
		Duration:  time.Since(started),
		Solutions: len(records),
		Err:       err,
	})

	span.SetAttributes(attribute.Int("beat.covers", len(bs.Covers())), attribute.Int("beat.results", len(records)))

	if err != nil {
		span.RecordError(err)

		return records, err
	}

	return records, nil
}

func (s *Solver) solvePitches(
	ctx context.Context,
	idx int,
	pdi *beatsolver.PDI,
	line *note.Line,
	in *instrument.Instrument,
	pitches []constraint.Constraint,
	actors []note.NodeID,
) (*pitchsolver.Result, error) {
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, observability.SpanPitchSolve, trace.WithAttributes(
		attribute.Int("pitch.variant", idx),
		attribute.Int("pitch.actors", len(actors)),
	))
	defer span.End()

	conv, err := pdi.Timeline()
	if err != nil {
		return nil, fmt.Errorf("beat record %d timeline: %w", idx, err)
	}

	pm, err := constraint.Build(line, pdi.Track, in.Range, actors)
	if err != nil {
		return nil, fmt.Errorf("beat record %d: %w", idx, err)
	}

	pm.Timeline = conv

	ps := pitchsolver.New(pitches,
		pitchsolver.WithInstanceLimit(s.pitchLimit),
		pitchsolver.WithAcceptPartials(s.acceptPartials),
		pitchsolver.WithLogger(s.logger),
	)

	pr, err := ps.Solve(ctx, pm)

	stats := observability.SolveStats{Solver: observability.SolverPitch, Duration: time.Since(started), Err: err}
	if pr != nil {
		stats.Solutions = len(pr.Solutions)
		stats.Visits = pr.Visits

		span.SetAttributes(attribute.Int("pitch.solutions", len(pr.Solutions)), attribute.Int("pitch.visits", pr.Visits))
	}

	s.metrics.RecordSolve(ctx, stats)

	if err != nil {
		span.RecordError(err)

		return pr, fmt.Errorf("pitch stage, beat record %d: %w", idx, err)
	}

	s.logger.DebugContext(ctx, "pitch stage done", "variant", idx, "solutions", len(pr.Solutions), "visits", pr.Visits)

	return pr, nil
}
