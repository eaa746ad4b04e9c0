package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricSolveTotal     = "melodist.solve.total"
	metricSolveDuration  = "melodist.solve.duration.seconds"
	metricPitchVisits    = "melodist.pitch.visits.total"
	metricSolutionsTotal = "melodist.solutions.total"

	attrSolver  = "solver"
	attrOutcome = "outcome"

	// SolverBeat labels beat solver runs.
	SolverBeat = "beat"
	// SolverPitch labels pitch solver runs.
	SolverPitch = "pitch"
	// SolverMelodic labels whole melodic solves.
	SolverMelodic = "melodic"

	// OutcomeSolved marks a run that produced at least one solution.
	OutcomeSolved = "solved"
	// OutcomeUnsolved marks a run that finished without a solution.
	OutcomeUnsolved = "unsolved"
	// OutcomeError marks a run that failed or was cancelled.
	OutcomeError = "error"
)

// SolverMetrics holds OTel instruments for constraint solving.
type SolverMetrics struct {
	solveTotal    metric.Int64Counter
	solveDuration metric.Float64Histogram
	pitchVisits   metric.Int64Counter
	solutions     metric.Int64Counter
}

// SolveStats describes one finished solver run.
type SolveStats struct {
	Solver    string
	Duration  time.Duration
	Solutions int
	Visits    int
	Err       error
}

// Outcome classifies the run for the outcome attribute.
func (s SolveStats) Outcome() string {
	switch {
	case s.Err != nil:
		return OutcomeError
	case s.Solutions > 0:
		return OutcomeSolved
	default:
		return OutcomeUnsolved
	}
}

// NewSolverMetrics creates solver metric instruments from the given meter.
func NewSolverMetrics(mt metric.Meter) (*SolverMetrics, error) {
	in := &instruments{meter: mt}

	sm := &SolverMetrics{
		solveTotal:    in.counter(metricSolveTotal, "Total solver runs", "{run}"),
		solveDuration: in.seconds(metricSolveDuration, "Solver run duration"),
		pitchVisits:   in.counter(metricPitchVisits, "Pitch search frames visited", "{visit}"),
		solutions:     in.counter(metricSolutionsTotal, "Solutions produced", "{solution}"),
	}

	if in.err != nil {
		return nil, in.err
	}

	return sm, nil
}

// RecordSolve records one finished run. Safe to call on a nil receiver (no-op).
func (sm *SolverMetrics) RecordSolve(ctx context.Context, stats SolveStats) {
	if sm == nil {
		return
	}

	solver := attribute.String(attrSolver, stats.Solver)

	sm.solveTotal.Add(ctx, 1, metric.WithAttributes(solver, attribute.String(attrOutcome, stats.Outcome())))
	sm.solveDuration.Record(ctx, stats.Duration.Seconds(), metric.WithAttributes(solver))
	sm.solutions.Add(ctx, int64(stats.Solutions), metric.WithAttributes(solver))

	if stats.Visits > 0 {
		sm.pitchVisits.Add(ctx, int64(stats.Visits))
	}
}
