package melodic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/instrument"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

var quarter = timing.Dur(1, 4)

// score builds C D E F quarters under 3/4 at 60 bpm over C-Major I, sung in C:4..C:5.
func score(t *testing.T, hcLength timing.Duration) (*Score, []note.NodeID) {
	t.Helper()

	l := note.NewLine()
	ids := make([]note.NodeID, 0, 4)

	for _, p := range []string{"C:4", "D:4", "E:4", "F:4"} {
		pp := pitch.MustPitch(p)

		id, err := l.AddNote(note.Root, note.Spec{Pitch: &pp, Base: quarter})
		require.NoError(t, err)

		ids = append(ids, id)
	}

	return &Score{
		Line:       l,
		Track:      harmony.NewTrack(harmony.MustParse("C-Major", "I", hcLength)),
		Tempo:      meter.NewTempoSequence(meter.MustTempo(60)),
		TS:         meter.NewTSSequence(meter.MustTimeSignature(3, quarter)),
		Instrument: &instrument.Instrument{Name: "Test", Range: pitch.MustRange("C:4..C:5")},
	}, ids
}

// TestSolve_NoConstraints verifies an unconstrained score comes back unchanged.
func TestSolve_NoConstraints(t *testing.T) {
	t.Parallel()

	sc, _ := score(t, timing.Dur(2, 1))

	res, err := New().Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.True(t, res.BeatResults[0].IsZero())
	require.Len(t, res.PitchResults[0].Solutions, 1)

	out, err := res.Apply(0, res.PitchResults[0].Solutions[0])
	require.NoError(t, err)
	assert.Equal(t, sc.Line.String(), out.String())
}

// TestSolve_BeatThenPitch verifies the pitch stage runs on the shifted line.
func TestSolve_BeatThenPitch(t *testing.T) {
	t.Parallel()

	sc, n := score(t, timing.Dur(2, 1))
	cs := []constraint.Constraint{
		constraint.NewOnBeat(n[2], meter.Strong),
		constraint.NewChordalPitch(n[2]),
		constraint.NewChordalPitch(n[3]),
	}

	res, err := New().Solve(context.Background(), sc, cs)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "1/4", res.BeatResults[0].Delta(n[2]).String())
	assert.Equal(t, 16, res.Solutions())

	v, ok := res.Variant(0)
	require.True(t, ok)
	assert.Equal(t, "3/4", v.Line.AbsolutePosition(n[2]).String())

	lines, err := res.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 16)

	chord := pitch.NewChord(pitch.MustChordTemplate("I"), pitch.MustTonality("C-Major"))

	for _, l := range lines {
		assert.Equal(t, "1", l.AbsolutePosition(n[3]).String())

		for _, id := range n[2:] {
			p, ok := l.Pitch(id)
			require.True(t, ok)
			assert.True(t, chord.ContainsClass(p.Tone), "%s is not a chord tone", p)
		}
	}

	p, _ := sc.Line.Pitch(n[2])
	assert.Equal(t, "E:4", p.String(), "source line must not change")
	assert.Equal(t, "1/2", sc.Line.AbsolutePosition(n[2]).String())
}

// TestSolve_BeatInfeasible verifies an impossible beat gives empty results.
func TestSolve_BeatInfeasible(t *testing.T) {
	t.Parallel()

	sc, n := score(t, timing.Dur(2, 1))

	ob, err := constraint.NewOnBeatIDs(n[1], 5)
	require.NoError(t, err)

	res, err := New().Solve(context.Background(), sc, []constraint.Constraint{ob, constraint.NewChordalPitch(n[1])})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Zero(t, res.Solutions())

	_, err = res.Apply(0, nil)
	require.ErrorIs(t, err, ErrNoResult)
}

// TestSolve_Validation verifies incomplete scores are rejected.
func TestSolve_Validation(t *testing.T) {
	t.Parallel()

	sc, _ := score(t, timing.Dur(2, 1))
	sc.Instrument = nil

	_, err := New().Solve(context.Background(), sc, nil)
	require.ErrorIs(t, err, ErrNoInstrument)

	_, err = New().Solve(context.Background(), &Score{}, nil)
	require.ErrorIs(t, err, ErrNoLine)

	sc, _ = score(t, timing.Dur(2, 1))
	sc.Track = nil

	_, err = New().Solve(context.Background(), sc, nil)
	require.ErrorIs(t, err, ErrNoTrack)
}

// TestSolve_NoHarmonicContext verifies actors past the track are reported.
func TestSolve_NoHarmonicContext(t *testing.T) {
	t.Parallel()

	sc, n := score(t, timing.Dur(1, 2))

	_, err := New().Solve(context.Background(), sc, []constraint.Constraint{constraint.NewChordalPitch(n[3])})
	require.ErrorIs(t, err, constraint.ErrNoContext)
}

// TestSolve_Cancelled verifies cancellation surfaces the context error.
func TestSolve_Cancelled(t *testing.T) {
	t.Parallel()

	sc, n := score(t, timing.Dur(2, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Solve(ctx, sc, []constraint.Constraint{constraint.NewOnBeat(n[2], meter.Strong)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Solutions())
}

// TestSolve_InstanceLimit verifies the limit applies per beat record.
func TestSolve_InstanceLimit(t *testing.T) {
	t.Parallel()

	sc, n := score(t, timing.Dur(2, 1))

	res, err := New(WithInstanceLimit(3)).Solve(context.Background(), sc,
		[]constraint.Constraint{constraint.NewChordalPitch(n[0]), constraint.NewChordalPitch(n[1])})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Solutions())
}

// TestSolve_Telemetry verifies spans and metrics for each stage.
func TestSolve_Telemetry(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans), sdktrace.WithSampler(sdktrace.AlwaysSample()))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sm, err := observability.NewSolverMetrics(mp.Meter("test"))
	require.NoError(t, err)

	sc, n := score(t, timing.Dur(2, 1))
	s := New(WithTracer(tp.Tracer(tracerName)), WithMetrics(sm))

	_, err = s.Solve(context.Background(), sc, []constraint.Constraint{
		constraint.NewOnBeat(n[2], meter.Strong),
		constraint.NewChordalPitch(n[2]),
	})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sp := range spans.GetSpans() {
		names[sp.Name] = true
	}

	assert.True(t, names["melodic.solve"])
	assert.True(t, names["beat.solve"])
	assert.True(t, names[observability.SpanPitchSolve])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total *metricdata.Metrics

	for i := range rm.ScopeMetrics {
		for j := range rm.ScopeMetrics[i].Metrics {
			if rm.ScopeMetrics[i].Metrics[j].Name == "melodist.solve.total" {
				total = &rm.ScopeMetrics[i].Metrics[j]
			}
		}
	}

	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 3)
}
