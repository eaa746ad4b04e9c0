// Package problem reads solve requests from YAML or JSON documents.
//
// A document names a melody in line notation, an instrument or explicit
// range, optional meter and tempo, and constraints whose actors are given
// as 0-based indexes into the line's notes:
//
//	line: "<C-Major: I> qC:4 D E F"
//	instrument: Violin
//	tempo: 90
//	time_signature: {beats: 3, beat: "1/4"}
//	constraints:
//	  - {type: chordal, notes: [1, 2]}
//	  - {type: on_beat, notes: [2], beat: Strong}
package problem

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/curve"
	"github.com/Sumatoshi-tech/melodist/pkg/instrument"
	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

//go:embed schema.json
var schemaJSON []byte

// Sentinel errors.
var (
	ErrSchema     = errors.New("problem does not match schema")
	ErrNoteIndex  = errors.New("note index out of range")
	ErrConstraint = errors.New("invalid constraint")
)

// Schema returns the JSON schema problem documents are validated against.
func Schema() []byte { return bytes.Clone(schemaJSON) }

// SchemaError lists every schema violation of a document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchema, strings.Join(e.Violations, "; "))
}

// Unwrap returns ErrSchema.
func (e *SchemaError) Unwrap() error { return ErrSchema }

// TimeSignature is the document form of a meter.
type TimeSignature struct {
	Beats   int      `yaml:"beats" json:"beats"`
	Beat    string   `yaml:"beat,omitempty" json:"beat,omitempty"`
	Pattern []string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// SolverSettings are per-document solver options.
type SolverSettings struct {
	InstanceLimit  int  `yaml:"instance_limit,omitempty" json:"instance_limit,omitempty"`
	BeatLimit      int  `yaml:"beat_limit,omitempty" json:"beat_limit,omitempty"`
	AcceptPartials bool `yaml:"accept_partials,omitempty" json:"accept_partials,omitempty"`
	SearchMeasures int  `yaml:"search_measures,omitempty" json:"search_measures,omitempty"`
}

// Spec is one constraint of a document.
type Spec struct {
	Type    string    `yaml:"type" json:"type"`
	Notes   []int     `yaml:"notes" json:"notes"`
	Degrees []int     `yaml:"degrees,omitempty" json:"degrees,omitempty"`
	Pitch   string    `yaml:"pitch,omitempty" json:"pitch,omitempty"`
	Pitches []string  `yaml:"pitches,omitempty" json:"pitches,omitempty"`
	Range   string    `yaml:"range,omitempty" json:"range,omitempty"`
	Op      string    `yaml:"op,omitempty" json:"op,omitempty"`
	Steps   int       `yaml:"steps,omitempty" json:"steps,omitempty"`
	Up      string    `yaml:"up,omitempty" json:"up,omitempty"`
	Down    string    `yaml:"down,omitempty" json:"down,omitempty"`
	Lower   int       `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper   int       `yaml:"upper,omitempty" json:"upper,omitempty"`
	Deltas  []int     `yaml:"deltas,omitempty" json:"deltas,omitempty"`
	Beat    string    `yaml:"beat,omitempty" json:"beat,omitempty"`
	Beats   []int     `yaml:"beats,omitempty" json:"beats,omitempty"`
	Xs      []float64 `yaml:"xs,omitempty" json:"xs,omitempty"`
}

// Document is a decoded, schema-valid problem.
type Document struct {
	Name          string         `yaml:"name,omitempty" json:"name,omitempty"`
	Line          string         `yaml:"line" json:"line"`
	Instrument    string         `yaml:"instrument,omitempty" json:"instrument,omitempty"`
	Range         string         `yaml:"range,omitempty" json:"range,omitempty"`
	Tempo         float64        `yaml:"tempo,omitempty" json:"tempo,omitempty"`
	Pickup        string         `yaml:"pickup,omitempty" json:"pickup,omitempty"`
	TimeSignature *TimeSignature `yaml:"time_signature,omitempty" json:"time_signature,omitempty"`
	Solver        SolverSettings `yaml:"solver,omitempty" json:"solver,omitempty"`
	Constraints   []Spec         `yaml:"constraints" json:"constraints"`
}

// Decode reads a YAML or JSON document and validates it against the schema.
func Decode(r io.Reader) (*Document, error) {
	var node yaml.Node

	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Violations: []string{"empty document"}}
		}

		return nil, fmt.Errorf("decode problem: %w", err)
	}

	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}

	return &doc, nil
}

// DecodeFile reads a document from path.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open problem: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

func validate(raw any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate problem: %w", err)
	}

	if result.Valid() {
		return nil
	}

	se := &SchemaError{}
	for _, verr := range result.Errors() {
		se.Violations = append(se.Violations, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return se
}

// Problem is a document resolved into solver inputs.
type Problem struct {
	Name        string
	Score       *melodic.Score
	Constraints []constraint.Constraint
	// Notes are the line's notes in order; document indexes refer to them.
	Notes    []note.NodeID
	Settings SolverSettings
}

// Options returns the melodic solver options the document asks for.
func (p *Problem) Options() []melodic.Option {
	var opts []melodic.Option

	if p.Settings.InstanceLimit > 0 {
		opts = append(opts, melodic.WithInstanceLimit(p.Settings.InstanceLimit))
	}

	if p.Settings.BeatLimit > 0 {
		opts = append(opts, melodic.WithBeatLimit(p.Settings.BeatLimit))
	}

	if p.Settings.SearchMeasures > 0 {
		opts = append(opts, melodic.WithSearchMeasures(p.Settings.SearchMeasures))
	}

	if p.Settings.AcceptPartials {
		opts = append(opts, melodic.WithAcceptPartials(true))
	}

	return opts
}

// Build resolves the document. Instruments are looked up in catalog; a
// document range overrides the instrument's.
func (d *Document) Build(catalog *instrument.Catalog) (*Problem, error) {
	parsed, err := lineparse.Parse(d.Line)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}

	in, err := d.instrument(catalog)
	if err != nil {
		return nil, err
	}

	score := &melodic.Score{Line: parsed.Line, Track: parsed.Track, Instrument: in}

	if d.Tempo > 0 {
		t, err := meter.NewTempo(d.Tempo)
		if err != nil {
			return nil, fmt.Errorf("tempo: %w", err)
		}

		score.Tempo = meter.NewTempoSequence(t)
	}

	if d.TimeSignature != nil {
		ts, err := d.TimeSignature.build()
		if err != nil {
			return nil, err
		}

		score.TS = meter.NewTSSequence(ts)
	}

	if d.Pickup != "" {
		score.Pickup, err = timing.ParseDuration(d.Pickup)
		if err != nil {
			return nil, fmt.Errorf("pickup: %w", err)
		}
	}

	p := &Problem{Name: d.Name, Score: score, Notes: parsed.Line.AllNotes(), Settings: d.Solver}

	for i, s := range d.Constraints {
		c, err := s.build(p.Notes)
		if err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, s.Type, err)
		}

		p.Constraints = append(p.Constraints, c)
	}

	return p, nil
}

func (d *Document) instrument(catalog *instrument.Catalog) (*instrument.Instrument, error) {
	var in *instrument.Instrument

	if d.Instrument != "" {
		found, err := catalog.Get(d.Instrument)
		if err != nil {
			return nil, err
		}

		cp := *found
		in = &cp
	}

	if d.Range != "" {
		r, err := pitch.ParseRange(d.Range)
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}

		if in == nil {
			in = &instrument.Instrument{Name: "custom"}
		}

		in.Range = r
	}

	return in, nil
}

func (ts *TimeSignature) build() (meter.TimeSignature, error) {
	beat := timing.Dur(1, 4)

	if ts.Beat != "" {
		var err error

		beat, err = timing.ParseDuration(ts.Beat)
		if err != nil {
			return meter.TimeSignature{}, fmt.Errorf("time signature beat: %w", err)
		}
	}

	pattern := make([]meter.BeatType, 0, len(ts.Pattern))

	for _, s := range ts.Pattern {
		bt, err := meter.ParseBeatType(s)
		if err != nil {
			return meter.TimeSignature{}, err
		}

		pattern = append(pattern, bt)
	}

	return meter.NewTimeSignature(ts.Beats, beat, pattern...)
}

func (s Spec) actors(notes []note.NodeID) ([]note.NodeID, error) {
	out := make([]note.NodeID, len(s.Notes))

	for i, idx := range s.Notes {
		if idx < 0 || idx >= len(notes) {
			return nil, fmt.Errorf("%w: %d of %d", ErrNoteIndex, idx, len(notes))
		}

		out[i] = notes[idx]
	}

	return out, nil
}

func parsePitches(ss []string) ([]pitch.DiatonicPitch, error) {
	out := make([]pitch.DiatonicPitch, len(ss))

	for i, s := range ss {
		p, err := pitch.ParsePitch(s)
		if err != nil {
			return nil, err
		}

		out[i] = p
	}

	return out, nil
}

func (s Spec) build(notes []note.NodeID) (constraint.Constraint, error) {
	a, err := s.actors(notes)
	if err != nil {
		return nil, err
	}

	single := func() (note.NodeID, error) {
		if len(a) != 1 {
			return note.None, fmt.Errorf("%w: %s takes one note, got %d", ErrConstraint, s.Type, len(a))
		}

		return a[0], nil
	}

	pair := func() (note.NodeID, note.NodeID, error) {
		if len(a) != 2 {
			return note.None, note.None, fmt.Errorf("%w: %s takes two notes, got %d", ErrConstraint, s.Type, len(a))
		}

		return a[0], a[1], nil
	}

	switch s.Type {
	case "chordal":
		n, err := single()
		if err != nil {
			return nil, err
		}

		return constraint.NewChordalPitch(n), nil
	case "scalar":
		n, err := single()
		if err != nil {
			return nil, err
		}

		return constraint.NewScalarPitch(n, s.Degrees...)
	case "fixed":
		n, err := single()
		if err != nil {
			return nil, err
		}

		p, err := pitch.ParsePitch(s.Pitch)
		if err != nil {
			return nil, err
		}

		return constraint.NewFixedPitch(n, p), nil
	case "fixed_set":
		n, err := single()
		if err != nil {
			return nil, err
		}

		ps, err := parsePitches(s.Pitches)
		if err != nil {
			return nil, err
		}

		return constraint.NewFixedPitchSelectSet(n, ps...)
	case "range":
		r, err := pitch.ParseRange(s.Range)
		if err != nil {
			return nil, err
		}

		return constraint.NewPitchRange(r, a...)
	case "equal":
		return constraint.NewEqualPitch(a...)
	case "not_equal":
		return constraint.NewNotEqualPitch(a...)
	case "compare":
		x, y, err := pair()
		if err != nil {
			return nil, err
		}

		op, err := constraint.ParseComparison(s.Op)
		if err != nil {
			return nil, err
		}

		return constraint.NewComparativePitch(x, y, op)
	case "step":
		x, y, err := pair()
		if err != nil {
			return nil, err
		}

		return constraint.NewPitchStep(x, y, s.Steps, true)
	case "relative_diatonic":
		x, y, err := pair()
		if err != nil {
			return nil, err
		}

		up, err := pitch.ParseInterval(s.Up)
		if err != nil {
			return nil, err
		}

		down, err := pitch.ParseInterval(s.Down)
		if err != nil {
			return nil, err
		}

		return constraint.NewRelativeDiatonic(x, y, up, down)
	case "relative_scalar":
		x, y, err := pair()
		if err != nil {
			return nil, err
		}

		return constraint.NewRelativeScalarStep(x, y, s.Lower, s.Upper)
	case "step_sequence":
		return constraint.NewStepSequence(a, s.Deltas)
	case "on_beat":
		n, err := single()
		if err != nil {
			return nil, err
		}

		if len(s.Beats) > 0 {
			return constraint.NewOnBeatIDs(n, s.Beats...)
		}

		bt := meter.Strong
		if s.Beat != "" {
			if bt, err = meter.ParseBeatType(s.Beat); err != nil {
				return nil, err
			}
		}

		return constraint.NewOnBeat(n, bt), nil
	case "fit":
		return s.fit(single)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrConstraint, s.Type)
	}
}

// fit builds a FitPitchToFunction through (xs[i], pitches[i]), x in whole
// notes from the line start.
func (s Spec) fit(single func() (note.NodeID, error)) (constraint.Constraint, error) {
	n, err := single()
	if err != nil {
		return nil, err
	}

	ps, err := parsePitches(s.Pitches)
	if err != nil {
		return nil, err
	}

	ys := make([]float64, len(ps))
	for i, p := range ps {
		ys[i] = float64(p.Chromatic())
	}

	var fn curve.Function

	switch len(ys) {
	case 0:
		return nil, fmt.Errorf("%w: fit needs at least one pitch", ErrConstraint)
	case 1:
		fn = curve.Constant(ys[0])
	default:
		pl, err := curve.NewPiecewiseLinear(s.Xs, ys)
		if err != nil {
			return nil, err
		}

		fn = pl
	}

	return constraint.NewFitPitchToFunction(n, fn)
}
