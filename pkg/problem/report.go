package problem

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/constraint"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
)

// Report is the serialisable outcome of a solve.
type Report struct {
	Name        string    `json:"name,omitempty"`
	Original    string    `json:"original"`
	BeatResults int       `json:"beat_results"`
	Solutions   int       `json:"solutions"`
	Variants    []Variant `json:"variants"`
}

// Variant is one solved line in notation, with its token diff against the
// original.
type Variant struct {
	Beat     int    `json:"beat"`
	Partial  bool   `json:"partial,omitempty"`
	Text     string `json:"text"`
	Diff     string `json:"diff"`
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`

	line *note.Line
}

// Line returns the solved line.
func (v Variant) Line() *note.Line { return v.line }

// Solve runs the melodic solver over p. defaults are applied before the
// document's own settings, so the document wins. On cancellation the
// variants found so far are reported with the context's error.
func (p *Problem) Solve(ctx context.Context, defaults ...melodic.Option) (*Report, error) {
	opts := append(append([]melodic.Option(nil), defaults...), p.Options()...)

	res, solveErr := melodic.New(opts...).Solve(ctx, p.Score, p.Constraints)
	if res == nil {
		return nil, solveErr
	}

	original, err := render.LineText(p.Score.Line, p.Score.Track)
	if err != nil {
		return nil, fmt.Errorf("render original: %w", err)
	}

	rep := &Report{Name: p.Name, Original: original, BeatResults: res.Len(), Solutions: res.Solutions()}

	for i := range res.Len() {
		v, _ := res.Variant(i)
		if v.Pitch == nil {
			continue
		}

		for _, pm := range v.Pitch.Solutions {
			if err := rep.add(res, i, v, pm, false); err != nil {
				return nil, err
			}
		}

		for _, pm := range v.Pitch.Partials {
			if err := rep.add(res, i, v, pm, true); err != nil {
				return nil, err
			}
		}
	}

	return rep, solveErr
}

func (r *Report) add(res *melodic.Results, beat int, v melodic.Variant, pm *constraint.PMap, partial bool) error {
	l, err := res.Apply(beat, pm)
	if err != nil {
		return err
	}

	text, err := render.LineText(l, v.Beat.Track)
	if err != nil {
		return fmt.Errorf("render variant: %w", err)
	}

	edits := render.Diff(r.Original, text)
	ins, del := render.DiffStats(edits)

	r.Variants = append(r.Variants, Variant{
		Beat:     beat,
		Partial:  partial,
		Text:     text,
		Diff:     render.FormatDiff(edits),
		Inserted: ins,
		Deleted:  del,
		line:     l,
	})

	return nil
}

// Lines returns the solved lines of every variant, in report order.
func (r *Report) Lines() []*note.Line {
	out := make([]*note.Line, 0, len(r.Variants))
	for _, v := range r.Variants {
		out = append(out, v.line)
	}

	return out
}
