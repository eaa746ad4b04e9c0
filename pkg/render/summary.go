package render

import (
	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
)

// NoteSummary describes one note of a line.
type NoteSummary struct {
	Index    int    `json:"index"`
	Pitch    string `json:"pitch"`
	Position string `json:"position"`
	Duration string `json:"duration"`
	Tied     bool   `json:"tied,omitempty"`
}

// ContextSummary describes one harmonic context.
type ContextSummary struct {
	Position string `json:"position"`
	Duration string `json:"duration"`
	Tonality string `json:"tonality"`
	Chord    string `json:"chord"`
}

// Summary is a flat, serialisable view of a line and its track.
type Summary struct {
	Text     string           `json:"text"`
	Duration string           `json:"duration"`
	Notes    []NoteSummary    `json:"notes"`
	Contexts []ContextSummary `json:"contexts,omitempty"`
}

// Summarize flattens l and track. Positions and durations are whole-note
// fractions.
func Summarize(l *note.Line, track *harmony.Track) (*Summary, error) {
	text, err := LineText(l, track)
	if err != nil {
		return nil, err
	}

	s := &Summary{Text: text, Duration: l.TotalDuration().String()}

	for i, id := range l.AllNotes() {
		ns := NoteSummary{
			Index:    i,
			Pitch:    "R",
			Position: l.AbsolutePosition(id).String(),
			Duration: l.Duration(id).String(),
		}

		if p, ok := l.Pitch(id); ok {
			ns.Pitch = p.String()
		}

		_, ns.Tied = l.TiedTo(id)

		s.Notes = append(s.Notes, ns)
	}

	if track == nil {
		return s, nil
	}

	for _, hc := range track.Contexts() {
		s.Contexts = append(s.Contexts, ContextSummary{
			Position: hc.Position.String(),
			Duration: hc.Duration.String(),
			Tonality: hc.Tonality.String(),
			Chord:    hc.Chord.Template.String(),
		})
	}

	return s, nil
}
