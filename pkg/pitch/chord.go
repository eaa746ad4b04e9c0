package pitch

import (
	"fmt"
	"slices"
	"strings"
)

// ChordTemplate is a diatonic tertian chord named by a roman numeral,
// optionally with a seventh.
type ChordTemplate struct {
	Degree  int
	Seventh bool
}

var romanDegrees = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "VII": 7,
}

// ParseChordTemplate parses "I", "iv", "V7" or "vii".
func ParseChordTemplate(s string) (ChordTemplate, error) {
	text := strings.TrimSpace(s)
	seventh := strings.HasSuffix(text, "7")
	text = strings.TrimSuffix(text, "7")

	deg, ok := romanDegrees[strings.ToUpper(text)]
	if !ok {
		return ChordTemplate{}, fmt.Errorf("%w: %q", ErrInvalidChord, s)
	}

	return ChordTemplate{Degree: deg, Seventh: seventh}, nil
}

// MustChordTemplate parses s and panics on error. Intended for literals.
func MustChordTemplate(s string) ChordTemplate {
	ct, err := ParseChordTemplate(s)
	if err != nil {
		panic(err)
	}

	return ct
}

func (ct ChordTemplate) String() string {
	for name, d := range romanDegrees {
		if d == ct.Degree {
			if ct.Seventh {
				return name + "7"
			}

			return name
		}
	}

	return "?"
}

// Chord is a template realised in a tonality.
type Chord struct {
	Template ChordTemplate
	Tones    []DiatonicTone
}

// NewChord stacks thirds on the template degree of t.
func NewChord(ct ChordTemplate, t *Tonality) *Chord {
	size := 3
	if ct.Seventh {
		size = 4
	}

	tones := make([]DiatonicTone, 0, size)
	for i := range size {
		tones = append(tones, t.Degree(ct.Degree+2*i))
	}

	return &Chord{Template: ct, Tones: tones}
}

// Root returns the chord root.
func (c *Chord) Root() DiatonicTone { return c.Tones[0] }

// Contains reports whether tone is spelled as a chord tone.
func (c *Chord) Contains(tone DiatonicTone) bool {
	return slices.Contains(c.Tones, tone)
}

// ContainsClass reports whether any chord tone is enharmonic to tone.
func (c *Chord) ContainsClass(tone DiatonicTone) bool {
	return slices.ContainsFunc(c.Tones, tone.Enharmonic)
}

func (c *Chord) String() string {
	names := make([]string, 0, len(c.Tones))
	for _, t := range c.Tones {
		names = append(names, t.String())
	}

	return c.Template.String() + "[" + strings.Join(names, ",") + "]"
}
