package pitch

import (
	"fmt"
	"slices"
	"strings"
)

// Modality is a seven-tone scale pattern.
type Modality int

// Supported modalities.
const (
	Major Modality = iota
	NaturalMinor
	HarmonicMinor
	MelodicMinor
	Dorian
	Phrygian
	Lydian
	Mixolydian
	Locrian
)

var modalityNames = map[Modality]string{
	Major:         "Major",
	NaturalMinor:  "NaturalMinor",
	HarmonicMinor: "HarmonicMinor",
	MelodicMinor:  "MelodicMinor",
	Dorian:        "Dorian",
	Phrygian:      "Phrygian",
	Lydian:        "Lydian",
	Mixolydian:    "Mixolydian",
	Locrian:       "Locrian",
}

// Semitone offsets of each degree from the tonic.
var modalityOffsets = map[Modality][lettersPerOctave]int{
	Major:         {0, 2, 4, 5, 7, 9, 11},
	NaturalMinor:  {0, 2, 3, 5, 7, 8, 10},
	HarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	MelodicMinor:  {0, 2, 3, 5, 7, 9, 11},
	Dorian:        {0, 2, 3, 5, 7, 9, 10},
	Phrygian:      {0, 1, 3, 5, 7, 8, 10},
	Lydian:        {0, 2, 4, 6, 7, 9, 11},
	Mixolydian:    {0, 2, 4, 5, 7, 9, 10},
	Locrian:       {0, 1, 3, 5, 6, 8, 10},
}

func (m Modality) String() string {
	if s, ok := modalityNames[m]; ok {
		return s
	}

	return "Unknown"
}

// ParseModality accepts the modality names, case-insensitively, plus "Minor"
// as natural minor.
func ParseModality(s string) (Modality, error) {
	if strings.EqualFold(s, "Minor") {
		return NaturalMinor, nil
	}

	for m, name := range modalityNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: modality %q", ErrInvalidTonality, s)
}

// Tonality is a tonic with a modality.
type Tonality struct {
	Tonic    DiatonicTone
	Modality Modality
	tones    []DiatonicTone
}

// NewTonality builds a tonality and spells its scale.
func NewTonality(tonic DiatonicTone, m Modality) (*Tonality, error) {
	offsets, ok := modalityOffsets[m]
	if !ok {
		return nil, fmt.Errorf("%w: modality %d", ErrInvalidTonality, m)
	}

	tones := make([]DiatonicTone, 0, lettersPerOctave)

	for i, off := range offsets {
		l := Letter(mod(int(tonic.Letter)+i, lettersPerOctave))

		tone, ok := toneFor(l, tonic.Placement()+off)
		if !ok {
			return nil, fmt.Errorf("%w: %s-%s needs triple accidentals", ErrInvalidTonality, tonic, m)
		}

		tones = append(tones, tone)
	}

	return &Tonality{Tonic: tonic, Modality: m, tones: tones}, nil
}

// ParseTonality parses "C-Major", "F#-NaturalMinor" or "Bb-Dorian".
func ParseTonality(s string) (*Tonality, error) {
	tonicText, modeText, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTonality, s)
	}

	tonic, err := ParseTone(tonicText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTonality, err)
	}

	m, err := ParseModality(modeText)
	if err != nil {
		return nil, err
	}

	return NewTonality(tonic, m)
}

// MustTonality parses s and panics on error. Intended for literals.
func MustTonality(s string) *Tonality {
	t, err := ParseTonality(s)
	if err != nil {
		panic(err)
	}

	return t
}

// Tones returns the scale tones starting at the tonic.
func (t *Tonality) Tones() []DiatonicTone {
	return slices.Clone(t.tones)
}

// Degree returns the tone of 1-based scale degree d, wrapping past 7.
func (t *Tonality) Degree(d int) DiatonicTone {
	return t.tones[mod(d-1, lettersPerOctave)]
}

// Index returns the 0-based degree of tone, or -1 if tone is not in the scale.
func (t *Tonality) Index(tone DiatonicTone) int {
	return slices.Index(t.tones, tone)
}

// Contains reports whether tone is spelled as a scale tone.
func (t *Tonality) Contains(tone DiatonicTone) bool {
	return t.Index(tone) >= 0
}

// Annotation returns the scale tone enharmonic to tone, if any.
func (t *Tonality) Annotation(tone DiatonicTone) (DiatonicTone, bool) {
	for _, st := range t.tones {
		if st.Enharmonic(tone) {
			return st, true
		}
	}

	return DiatonicTone{}, false
}

func (t *Tonality) String() string {
	return t.Tonic.String() + "-" + t.Modality.String()
}

// Equal reports whether t and u have the same tonic and modality.
func (t *Tonality) Equal(u *Tonality) bool {
	if t == nil || u == nil {
		return t == u
	}

	return t.Tonic == u.Tonic && t.Modality == u.Modality
}
