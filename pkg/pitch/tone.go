// Package pitch models diatonic tones and pitches, intervals, tonalities,
// chords and pitch ranges.
//
// Chromatic distance counts semitones from C:0 (C:4 is 48). Diatonic distance
// counts letter steps from C:0 (C:4 is 28). Enharmonic spellings are distinct
// values with equal chromatic distance.
package pitch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pitch parsing and construction.
var (
	ErrInvalidTone       = errors.New("invalid tone")
	ErrInvalidPitch      = errors.New("invalid pitch")
	ErrOctaveRange       = errors.New("octave out of range")
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrInvalidTonality   = errors.New("invalid tonality")
	ErrInvalidChord      = errors.New("invalid chord template")
	ErrInvalidPitchRange = errors.New("invalid pitch range")
)

// Octave bounds accepted by the constructors.
const (
	MinOctave = 0
	MaxOctave = 9
)

// Letter is a diatonic letter, C through B.
type Letter int

// Letters in scale order.
const (
	C Letter = iota
	D
	E
	F
	G
	A
	B
)

const lettersPerOctave = 7

const semitonesPerOctave = 12

var letterPlacement = [lettersPerOctave]int{0, 2, 4, 5, 7, 9, 11}

var letterNames = "CDEFGAB"

func (l Letter) String() string {
	if l < C || l > B {
		return "?"
	}

	return string(letterNames[l])
}

// Placement returns the natural letter's semitone offset within the octave.
func (l Letter) Placement() int { return letterPlacement[l] }

// DiatonicTone is a letter with an alteration in semitones (-2..2).
type DiatonicTone struct {
	Letter     Letter
	Alteration int
}

// NewTone builds a tone, rejecting alterations beyond double sharp or flat.
func NewTone(l Letter, alteration int) (DiatonicTone, error) {
	if l < C || l > B || alteration < -2 || alteration > 2 {
		return DiatonicTone{}, fmt.Errorf("%w: letter %d alteration %d", ErrInvalidTone, l, alteration)
	}

	return DiatonicTone{Letter: l, Alteration: alteration}, nil
}

// ParseTone parses "C", "F#", "Bb", "G##" or "Ebb".
func ParseTone(s string) (DiatonicTone, error) {
	if s == "" {
		return DiatonicTone{}, fmt.Errorf("%w: empty", ErrInvalidTone)
	}

	idx := strings.IndexByte(letterNames, upper(s[0]))
	if idx < 0 {
		return DiatonicTone{}, fmt.Errorf("%w: %q", ErrInvalidTone, s)
	}

	alt := 0

	for _, r := range s[1:] {
		switch r {
		case '#':
			alt++
		case 'b':
			alt--
		default:
			return DiatonicTone{}, fmt.Errorf("%w: %q", ErrInvalidTone, s)
		}
	}

	t, err := NewTone(Letter(idx), alt)
	if err != nil {
		return DiatonicTone{}, fmt.Errorf("%w: %q", ErrInvalidTone, s)
	}

	return t, nil
}

// MustTone parses s and panics on error. Intended for literals.
func MustTone(s string) DiatonicTone {
	t, err := ParseTone(s)
	if err != nil {
		panic(err)
	}

	return t
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

// Placement returns the semitone offset from the natural C of the same
// octave; it may be negative (Cb) or exceed 11 (B#).
func (t DiatonicTone) Placement() int {
	return t.Letter.Placement() + t.Alteration
}

// PitchClass returns Placement modulo 12.
func (t DiatonicTone) PitchClass() int {
	return mod(t.Placement(), semitonesPerOctave)
}

// Enharmonic reports whether t and u sound the same.
func (t DiatonicTone) Enharmonic(u DiatonicTone) bool {
	return t.PitchClass() == u.PitchClass()
}

func (t DiatonicTone) String() string {
	switch {
	case t.Alteration > 0:
		return t.Letter.String() + strings.Repeat("#", t.Alteration)
	case t.Alteration < 0:
		return t.Letter.String() + strings.Repeat("b", -t.Alteration)
	default:
		return t.Letter.String()
	}
}

// toneFor spells pitch class pc using letter l, or reports false when the
// required alteration exceeds a double accidental.
func toneFor(l Letter, pc int) (DiatonicTone, bool) {
	alt := mod(pc-l.Placement()+6, semitonesPerOctave) - 6
	if alt < -2 || alt > 2 {
		return DiatonicTone{}, false
	}

	return DiatonicTone{Letter: l, Alteration: alt}, true
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}

	return r
}
