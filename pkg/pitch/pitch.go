package pitch

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// DiatonicPitch is a tone in a specific octave.
type DiatonicPitch struct {
	Octave int
	Tone   DiatonicTone
}

// NewPitch builds a pitch, validating the octave.
func NewPitch(tone DiatonicTone, octave int) (DiatonicPitch, error) {
	if octave < MinOctave || octave > MaxOctave {
		return DiatonicPitch{}, fmt.Errorf("%w: %d", ErrOctaveRange, octave)
	}

	return DiatonicPitch{Octave: octave, Tone: tone}, nil
}

// ParsePitch parses "C:4", "F#:3" or "Bb:5".
func ParsePitch(s string) (DiatonicPitch, error) {
	toneText, octText, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return DiatonicPitch{}, fmt.Errorf("%w: %q", ErrInvalidPitch, s)
	}

	tone, err := ParseTone(toneText)
	if err != nil {
		return DiatonicPitch{}, fmt.Errorf("%w: %w", ErrInvalidPitch, err)
	}

	octave, err := strconv.Atoi(octText)
	if err != nil {
		return DiatonicPitch{}, fmt.Errorf("%w: %q", ErrInvalidPitch, s)
	}

	return NewPitch(tone, octave)
}

// MustPitch parses s and panics on error. Intended for literals.
func MustPitch(s string) DiatonicPitch {
	p, err := ParsePitch(s)
	if err != nil {
		panic(err)
	}

	return p
}

// Chromatic returns the semitone count from C:0.
func (p DiatonicPitch) Chromatic() int {
	return p.Octave*semitonesPerOctave + p.Tone.Placement()
}

// Diatonic returns the letter-step count from C:0.
func (p DiatonicPitch) Diatonic() int {
	return p.Octave*lettersPerOctave + int(p.Tone.Letter)
}

// Enharmonic reports whether p and q sound the same.
func (p DiatonicPitch) Enharmonic(q DiatonicPitch) bool {
	return p.Chromatic() == q.Chromatic()
}

func (p DiatonicPitch) String() string {
	return p.Tone.String() + ":" + strconv.Itoa(p.Octave)
}

// Compare orders pitches by chromatic then diatonic distance.
func Compare(p, q DiatonicPitch) int {
	if c := cmp.Compare(p.Chromatic(), q.Chromatic()); c != 0 {
		return c
	}

	return cmp.Compare(p.Diatonic(), q.Diatonic())
}

// FromDiatonic builds the pitch with the given diatonic distance and alteration.
func FromDiatonic(distance, alteration int) DiatonicPitch {
	return DiatonicPitch{
		Octave: floorDiv(distance, lettersPerOctave),
		Tone:   DiatonicTone{Letter: Letter(mod(distance, lettersPerOctave)), Alteration: alteration},
	}
}

// SpellChromatic returns a spelling of chromatic distance cd. Tones of t are
// preferred; otherwise sharps are used. t may be nil.
func SpellChromatic(cd int, t *Tonality) DiatonicPitch {
	pc := mod(cd, semitonesPerOctave)

	if t != nil {
		for _, tone := range t.Tones() {
			if tone.PitchClass() == pc {
				return pitchOf(tone, cd)
			}
		}
	}

	for l := C; l <= B; l++ {
		if l.Placement() == pc {
			return pitchOf(DiatonicTone{Letter: l}, cd)
		}
	}

	for l := C; l <= B; l++ {
		if tone, ok := toneFor(l, pc); ok && tone.Alteration == 1 {
			return pitchOf(tone, cd)
		}
	}

	return pitchOf(DiatonicTone{Letter: C, Alteration: pc}, cd)
}

// Respell returns the spelling of p using tone, keeping its chromatic distance.
// It reports false when tone is not enharmonic to p's tone.
func Respell(p DiatonicPitch, tone DiatonicTone) (DiatonicPitch, bool) {
	if !tone.Enharmonic(p.Tone) {
		return DiatonicPitch{}, false
	}

	return pitchOf(tone, p.Chromatic()), true
}

// pitchOf places tone in the octave that yields chromatic distance cd.
func pitchOf(tone DiatonicTone, cd int) DiatonicPitch {
	return DiatonicPitch{Octave: floorDiv(cd-tone.Placement(), semitonesPerOctave), Tone: tone}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
