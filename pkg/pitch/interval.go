package pitch

import (
	"fmt"
	"strconv"
)

// Interval is a diatonic interval: a letter-step count and a semitone count.
type Interval struct {
	Steps     int
	Semitones int
}

var majorSemitones = [lettersPerOctave]int{0, 2, 4, 5, 7, 9, 11}

func perfectType(steps int) bool {
	switch mod(steps, lettersPerOctave) {
	case 0, 3, 4:
		return true
	default:
		return false
	}
}

// ParseInterval parses a quality and number such as "P5", "m3", "A4" or "M9".
func ParseInterval(s string) (Interval, error) {
	if len(s) < 2 {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}

	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}

	steps := n - 1
	base := majorSemitones[steps%lettersPerOctave] + semitonesPerOctave*(steps/lettersPerOctave)

	var adj int

	switch q := s[0]; {
	case q == 'P' && perfectType(steps):
		adj = 0
	case q == 'M' && !perfectType(steps):
		adj = 0
	case q == 'm' && !perfectType(steps):
		adj = -1
	case q == 'A':
		adj = 1
	case q == 'd' && perfectType(steps):
		adj = -1
	case q == 'd':
		adj = -2
	default:
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}

	return Interval{Steps: steps, Semitones: base + adj}, nil
}

// MustInterval parses s and panics on error. Intended for literals.
func MustInterval(s string) Interval {
	iv, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}

	return iv
}

// Between returns the interval from p up to q. It is negative when q is below p.
func Between(p, q DiatonicPitch) Interval {
	return Interval{Steps: q.Diatonic() - p.Diatonic(), Semitones: q.Chromatic() - p.Chromatic()}
}

// Transpose moves p by iv, upward when up is true.
func Transpose(p DiatonicPitch, iv Interval, up bool) DiatonicPitch {
	sign := 1
	if !up {
		sign = -1
	}

	target := p.Chromatic() + sign*iv.Semitones
	q := FromDiatonic(p.Diatonic()+sign*iv.Steps, 0)
	q.Tone.Alteration = target - q.Chromatic()

	return q
}

func (iv Interval) String() string {
	steps := iv.Steps
	semis := iv.Semitones

	if steps < 0 {
		steps, semis = -steps, -semis
	}

	base := majorSemitones[steps%lettersPerOctave] + semitonesPerOctave*(steps/lettersPerOctave)
	diff := semis - base

	var q string

	switch {
	case perfectType(steps) && diff == 0:
		q = "P"
	case perfectType(steps) && diff == -1:
		q = "d"
	case !perfectType(steps) && diff == 0:
		q = "M"
	case !perfectType(steps) && diff == -1:
		q = "m"
	case !perfectType(steps) && diff == -2:
		q = "d"
	case diff == 1:
		q = "A"
	default:
		q = "?"
	}

	name := q + strconv.Itoa(steps+1)
	if iv.Steps < 0 {
		return "-" + name
	}

	return name
}
