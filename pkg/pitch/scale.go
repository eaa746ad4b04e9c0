package pitch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/lru"
)

// scaleCacheEntries bounds the shared pitch-scale cache.
const scaleCacheEntries = 256

// Range is a closed chromatic range.
type Range struct {
	Low  DiatonicPitch
	High DiatonicPitch
}

// NewRange validates that low does not sound above high.
func NewRange(low, high DiatonicPitch) (Range, error) {
	if low.Chromatic() > high.Chromatic() {
		return Range{}, fmt.Errorf("%w: %s above %s", ErrInvalidPitchRange, low, high)
	}

	return Range{Low: low, High: high}, nil
}

// ParseRange parses "C:4..C:6".
func ParseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidPitchRange, s)
	}

	low, err := ParsePitch(lo)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrInvalidPitchRange, err)
	}

	high, err := ParsePitch(hi)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %w", ErrInvalidPitchRange, err)
	}

	return NewRange(low, high)
}

// MustRange parses s and panics on error. Intended for literals.
func MustRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}

	return r
}

// Contains reports whether p sounds within the range.
func (r Range) Contains(p DiatonicPitch) bool {
	cd := p.Chromatic()

	return cd >= r.Low.Chromatic() && cd <= r.High.Chromatic()
}

// ContainsChromatic reports whether chromatic distance cd is within the range.
func (r Range) ContainsChromatic(cd int) bool {
	return cd >= r.Low.Chromatic() && cd <= r.High.Chromatic()
}

// Intersect returns the overlap of r and o.
func (r Range) Intersect(o Range) (Range, bool) {
	low, high := r.Low, r.High

	if o.Low.Chromatic() > low.Chromatic() {
		low = o.Low
	}

	if o.High.Chromatic() < high.Chromatic() {
		high = o.High
	}

	if low.Chromatic() > high.Chromatic() {
		return Range{}, false
	}

	return Range{Low: low, High: high}, true
}

func (r Range) String() string { return r.Low.String() + ".." + r.High.String() }

type scaleKey struct {
	tonic    DiatonicTone
	modality Modality
	low      int
	high     int
}

var scaleCache = lru.New[scaleKey, []DiatonicPitch](
	lru.WithMaxEntries[scaleKey, []DiatonicPitch](scaleCacheEntries),
)

// Scale returns the pitches of t within r in ascending order.
func Scale(t *Tonality, r Range) []DiatonicPitch {
	key := scaleKey{tonic: t.Tonic, modality: t.Modality, low: r.Low.Chromatic(), high: r.High.Chromatic()}

	if cached, ok := scaleCache.Get(key); ok {
		return slices.Clone(cached)
	}

	var out []DiatonicPitch

	for oct := r.Low.Octave - 1; oct <= r.High.Octave+1; oct++ {
		for _, tone := range t.tones {
			p := DiatonicPitch{Octave: oct, Tone: tone}
			if r.Contains(p) {
				out = append(out, p)
			}
		}
	}

	slices.SortFunc(out, Compare)
	scaleCache.Put(key, out)

	return slices.Clone(out)
}

// Chromatics returns every chromatic distance in r with a preferred spelling.
func Chromatics(r Range, t *Tonality) []DiatonicPitch {
	out := make([]DiatonicPitch, 0, r.High.Chromatic()-r.Low.Chromatic()+1)

	for cd := r.Low.Chromatic(); cd <= r.High.Chromatic(); cd++ {
		out = append(out, SpellChromatic(cd, t))
	}

	return out
}

// ScaleStep returns the pitch n scale steps from p within t's scale. p's tone
// must be a scale tone; otherwise ok is false.
func ScaleStep(t *Tonality, p DiatonicPitch, n int) (DiatonicPitch, bool) {
	if t.Index(p.Tone) < 0 {
		return DiatonicPitch{}, false
	}

	// Scale tones occupy seven consecutive letters, so a scale step is a letter step.
	d := p.Diatonic() + n
	letter := Letter(mod(d, lettersPerOctave))

	for _, tone := range t.tones {
		if tone.Letter == letter {
			return FromDiatonic(d, tone.Alteration), true
		}
	}

	return DiatonicPitch{}, false
}

// ScaleCacheStats reports the shared pitch-scale cache statistics.
func ScaleCacheStats() lru.Stats {
	return scaleCache.Stats()
}
