// Package meter models tempo and time signatures.
package meter

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/event"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// Meter errors.
var (
	ErrInvalidTempo         = errors.New("invalid tempo")
	ErrInvalidTimeSignature = errors.New("invalid time signature")
)

// BeatType classifies a beat within a measure.
type BeatType int

// Beat types.
const (
	Weak BeatType = iota
	Strong
)

func (b BeatType) String() string {
	if b == Strong {
		return "Strong"
	}

	return "Weak"
}

// ParseBeatType accepts "Strong" or "Weak", case insensitive.
func ParseBeatType(s string) (BeatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong", "s":
		return Strong, nil
	case "weak", "w":
		return Weak, nil
	default:
		return Weak, fmt.Errorf("%w: beat type %q", ErrInvalidTimeSignature, s)
	}
}

// Tempo is a rate in beats per minute for a reference beat.
type Tempo struct {
	bpm  *big.Rat
	beat timing.Duration
}

var quarter = timing.Dur(1, 4)

// NewTempo creates a tempo counted in quarter notes.
func NewTempo(bpm float64) (Tempo, error) { return NewTempoBeat(bpm, quarter) }

// NewTempoBeat creates a tempo counted in beat-long units.
func NewTempoBeat(bpm float64, beat timing.Duration) (Tempo, error) {
	if !(bpm > 0) || beat.Sign() <= 0 {
		return Tempo{}, fmt.Errorf("%w: %g per %s", ErrInvalidTempo, bpm, beat)
	}

	r := new(big.Rat)
	if r.SetFloat64(bpm) == nil {
		return Tempo{}, fmt.Errorf("%w: %g", ErrInvalidTempo, bpm)
	}

	return Tempo{bpm: r, beat: beat}, nil
}

// MustTempo is NewTempo that panics on error.
func MustTempo(bpm float64) Tempo {
	t, err := NewTempo(bpm)
	if err != nil {
		panic(err)
	}

	return t
}

// BPM returns the rate.
func (t Tempo) BPM() float64 {
	f, _ := t.bpm.Float64()

	return f
}

// Beat returns the reference beat.
func (t Tempo) Beat() timing.Duration { return t.beat }

// EffectiveTo converts the rate to beats of another length per minute.
func (t Tempo) EffectiveTo(beat timing.Duration) *big.Rat {
	r := new(big.Rat).Mul(t.bpm, t.beat.Rat())

	return r.Quo(r, beat.Rat())
}

// WholeNotesPerMinute returns the tempo as whole notes per minute.
func (t Tempo) WholeNotesPerMinute() *big.Rat { return new(big.Rat).Mul(t.bpm, t.beat.Rat()) }

func (t Tempo) String() string { return fmt.Sprintf("%s bpm per %s", t.bpm.RatString(), t.beat) }

// TimeSignature is a measure of Beats beats, each BeatDuration long.
type TimeSignature struct {
	beats   int
	beatDur timing.Duration
	pattern []BeatType
}

// NewTimeSignature creates a time signature. With no pattern a conventional
// accent pattern is chosen from the beat count.
func NewTimeSignature(beats int, beatDur timing.Duration, pattern ...BeatType) (TimeSignature, error) {
	if beats <= 0 || beatDur.Sign() <= 0 {
		return TimeSignature{}, fmt.Errorf("%w: %d/%s", ErrInvalidTimeSignature, beats, beatDur)
	}

	if len(pattern) == 0 {
		pattern = defaultPattern(beats)
	}

	if len(pattern) != beats {
		return TimeSignature{}, fmt.Errorf("%w: %d beat types for %d beats", ErrInvalidTimeSignature, len(pattern), beats)
	}

	return TimeSignature{beats: beats, beatDur: beatDur, pattern: append([]BeatType(nil), pattern...)}, nil
}

// MustTimeSignature is NewTimeSignature that panics on error.
func MustTimeSignature(beats int, beatDur timing.Duration, pattern ...BeatType) TimeSignature {
	ts, err := NewTimeSignature(beats, beatDur, pattern...)
	if err != nil {
		panic(err)
	}

	return ts
}

func defaultPattern(beats int) []BeatType {
	switch beats {
	case 2:
		return []BeatType{Strong, Weak}
	case 3:
		return []BeatType{Strong, Weak, Weak}
	case 4:
		return []BeatType{Strong, Weak, Strong, Weak}
	case 6:
		return []BeatType{Strong, Weak, Weak, Strong, Weak, Weak}
	}

	p := make([]BeatType, beats)
	p[0] = Strong

	return p
}

// Beats returns the beats per measure.
func (ts TimeSignature) Beats() int { return ts.beats }

// BeatDuration returns the length of one beat.
func (ts TimeSignature) BeatDuration() timing.Duration { return ts.beatDur }

// MeasureDuration returns beats × beat duration.
func (ts TimeSignature) MeasureDuration() timing.Duration { return ts.beatDur.ScaleInt(int64(ts.beats)) }

// BeatType returns the accent of beat i, 0-based.
func (ts TimeSignature) BeatType(i int) BeatType { return ts.pattern[i] }

// Pattern returns a copy of the accent pattern.
func (ts TimeSignature) Pattern() []BeatType { return append([]BeatType(nil), ts.pattern...) }

func (ts TimeSignature) String() string {
	r := ts.beatDur.Rat()
	if r.Num().IsInt64() && r.Num().Int64() == 1 {
		return fmt.Sprintf("%d/%s", ts.beats, r.Denom())
	}

	return fmt.Sprintf("%d×%s", ts.beats, ts.beatDur)
}

// TempoSequence and TSSequence are the event sequences timelines are built from.
type (
	TempoSequence = event.Sequence[Tempo]
	TSSequence    = event.Sequence[TimeSignature]
)

// NewTempoSequence creates a sequence holding tempo at the origin.
func NewTempoSequence(t Tempo) *TempoSequence {
	s, err := event.NewSequence(event.New(timing.Origin, t))
	if err != nil {
		panic(err)
	}

	return s
}

// NewTSSequence creates a sequence holding ts at the origin.
func NewTSSequence(ts TimeSignature) *TSSequence {
	s, err := event.NewSequence(event.New(timing.Origin, ts))
	if err != nil {
		panic(err)
	}

	return s
}
