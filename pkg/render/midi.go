package render

import (
	"cmp"
	"fmt"
	"io"
	"math/big"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// MIDI defaults.
const (
	DefaultTicksPerQuarter = 960
	DefaultVelocity        = 90

	middleCOffset = 12
	maxKey        = 127
	quarters      = 4
)

type midiConfig struct {
	tpq       uint16
	velocity  uint8
	channel   uint8
	program   uint8
	transpose int
	name      string
	tempo     *meter.TempoSequence
	ts        *meter.TSSequence
}

// MIDIOption configures WriteMIDI.
type MIDIOption func(*midiConfig)

// WithTicksPerQuarter sets the file resolution.
func WithTicksPerQuarter(tpq uint16) MIDIOption {
	return func(c *midiConfig) {
		if tpq > 0 {
			c.tpq = tpq
		}
	}
}

// WithVelocity sets the note-on velocity.
func WithVelocity(v uint8) MIDIOption {
	return func(c *midiConfig) { c.velocity = min(v, maxKey) }
}

// WithChannel sets the channel, 0 to 15.
func WithChannel(ch uint8) MIDIOption {
	return func(c *midiConfig) { c.channel = ch & 0x0f }
}

// WithProgram emits a program change before the first note.
func WithProgram(p uint8) MIDIOption {
	return func(c *midiConfig) { c.program = min(p, maxKey) }
}

// WithTranspose shifts every key by semitones.
func WithTranspose(semitones int) MIDIOption {
	return func(c *midiConfig) { c.transpose = semitones }
}

// WithTrackName names the track.
func WithTrackName(name string) MIDIOption {
	return func(c *midiConfig) { c.name = name }
}

// WithTempo writes the tempo map of seq.
func WithTempo(seq *meter.TempoSequence) MIDIOption {
	return func(c *midiConfig) { c.tempo = seq }
}

// WithTimeSignatures writes the meter changes of seq.
func WithTimeSignatures(seq *meter.TSSequence) MIDIOption {
	return func(c *midiConfig) { c.ts = seq }
}

type midiEvent struct {
	tick uint32
	on   bool
	meta bool
	msg  []byte
}

// WriteMIDI writes l as a single-track standard MIDI file. Tied notes sound
// as one note; keys outside 0..127 are clamped.
func WriteMIDI(w io.Writer, l *note.Line, opts ...MIDIOption) error {
	cfg := midiConfig{tpq: DefaultTicksPerQuarter, velocity: DefaultVelocity}
	for _, opt := range opts {
		opt(&cfg)
	}

	events := cfg.metaEvents()
	events = append(events, cfg.noteEvents(l)...)

	// Meta first, then note-offs, then note-ons at equal ticks.
	slices.SortStableFunc(events, func(a, b midiEvent) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}

		return cmp.Compare(rank(a), rank(b))
	})

	var tr smf.Track

	if cfg.name != "" {
		tr.Add(0, smf.MetaTrackSequenceName(cfg.name))
	}

	tr.Add(0, midi.ProgramChange(cfg.channel, cfg.program))

	var last uint32

	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}

	end := ticks(timing.Origin.Add(l.TotalDuration()), cfg.tpq)
	tr.Close(end - min(end, last))

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(cfg.tpq)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}

	return nil
}

func rank(e midiEvent) int {
	switch {
	case e.meta:
		return 0
	case !e.on:
		return 1
	default:
		return 2
	}
}

func (c *midiConfig) metaEvents() []midiEvent {
	var out []midiEvent

	if c.tempo != nil {
		for _, ev := range c.tempo.Events() {
			bpm, _ := ev.Object.EffectiveTo(timing.Dur(1, quarters)).Float64()
			out = append(out, midiEvent{tick: ticks(ev.Time(), c.tpq), meta: true, msg: smf.MetaTempo(bpm)})
		}
	}

	if c.ts != nil {
		for _, ev := range c.ts.Events() {
			num, denom, ok := meterFraction(ev.Object)
			if !ok {
				continue
			}

			out = append(out, midiEvent{tick: ticks(ev.Time(), c.tpq), meta: true, msg: smf.MetaMeter(num, denom)})
		}
	}

	return out
}

// meterFraction expresses a measure as num/denom with a power-of-two denom.
func meterFraction(ts meter.TimeSignature) (uint8, uint8, bool) {
	r := ts.MeasureDuration().Rat()
	num, den := r.Num(), r.Denom()

	if !num.IsUint64() || num.Uint64() > maxKey || !den.IsUint64() || den.Uint64() > maxKey {
		return 0, 0, false
	}

	d := den.Uint64()
	if d&(d-1) != 0 {
		return 0, 0, false
	}

	return uint8(num.Uint64()), uint8(d), true
}

func (c *midiConfig) noteEvents(l *note.Line) []midiEvent {
	var out []midiEvent

	for _, id := range l.AllNotes() {
		p, ok := l.Pitch(id)
		if !ok {
			continue
		}

		if _, cont := l.TiedFrom(id); cont {
			continue
		}

		last := id
		for {
			next, tied := l.TiedTo(last)
			if !tied {
				break
			}

			last = next
		}

		key := uint8(min(max(p.Chromatic()+middleCOffset+c.transpose, 0), maxKey))
		start := ticks(l.AbsolutePosition(id), c.tpq)
		end := ticks(l.AbsolutePosition(last).Add(l.Duration(last)), c.tpq)

		out = append(out,
			midiEvent{tick: start, on: true, msg: midi.NoteOn(c.channel, key, c.velocity)},
			midiEvent{tick: end, msg: midi.NoteOff(c.channel, key)},
		)
	}

	return out
}

// ticks converts a whole-note position to the nearest tick.
func ticks(p timing.Position, tpq uint16) uint32 {
	r := new(big.Rat).Mul(p.Rat(), big.NewRat(int64(tpq)*quarters, 1))

	n := new(big.Int).Mul(r.Num(), big.NewInt(2))
	n.Add(n, r.Denom())
	n.Quo(n, new(big.Int).Mul(r.Denom(), big.NewInt(2)))

	return uint32(n.Uint64())
}
