// Package lineparse reads the compact melody notation into a note line and
// its harmonic context track.
//
//	{ <C-Major: I> qC:4 D E- E [iF G] <C-Major: V> (I, 2)[qG A B] hR }
//
// A note is an optional duration letter (W H Q I S T X, any case) followed
// by optional '@' dots, a pitch letter or R for a rest, accidentals (#, ##,
// b, bb), an optional ':octave' and an optional '-' tie to the next note.
// Duration, dots and octave carry over to the following notes. Square
// brackets beam their contents; '(dur, k)[...]' is a tuplet sounding k units
// of dur; '<tonality: chord>' starts a harmonic context at the next note.
package lineparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/melodist/pkg/harmony"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// ErrSyntax marks malformed input.
var ErrSyntax = errors.New("syntax error")

const (
	defaultOctave  = 4
	maxAccidentals = 2
	eof            = 0
)

var durationLetters = map[byte]timing.Duration{
	'W': timing.Dur(1, 1),
	'H': timing.Dur(1, 2),
	'Q': timing.Dur(1, 4),
	'I': timing.Dur(1, 8),
	'S': timing.Dur(1, 16),
	'T': timing.Dur(1, 32),
	'X': timing.Dur(1, 64),
}

// DurationLetter returns the letter for d, if d is one of the plain note values.
func DurationLetter(d timing.Duration) (byte, bool) {
	for c, v := range durationLetters {
		if v.Equal(d) {
			return c, true
		}
	}

	return 0, false
}

// Error is a parse failure at a byte offset of the input.
type Error struct {
	Pos      int
	Expected string
	Found    string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Expected != "":
		return fmt.Sprintf("at %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
	default:
		return fmt.Sprintf("at %d: %v", e.Pos, e.Err)
	}
}

// Unwrap returns the structural error behind e, or ErrSyntax.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}

	return ErrSyntax
}

// Result is a parsed melody.
type Result struct {
	Line  *note.Line
	Track *harmony.Track
}

type tag struct {
	pos      int
	tonality *pitch.Tonality
	chord    pitch.ChordTemplate
	at       note.NodeID
}

type tie struct {
	pos  int
	from note.NodeID
}

type parser struct {
	src  string
	pos  int
	line *note.Line

	base   timing.Duration
	dots   int
	octave int

	tags    []*tag
	pending *tag
	ties    []tie
}

// Parse reads src.
func Parse(src string) (*Result, error) {
	p := &parser{
		src:    src,
		line:   note.NewLine(),
		base:   durationLetters['Q'],
		octave: defaultOctave,
	}

	p.skipSpace()

	closer := byte(eof)
	if p.peek() == '{' {
		p.pos++
		closer = '}'
	}

	if err := p.sequence(note.Root, closer); err != nil {
		return nil, err
	}

	if closer != eof {
		p.pos++
		p.skipSpace()

		if p.peek() != eof {
			return nil, p.expected("end of input")
		}
	}

	if p.pending != nil {
		return nil, &Error{Pos: p.pending.pos, Expected: "a note after the harmonic tag", Found: "end of input"}
	}

	if err := p.tie(); err != nil {
		return nil, err
	}

	track, err := p.track()
	if err != nil {
		return nil, err
	}

	return &Result{Line: p.line, Track: track}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(src string) *Result {
	r, err := Parse(src)
	if err != nil {
		panic(err)
	}

	return r
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return eof
	}

	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n,|", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) found() string {
	if p.pos >= len(p.src) {
		return "end of input"
	}

	return strconv.Quote(p.src[p.pos : p.pos+1])
}

func (p *parser) expected(what string) *Error {
	return &Error{Pos: p.pos, Expected: what, Found: p.found()}
}

func (p *parser) fail(pos int, err error) *Error {
	return &Error{Pos: pos, Err: err}
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

// sequence parses items under parent until closer.
func (p *parser) sequence(parent note.NodeID, closer byte) error {
	for {
		p.skipSpace()

		c := p.peek()

		switch {
		case c == closer:
			return nil
		case c == eof:
			return p.expected(strconv.Quote(string(closer)))
		case c == '[':
			if err := p.beam(parent); err != nil {
				return err
			}
		case c == '(':
			if err := p.tuplet(parent); err != nil {
				return err
			}
		case c == '<':
			if err := p.harmonicTag(); err != nil {
				return err
			}
		default:
			if err := p.note(parent); err != nil {
				return err
			}
		}
	}
}

func (p *parser) beam(parent note.NodeID) error {
	start := p.pos
	p.pos++

	b, err := p.line.AddBeam(parent)
	if err != nil {
		return p.fail(start, err)
	}

	if err := p.sequence(b, ']'); err != nil {
		return err
	}

	p.pos++

	return nil
}

func (p *parser) tuplet(parent note.NodeID) error {
	start := p.pos
	p.pos++

	end := strings.IndexByte(p.src[p.pos:], ')')
	if end < 0 {
		p.pos = len(p.src)

		return p.expected("')'")
	}

	header := p.src[p.pos : p.pos+end]

	unitText, countText, ok := strings.Cut(header, ",")
	if !ok {
		return p.expected("'unit, count'")
	}

	unit, err := parseUnit(strings.TrimSpace(unitText))
	if err != nil {
		return p.fail(p.pos, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(countText))
	if err != nil {
		return p.fail(p.pos, fmt.Errorf("%w: tuplet count %q", ErrSyntax, strings.TrimSpace(countText)))
	}

	p.pos += end + 1
	p.skipSpace()

	if p.peek() != '[' {
		return p.expected("'[' after tuplet header")
	}

	p.pos++

	tu, err := p.line.AddTuplet(parent, unit, count)
	if err != nil {
		return p.fail(start, err)
	}

	if err := p.sequence(tu, ']'); err != nil {
		return err
	}

	p.pos++

	return nil
}

// parseUnit reads a tuplet unit: a duration letter with dots, or a ratio.
func parseUnit(s string) (timing.Duration, error) {
	if s == "" {
		return timing.Duration{}, fmt.Errorf("%w: empty tuplet unit", ErrSyntax)
	}

	if d, ok := durationLetters[upper(s[0])]; ok {
		dots := strings.Count(s[1:], "@")
		if dots != len(s)-1 {
			return timing.Duration{}, fmt.Errorf("%w: tuplet unit %q", ErrSyntax, s)
		}

		return timing.ApplyDots(d, dots)
	}

	d, err := timing.ParseDuration(s)
	if err != nil {
		return timing.Duration{}, fmt.Errorf("%w: tuplet unit %q: %w", ErrSyntax, s, err)
	}

	return d, nil
}

func (p *parser) harmonicTag() error {
	start := p.pos
	p.pos++

	end := strings.IndexByte(p.src[p.pos:], '>')
	if end < 0 {
		p.pos = len(p.src)

		return p.expected("'>'")
	}

	body := p.src[p.pos : p.pos+end]

	tonText, chordText, ok := strings.Cut(body, ":")
	if !ok {
		return p.expected("'tonality: chord'")
	}

	t, err := pitch.ParseTonality(strings.TrimSpace(tonText))
	if err != nil {
		return p.fail(p.pos, err)
	}

	ct, err := pitch.ParseChordTemplate(strings.TrimSpace(chordText))
	if err != nil {
		return p.fail(p.pos, err)
	}

	p.pos += end + 1
	p.pending = &tag{pos: start, tonality: t, chord: ct, at: note.None}

	return nil
}

func (p *parser) note(parent note.NodeID) error {
	start := p.pos

	if d, ok := durationLetters[upper(p.peek())]; ok {
		p.base = d
		p.dots = 0
		p.pos++
	}

	if p.peek() == '@' {
		p.dots = 0
		for p.peek() == '@' {
			p.dots++
			p.pos++
		}
	}

	letter := upper(p.peek())

	var pp *pitch.DiatonicPitch

	switch {
	case letter == 'R':
		p.pos++
	case letter >= 'A' && letter <= 'G':
		v, err := p.pitch()
		if err != nil {
			return err
		}

		pp = &v
	default:
		return p.expected("pitch letter or R")
	}

	id, err := p.line.AddNote(parent, note.Spec{Pitch: pp, Base: p.base, Dots: p.dots})
	if err != nil {
		return p.fail(start, err)
	}

	if p.pending != nil {
		p.pending.at = id
		p.tags = append(p.tags, p.pending)
		p.pending = nil
	}

	if p.peek() == '-' {
		p.ties = append(p.ties, tie{pos: p.pos, from: id})
		p.pos++
	}

	return nil
}

// pitch reads letter, accidentals and an optional octave.
func (p *parser) pitch() (pitch.DiatonicPitch, error) {
	start := p.pos
	spelled := []byte{upper(p.src[p.pos])}
	p.pos++

	for n := 0; n < maxAccidentals && (p.peek() == '#' || p.peek() == 'b'); n++ {
		spelled = append(spelled, p.peek())
		p.pos++
	}

	tone, err := pitch.ParseTone(string(spelled))
	if err != nil {
		return pitch.DiatonicPitch{}, p.fail(start, err)
	}

	if p.peek() == ':' {
		p.pos++

		digits := p.pos
		for p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}

		if digits == p.pos {
			return pitch.DiatonicPitch{}, p.expected("octave number")
		}

		p.octave, _ = strconv.Atoi(p.src[digits:p.pos])
	}

	v, err := pitch.NewPitch(tone, p.octave)
	if err != nil {
		return pitch.DiatonicPitch{}, p.fail(start, err)
	}

	return v, nil
}

// tie links each marked note to the next note of the line.
func (p *parser) tie() error {
	all := p.line.AllNotes()

	next := make(map[note.NodeID]note.NodeID, len(all))
	for i := 0; i+1 < len(all); i++ {
		next[all[i]] = all[i+1]
	}

	for _, t := range p.ties {
		to, ok := next[t.from]
		if !ok {
			return &Error{Pos: t.pos, Expected: "a note after the tie", Found: "end of input"}
		}

		if err := p.line.Tie(t.from, to); err != nil {
			return p.fail(t.pos, err)
		}
	}

	return nil
}

// track turns the tags into a contiguous harmonic track over the line. The
// first context starts at 0; a tag at the same position as the next one is
// superseded by it.
func (p *parser) track() (*harmony.Track, error) {
	tr := harmony.NewTrack()
	if len(p.tags) == 0 {
		return tr, nil
	}

	end := timing.Origin.Add(p.line.TotalDuration())

	starts := make([]timing.Position, len(p.tags))
	for i, t := range p.tags {
		starts[i] = p.line.AbsolutePosition(t.at)
	}

	starts[0] = timing.Origin

	for i, t := range p.tags {
		stop := end
		if i+1 < len(p.tags) {
			stop = starts[i+1]
		}

		d := stop.Sub(starts[i])
		if d.Sign() <= 0 {
			continue
		}

		hc, err := harmony.New(t.tonality, t.chord, d)
		if err != nil {
			return nil, p.fail(t.pos, err)
		}

		if err := tr.Append(hc); err != nil {
			return nil, p.fail(t.pos, err)
		}
	}

	return tr, nil
}
