package instrument

import (
	"fmt"

	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

// General MIDI programs.
const (
	programPiano     = 0
	programViolin    = 40
	programViola     = 41
	programCello     = 42
	programContrabas = 43
	programTrumpet   = 56
	programHorn      = 60
	programOboe      = 68
	programClarinet  = 71
	programFlute     = 73
	programChoir     = 52
)

var builtins = []struct {
	name, family, rng string
	transpose         int
	program           uint8
}{
	{"Piano", "keyboard", "A:0..C:8", 0, programPiano},
	{"Violin", "strings", "G:3..A:7", 0, programViolin},
	{"Viola", "strings", "C:3..E:6", 0, programViola},
	{"Cello", "strings", "C:2..A:5", 0, programCello},
	{"Contrabass", "strings", "E:1..G:4", -12, programContrabas},
	{"Flute", "woodwinds", "C:4..C:7", 0, programFlute},
	{"Oboe", "woodwinds", "Bb:3..A:6", 0, programOboe},
	{"Clarinet", "woodwinds", "D:3..Bb:6", -2, programClarinet},
	{"Trumpet", "brass", "F#:3..D:6", -2, programTrumpet},
	{"Horn", "brass", "B:1..F:5", -7, programHorn},
	{"Soprano", "voice", "C:4..A:5", 0, programChoir},
	{"Alto", "voice", "F:3..D:5", 0, programChoir},
	{"Tenor", "voice", "C:3..A:4", 0, programChoir},
	{"Bass", "voice", "E:2..E:4", 0, programChoir},
}

// Builtin returns a fresh catalog of common orchestral instruments and voices.
func Builtin() *Catalog {
	c := newCatalog()

	for _, b := range builtins {
		err := c.Add(&Instrument{
			Name:      b.name,
			Family:    b.family,
			Range:     pitch.MustRange(b.rng),
			Transpose: b.transpose,
			Program:   b.program,
		})
		if err != nil {
			panic(fmt.Sprintf("builtin instruments: %v", err))
		}
	}

	return c
}
