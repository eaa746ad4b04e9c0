// Package instrument provides instrument definitions and a catalog value
// that callers pass to the solvers in place of a global registry.
package instrument

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
)

// Sentinel errors.
var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrDuplicate         = errors.New("instrument already in catalog")
	ErrInvalid           = errors.New("invalid instrument")
)

// Instrument is a named sounding range. Transpose is the written-to-sounding
// interval in semitones; MIDI export uses Program.
type Instrument struct {
	Name      string
	Family    string
	Range     pitch.Range
	Transpose int
	Program   uint8
}

func (i *Instrument) String() string {
	return fmt.Sprintf("%s [%s]", i.Name, i.Range)
}

// record is the YAML form of an Instrument.
type record struct {
	Name      string `yaml:"name"`
	Family    string `yaml:"family"`
	Low       string `yaml:"low"`
	High      string `yaml:"high"`
	Transpose int    `yaml:"transpose,omitempty"`
	Program   uint8  `yaml:"program,omitempty"`
}

type document struct {
	Instruments []record `yaml:"instruments"`
}

func (r record) instrument() (*Instrument, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalid)
	}

	low, err := pitch.ParsePitch(r.Low)
	if err != nil {
		return nil, fmt.Errorf("%w: %s low: %w", ErrInvalid, r.Name, err)
	}

	high, err := pitch.ParsePitch(r.High)
	if err != nil {
		return nil, fmt.Errorf("%w: %s high: %w", ErrInvalid, r.Name, err)
	}

	rng, err := pitch.NewRange(low, high)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, r.Name, err)
	}

	return &Instrument{Name: r.Name, Family: r.Family, Range: rng, Transpose: r.Transpose, Program: r.Program}, nil
}

// Catalog is a registry of instruments keyed by case-insensitive name.
// It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]*Instrument
	order  []string
}

// NewCatalog creates a catalog holding instruments.
func NewCatalog(instruments ...*Instrument) (*Catalog, error) {
	c := newCatalog()

	for _, in := range instruments {
		if err := c.Add(in); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func newCatalog() *Catalog { return &Catalog{byName: make(map[string]*Instrument)} }

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Add registers in.
func (c *Catalog) Add(in *Instrument) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(in.Name)
	if _, ok := c.byName[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, in.Name)
	}

	c.byName[k] = in
	c.order = append(c.order, in.Name)

	return nil
}

// Get returns the instrument called name.
func (c *Catalog) Get(name string) (*Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	in, ok := c.byName[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}

	return in, nil
}

// Names returns instrument names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.order)
}

// Family returns the instruments of family in registration order.
func (c *Catalog) Family(family string) []*Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Instrument

	for _, n := range c.order {
		if in := c.byName[key(n)]; strings.EqualFold(in.Family, family) {
			out = append(out, in)
		}
	}

	return out
}

// Merge adds every instrument of other. A name c already holds fails with
// ErrDuplicate after the rest are added.
func (c *Catalog) Merge(other *Catalog) error {
	var errs []error

	for _, n := range other.Names() {
		in, err := other.Get(n)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if err := c.Add(in); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("merge catalog: %w", err)
	}

	return nil
}

// Load reads a YAML catalog of the form
//
//	instruments:
//	  - {name: Violin, family: strings, low: "G:3", high: "A:7"}
func Load(r io.Reader) (*Catalog, error) {
	var doc document

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode instrument catalog: %w", err)
	}

	c := newCatalog()

	for _, rec := range doc.Instruments {
		in, err := rec.instrument()
		if err != nil {
			return nil, err
		}

		if err := c.Add(in); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instrument catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}
