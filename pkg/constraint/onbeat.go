package constraint

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/melodist/pkg/meter"
	"github.com/Sumatoshi-tech/melodist/pkg/note"
	"github.com/Sumatoshi-tech/melodist/pkg/pitch"
	"github.com/Sumatoshi-tech/melodist/pkg/timeconv"
	"github.com/Sumatoshi-tech/melodist/pkg/timing"
)

// OnBeat requires the actor to start on a beat of a given type, or on one of
// the given 0-based beats of its measure.
type OnBeat struct {
	actor    note.NodeID
	beatType meter.BeatType
	beats    []int
}

// NewOnBeat creates an OnBeat constraint for beats of type bt.
func NewOnBeat(actor note.NodeID, bt meter.BeatType) *OnBeat {
	return &OnBeat{actor: actor, beatType: bt}
}

// NewOnBeatIDs creates an OnBeat constraint for specific beats.
func NewOnBeatIDs(actor note.NodeID, beats ...int) (*OnBeat, error) {
	if len(beats) == 0 || slices.ContainsFunc(beats, func(b int) bool { return b < 0 }) {
		return nil, fmt.Errorf("%w: beat ids %v", ErrInvalidParam, beats)
	}

	return &OnBeat{actor: actor, beats: slices.Clone(beats)}, nil
}

// Kind implements Constraint.
func (c *OnBeat) Kind() Kind { return KindOnBeat }

// Actors implements Constraint.
func (c *OnBeat) Actors() []note.NodeID { return []note.NodeID{c.actor} }

// Actor returns the constrained note.
func (c *OnBeat) Actor() note.NodeID { return c.actor }

// VerifyAt reports whether position p satisfies the constraint on conv's timeline.
func (c *OnBeat) VerifyAt(p timing.Position, conv *timeconv.Conversion) bool {
	bp, err := conv.PositionToBP(p)
	if err != nil || !bp.OnBeat() {
		return false
	}

	idx := bp.BeatIndex()
	if len(c.beats) > 0 {
		return slices.Contains(c.beats, idx)
	}

	return conv.TimeSignatureAt(p).BeatType(idx) == c.beatType
}

// Deltas returns the shift that moves p forward onto the first acceptable
// beat, searching beat by beat through at most measures measures. It is
// empty when none is found.
func (c *OnBeat) Deltas(p timing.Position, conv *timeconv.Conversion, measures int) []timing.Duration {
	if c.VerifyAt(p, conv) {
		return []timing.Duration{timing.Zero}
	}

	limit := (measures + 1) * conv.TimeSignatureAt(p).Beats()
	q := p

	for range limit {
		next, err := conv.NextBeat(q)
		if err != nil {
			return nil
		}

		q = next

		if c.VerifyAt(q, conv) {
			return []timing.Duration{q.Sub(p)}
		}
	}

	return nil
}

// Verify implements Constraint. It needs pm.Timeline.
func (c *OnBeat) Verify(pm *PMap) bool {
	cn, ok := pm.Get(c.actor)

	return ok && pm.Timeline != nil && c.VerifyAt(cn.Position, pm.Timeline)
}

// Values implements Constraint. Beat placement does not restrict pitch.
func (c *OnBeat) Values(pm *PMap, actor note.NodeID) *mapx.InsertionSet[pitch.DiatonicPitch] {
	if actor != c.actor {
		return mapx.NewInsertionSet[pitch.DiatonicPitch]()
	}

	return universeWhere(pm, actor, all)
}

// Clone implements Constraint.
func (c *OnBeat) Clone(m map[note.NodeID]note.NodeID) Constraint {
	return &OnBeat{actor: mapActors([]note.NodeID{c.actor}, m)[0], beatType: c.beatType, beats: slices.Clone(c.beats)}
}

func (c *OnBeat) String() string {
	if len(c.beats) > 0 {
		return fmt.Sprintf("OnBeat(%d, beats=%v)", c.actor, c.beats)
	}

	return fmt.Sprintf("OnBeat(%d, %s)", c.actor, c.beatType)
}
