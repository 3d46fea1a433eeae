package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/larkecw/sfengine/internal/engerr"
)

func locsFromPitches(pitches []int) []Loc {
	locs := make([]Loc, len(pitches))
	for i, p := range pitches {
		locs[i] = Loc{Events: []LocEvt{{Pitch: p, ScEvtIdx: i}}, ScLocIdx: i}
	}
	return locs
}

func midiFromPitches(pitches []int) []MidiEvt {
	m := make([]MidiEvt, len(pitches))
	for i, p := range pitches {
		m[i] = MidiEvt{MNI: i, Pitch: p, LocIdx: -1, ScEvtIdx: -1}
	}
	return m
}

func TestIdenticalWindowsCostZero(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64, 65})
	midi := midiFromPitches([]int{60, 62, 64, 65})

	m := New(16, 16)
	require.NoError(t, m.Exec(locs, 0, len(locs), midi, 1e18))
	assert.Equal(t, 0.0, m.Cost())

	for _, n := range m.OptimalPath() {
		assert.True(t, n.Flags&FlagMatch != 0)
		assert.Equal(t, OpSub, n.Op)
	}
}

func TestExecFailsWithEOFPastScoreEnd(t *testing.T) {
	locs := locsFromPitches([]int{60, 62})
	midi := midiFromPitches([]int{60})
	m := New(16, 16)
	err := m.Exec(locs, 1, 2, midi, 1e18)
	assert.ErrorIs(t, err, engerr.EOF)
}

func TestExecOnlyUpdatesPathWhenBelowMinCost(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64})
	midi := midiFromPitches([]int{60, 62, 64})

	m := New(16, 16)
	require.NoError(t, m.Exec(locs, 0, len(locs), midi, 1e18))
	require.NoError(t, m.Exec(locs, 0, len(locs), midi, 0)) // cost 0 is not < minCost 0
	assert.Equal(t, 0.0, m.Cost())
}

func TestTranspositionScoresNoWorseThanTwoSubs(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64, 65})
	midi := midiFromPitches([]int{60, 64, 62, 65})

	m := New(16, 16)
	require.NoError(t, m.Exec(locs, 0, len(locs), midi, 1e18))
	assert.LessOrEqual(t, m.Cost(), 2.0)
}

func TestSyncStampsMatchedEventsAndCountsTrailingMisses(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64})
	midi := midiFromPitches([]int{60, 99, 64})

	m := New(16, 16)
	require.NoError(t, m.Exec(locs, 0, len(locs), midi, 1e18))
	lastLoc, miss := m.Sync(midi, len(midi))

	assert.Equal(t, 0, midi[0].LocIdx)
	assert.GreaterOrEqual(t, lastLoc, 0)
	assert.GreaterOrEqual(t, miss, 0)
}

// TestCostBoundedByWindowSizeProperty checks the standard edit-distance
// bound for any pair of windows: the optimal cost never exceeds the
// larger window's length (padding the shorter side with inserts/deletes
// always achieves that), and every stamped LocIdx in the backtrace
// falls inside the score window.
func TestCostBoundedByWindowSizeProperty(t *testing.T) {
	pitchGen := rapid.IntRange(60, 72)
	rapid.Check(t, func(rt *rapid.T) {
		locN := rapid.IntRange(1, 10).Draw(rt, "locN")
		midiN := rapid.IntRange(1, 10).Draw(rt, "midiN")
		locPitches := rapid.SliceOfN(pitchGen, locN, locN).Draw(rt, "locPitches")
		midiPitches := rapid.SliceOfN(pitchGen, midiN, midiN).Draw(rt, "midiPitches")

		locs := locsFromPitches(locPitches)
		midi := midiFromPitches(midiPitches)

		m := New(16, 16)
		require.NoError(rt, m.Exec(locs, 0, locN, midi, 1e18))

		maxN := locN
		if midiN > maxN {
			maxN = midiN
		}
		assert.GreaterOrEqual(rt, m.Cost(), 0.0)
		assert.LessOrEqual(rt, m.Cost(), float64(maxN))

		path := m.OptimalPath()
		require.NotEmpty(rt, path)
		for _, n := range path {
			if n.LocIdx >= 0 {
				assert.Less(rt, n.LocIdx, locN)
			}
		}
	})
}
