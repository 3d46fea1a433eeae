package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/match"
)

func locsFromPitches(pitches []int) []match.Loc {
	locs := make([]match.Loc, len(pitches))
	for i, p := range pitches {
		locs[i] = match.Loc{Events: []match.LocEvt{{Pitch: p, ScEvtIdx: i}}, ScLocIdx: i}
	}
	return locs
}

func TestInitialScanFiresOnceRingFills(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64, 65, 67})
	tr := New(locs, 3, Params{InitHopCnt: 2, StepCnt: 2, MaxMissCnt: 3})

	var total int
	for i, p := range []int{60, 62, 64} {
		res, err := tr.OnNoteOn(match.MidiEvt{Pitch: p, SmpIdx: i, LocIdx: -1, ScEvtIdx: -1})
		require.NoError(t, err)
		total += len(res)
	}
	assert.Greater(t, total, 0, "ring fill should trigger an initial scan emitting results")
}

func TestStepExtendsMatchAfterInitialScan(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64, 65, 67})
	tr := New(locs, 3, Params{InitHopCnt: 2, StepCnt: 2, MaxMissCnt: 10})

	for _, p := range []int{60, 62, 64} {
		_, err := tr.OnNoteOn(match.MidiEvt{Pitch: p, LocIdx: -1, ScEvtIdx: -1})
		require.NoError(t, err)
	}
	res, err := tr.OnNoteOn(match.MidiEvt{Pitch: 65, LocIdx: -1, ScEvtIdx: -1})
	require.NoError(t, err)
	assert.NotEmpty(t, res)
}

func TestResetClearsTrackerState(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64})
	tr := New(locs, 2, Params{InitHopCnt: 1, StepCnt: 1, MaxMissCnt: 5})

	_, err := tr.OnNoteOn(match.MidiEvt{Pitch: 60, LocIdx: -1, ScEvtIdx: -1})
	require.NoError(t, err)
	_, err = tr.OnNoteOn(match.MidiEvt{Pitch: 62, LocIdx: -1, ScEvtIdx: -1})
	require.NoError(t, err)

	tr.Reset(0)
	assert.Empty(t, tr.Results())
	assert.Equal(t, 0, tr.mni)
	assert.Equal(t, noMatch, tr.eli)
}

func TestMissCountTriggersRescan(t *testing.T) {
	locs := locsFromPitches([]int{60, 62, 64, 65, 67, 69})
	tr := New(locs, 3, Params{InitHopCnt: 1, StepCnt: 1, MaxMissCnt: 1})

	for _, p := range []int{60, 62, 64} {
		_, err := tr.OnNoteOn(match.MidiEvt{Pitch: p, LocIdx: -1, ScEvtIdx: -1})
		require.NoError(t, err)
	}
	// Feed a note with no plausible match nearby to force misses and a rescan.
	_, err := tr.OnNoteOn(match.MidiEvt{Pitch: 1, LocIdx: -1, ScEvtIdx: -1})
	require.NoError(t, err)
}

func TestBacktrackDedupesConfirmedFalsePositives(t *testing.T) {
	all := []Result{
		{OLocID: 2, Flags: match.FlagFalsePos},
		{OLocID: 2, Flags: match.FlagTruePos},
	}
	out := dedupeConfirmedFalsePositives(all, all)
	require.Len(t, out, 1, "the earlier false-positive at loc 2 should be dropped once loc 2 is confirmed true-positive")
	assert.Equal(t, match.FlagTruePos, out[0].Flags)
}
