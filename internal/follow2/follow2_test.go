package follow2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func notesFromPitches(pitches []int, secPerLoc float64) []Note {
	notes := make([]Note, len(pitches))
	for i, p := range pitches {
		notes[i] = Note{Pitch: p, LocID: i, ScEvtIdx: i, Sec: float64(i) * secPerLoc, Quota: 1}
	}
	return notes
}

func defaultParams() Params {
	return Params{
		PreWndSec: 2, PostWndSec: 2, MinWndLocCnt: 1,
		PreAffinitySec: 2, PostAffinitySec: 2, MinAffinityLocCnt: 1,
		LoSecThresh: 0.5, LoLocThresh: 1,
		HiLocThresh: 4, HiSecThresh: 2,
		DLocStatsThresh: 4,
		DecayCoef:       0.5,
		EndLocID:        -1,
	}
}

func TestSearchWindowsCoverNeighboringNotes(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64, 65, 67}, 1.0)
	f := New(notes, 0, defaultParams())

	assert.Contains(t, f.searchWnd[2], 0, "a ±2s window around loc 2 should reach back to loc 0")
	assert.Contains(t, f.searchWnd[2], 4, "a ±2s window around loc 2 should reach forward to loc 4")
}

func TestAffinityWindowWeightsDecayWithDistance(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64}, 1.0)
	f := New(notes, 0, defaultParams())

	env := f.affinityWnd[1]
	var center, edge float64
	for _, a := range env {
		if a.noteIdx == 1 {
			center = a.weight
		}
		if a.noteIdx == 0 || a.noteIdx == 2 {
			edge = a.weight
		}
	}
	assert.Greater(t, center, edge, "a note's own affinity weight should exceed a neighbor's")
}

func TestOnNoteAcceptsExpectedPitchAndAdvances(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64}, 1.0)
	f := New(notes, 0, defaultParams())

	res := f.OnNote(60, 0.0)
	assert.True(t, res.Accepted)
	assert.Equal(t, 0, res.NoteIdx)
	assert.Equal(t, 1, f.expLocID, "expectation should advance to the next unfilled location")
}

func TestOnNoteReportsSpuriousWhenPitchNotInWindow(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64}, 1.0)
	f := New(notes, 0, defaultParams())

	res := f.OnNote(99, 0.0)
	assert.True(t, res.Spurious)
	assert.False(t, res.Accepted)
}

func TestOnNoteRejectsFarLocationJump(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64, 65, 67, 69, 71}, 1.0)
	p := defaultParams()
	p.HiLocThresh = 1 // any jump past the immediate neighbor location is rejected
	f := New(notes, 0, p)
	// Widen the search window enough that loc 6 is reachable from loc 0
	// so the rejection is driven by HiLocThresh, not by candidate lookup.
	f.searchWnd[0] = append(f.searchWnd[0], 6)

	res := f.OnNote(71, 0.0)
	assert.False(t, res.Accepted)
	assert.Equal(t, 6, res.DLoc)
}

func TestTempoFactorUpdatesFromAcceptedNotes(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64, 65}, 1.0)
	f := New(notes, 0, defaultParams())

	f.OnNote(60, 0.0)
	f.OnNote(62, 2.0) // performed twice as slow as written (1 score-sec per note)
	assert.Less(t, f.tempoFactor, 1.0, "a slower performance should lower the tempo factor")
}

func TestDoneReportsAtEndLocation(t *testing.T) {
	notes := notesFromPitches([]int{60, 62}, 1.0)
	p := defaultParams()
	p.EndLocID = 1
	f := New(notes, 0, p)

	assert.False(t, f.Done())
	f.OnNote(60, 0.0)
	assert.True(t, f.Done())
}

func TestDecayAttenuatesExpectationWithinWindow(t *testing.T) {
	notes := notesFromPitches([]int{60, 62, 64}, 1.0)
	f := New(notes, 0, defaultParams())

	before := append([]float64(nil), f.expectation...)
	f.Decay()
	expIdx := f.firstNoteAt(f.expLocID)
	for _, ni := range f.searchWnd[expIdx] {
		assert.LessOrEqual(t, f.expectation[ni], before[ni])
	}
}
