// Package track implements the streaming score follower of spec.md
// §4.10 (sftrack): a thin controller over internal/match that keeps a
// MIDI ring buffer, runs an initial DP scan once it fills, then extends
// the match incrementally on each subsequent note with periodic
// resync scans when too many consecutive notes miss.
package track

import (
	"github.com/larkecw/sfengine/internal/match"
)

// ResultFlags mirror match.Flags plus the tracker-level true/false
// positive distinction spec.md §4.10 adds on top of them.
type ResultFlags = match.Flags

// Result is one tracker output record (spec.md §4.10).
type Result struct {
	Index    int
	OLocID   int
	ScEvtIdx int
	MNI      int
	MUID     int
	Sec      float64
	SmpIdx   int
	Pitch    int
	Vel      int
	Flags    ResultFlags
	Cost     float64
}

// Params are the tracker's tuning knobs (spec.md §4.10).
type Params struct {
	InitHopCnt int
	StepCnt    int
	MaxMissCnt int
	Backtrack  bool // de-duplicate earlier false positives later confirmed true
}

// Tracker is a thin sequential controller driving a match.Matcher over
// a fixed score window (cwSfTrack.h's sftrack_t).
type Tracker struct {
	locs    []match.Loc
	matcher *match.Matcher
	params  Params

	midiRing []match.MidiEvt // ring buffer of size mmn
	mbi      int             // index of oldest event; stays 0 once full
	mni      int              // monotonic count since last reset

	ili           int // initial-location index to start scans from
	eli           int // index into locs[] of the last positive match, -1 if none
	missCnt       int
	scanCnt       int
	begSyncLocIdx int

	results []Result
}

const noMatch = -1

// New builds a tracker over locs with a MIDI ring of size mmn.
func New(locs []match.Loc, mmn int, p Params) *Tracker {
	return &Tracker{
		locs:          locs,
		matcher:       match.New(mmn, len(locs)),
		params:        p,
		midiRing:      make([]match.MidiEvt, 0, mmn),
		eli:           noMatch,
		begSyncLocIdx: noMatch,
		results:       make([]Result, 0, 2*len(locs)),
	}
}

// Reset rewinds tracking state to start scanning from scLocIdx.
func (t *Tracker) Reset(scLocIdx int) {
	t.midiRing = t.midiRing[:0]
	t.mbi = 0
	t.mni = 0
	t.begSyncLocIdx = noMatch
	t.missCnt = 0
	t.scanCnt = 0
	t.eli = noMatch
	t.ili = scLocIdx
	t.results = t.results[:0]
}

func (t *Tracker) ringCap() int { return cap(t.midiRing) }

// OnNoteOn pushes one live note-on and runs the tracker's reactive
// state machine, returning any result records emitted this call
// (spec.md §4.10).
func (t *Tracker) OnNoteOn(ev match.MidiEvt) ([]Result, error) {
	ev.MNI = t.mni
	t.mni++

	wasFull := len(t.midiRing) == t.ringCap()
	if !wasFull {
		t.midiRing = append(t.midiRing, ev)
	} else {
		copy(t.midiRing, t.midiRing[1:])
		t.midiRing[len(t.midiRing)-1] = ev
	}

	justFilled := !wasFull && len(t.midiRing) == t.ringCap()

	var emitted []Result
	switch {
	case justFilled:
		emitted = t.initialScan()
	default:
		ok, err := t.step()
		if err != nil {
			return nil, err
		}
		if ok {
			t.missCnt = 0
		} else {
			t.missCnt++
		}
		if t.missCnt >= t.params.MaxMissCnt && t.params.MaxMissCnt > 0 {
			emitted = t.rescan()
		}
	}
	return emitted, nil
}

// initialScan invokes matcher.Exec at increasing score offsets up to
// initHopCnt hops, tracks the lowest-cost window, and syncs it.
func (t *Tracker) initialScan() []Result {
	minCost := 1e18
	bestLoc := t.ili
	for hop := 0; hop <= t.params.InitHopCnt; hop++ {
		locIdx := t.ili + hop
		locN := len(t.midiRing)
		if locIdx+locN > len(t.locs) {
			break
		}
		if err := t.matcher.Exec(t.locs, locIdx, locN, t.midiRing, minCost); err == nil {
			if c := t.matcher.Cost(); c < minCost {
				minCost = c
				bestLoc = locIdx
			}
		}
	}
	t.begSyncLocIdx = bestLoc
	return t.syncAndEmit()
}

// step tries to extend the match forward by up to stepCnt hops, then
// backward by up to stepCnt-1 from eli.
func (t *Tracker) step() (bool, error) {
	base := t.ili
	if t.eli != noMatch {
		base = t.eli
	}
	minCost := 1e18
	matched := false
	for hop := 0; hop <= t.params.StepCnt; hop++ {
		locIdx := base + hop
		locN := len(t.midiRing)
		if locIdx+locN > len(t.locs) {
			continue
		}
		if err := t.matcher.Exec(t.locs, locIdx, locN, t.midiRing, minCost); err == nil {
			if c := t.matcher.Cost(); c < minCost {
				minCost = c
				matched = true
			}
		}
	}
	for hop := 1; hop < t.params.StepCnt; hop++ {
		locIdx := base - hop
		locN := len(t.midiRing)
		if locIdx < 0 || locIdx+locN > len(t.locs) {
			continue
		}
		if err := t.matcher.Exec(t.locs, locIdx, locN, t.midiRing, minCost); err == nil {
			if c := t.matcher.Cost(); c < minCost {
				minCost = c
				matched = true
			}
		}
	}
	if !matched {
		return false, nil
	}
	t.syncAndEmit()
	return true, nil
}

// rescan counts a rescan, re-applies the matcher's most recent optimal
// path to the ring through syncAndEmit (which resets eli from it), and
// clears the miss count. It does not run a new matcher scan.
func (t *Tracker) rescan() []Result {
	t.scanCnt++
	res := t.syncAndEmit()
	t.missCnt = 0
	return res
}

func (t *Tracker) syncAndEmit() []Result {
	lastLoc, miss := t.matcher.Sync(t.midiRing, len(t.midiRing))
	if lastLoc >= 0 {
		t.eli = lastLoc
	}
	t.missCnt = miss

	var out []Result
	// Emit one record per ring entry reflecting its freshly-stamped
	// location/score-event index (spec.md §4.10's result callback).
	for i := range t.midiRing {
		ev := t.midiRing[i]
		flags := match.Flags(0)
		if ev.LocIdx >= 0 {
			flags |= match.FlagTruePos
		} else {
			flags |= match.FlagFalsePos
		}
		r := Result{
			Index:    len(t.results),
			OLocID:   ev.LocIdx,
			ScEvtIdx: ev.ScEvtIdx,
			MNI:      ev.MNI,
			MUID:     ev.MUID,
			Sec:      0,
			SmpIdx:   ev.SmpIdx,
			Pitch:    ev.Pitch,
			Vel:      ev.Vel,
			Flags:    flags,
			Cost:     t.matcher.Cost(),
		}
		t.results = append(t.results, r)
		out = append(out, r)
	}
	if t.params.Backtrack {
		out = dedupeConfirmedFalsePositives(t.results, out)
	}
	return out
}

// dedupeConfirmedFalsePositives drops earlier false-positive results
// for a location that a later result confirms as a true positive
// (spec.md §4.10's "backtrack" option).
func dedupeConfirmedFalsePositives(all []Result, fresh []Result) []Result {
	confirmed := map[int]bool{}
	for _, r := range fresh {
		if r.Flags&match.FlagTruePos != 0 {
			confirmed[r.OLocID] = true
		}
	}
	out := fresh[:0:0]
	for _, r := range fresh {
		if r.Flags&match.FlagFalsePos != 0 && confirmed[r.OLocID] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Results returns every result record emitted since the last Reset.
func (t *Tracker) Results() []Result { return t.results }
