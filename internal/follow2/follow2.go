// Package follow2 implements the alternative score follower of
// spec.md §4.11 (score_follow_2): for each location it precomputes a
// search window of nearby notes and a triangular affinity envelope,
// then tracks expectation over incoming notes with tempo-corrected
// acceptance thresholds rather than internal/track's DP rescans.
package follow2

// Note is one score note-on candidate a search window can point into.
type Note struct {
	Pitch    int
	LocID    int
	ScEvtIdx int
	Sec      float64
	Quota    int // count of notes expected at this note's location
}

// Params are the follower's tuning knobs (spec.md §4.11).
type Params struct {
	PreWndSec, PostWndSec   float64
	MinWndLocCnt            int
	PreAffinitySec          float64
	PostAffinitySec         float64
	MinAffinityLocCnt       int
	LoSecThresh, LoLocThresh float64
	HiLocThresh, HiSecThresh float64
	DLocStatsThresh         int
	DecayCoef               float64
	EndLocID                int
}

type affEntry struct {
	noteIdx int
	weight  float64
}

// Result is emitted for each incoming note (accepted, spurious, or
// rejected).
type Result struct {
	Accepted   bool
	Spurious   bool
	NoteIdx    int
	DLoc       int
	DScoreSec  float64
	DPerfSec   float64
	DCorr      float64
}

// Follower is score_follow_2's tracker state (cwScoreFollow2.cpp's
// sf_t/trkr_t).
type Follower struct {
	notes   []Note
	locSecs map[int]float64 // representative score seconds per LocID

	searchWnd   [][]int      // per-note-index search window (note indices)
	affinityWnd [][]affEntry // per-note-index affinity envelope

	expectation []float64
	matched     []bool

	expLocID    int
	tempoFactor float64
	begScoreSec float64
	begPerfSec  float64
	haveBeg     bool
	matchCount  int

	params Params
}

// New precomputes search windows and affinity envelopes for every note
// and starts expectation at startLocID (spec.md §4.11).
func New(notes []Note, startLocID int, p Params) *Follower {
	f := &Follower{
		notes:       notes,
		locSecs:     map[int]float64{},
		expectation: make([]float64, len(notes)),
		matched:     make([]bool, len(notes)),
		expLocID:    startLocID,
		tempoFactor: 1.0,
		params:      p,
	}
	for _, n := range notes {
		if _, ok := f.locSecs[n.LocID]; !ok {
			f.locSecs[n.LocID] = n.Sec
		}
	}
	f.buildSearchWindows()
	f.buildAffinityWindows()
	f.applyAffinity(startLocID)
	return f
}

func (f *Follower) buildSearchWindows() {
	f.searchWnd = make([][]int, len(f.notes))
	for i := range f.notes {
		lo, hi := i, i
		for lo-1 >= 0 && (f.notes[i].Sec-f.notes[lo-1].Sec <= f.params.PreWndSec || i-lo+1 < f.params.MinWndLocCnt) {
			lo--
		}
		for hi+1 < len(f.notes) && (f.notes[hi+1].Sec-f.notes[i].Sec <= f.params.PostWndSec || hi-i+1 < f.params.MinWndLocCnt) {
			hi++
		}
		var wnd []int
		for j := lo; j <= hi; j++ {
			wnd = append(wnd, j)
		}
		f.searchWnd[i] = wnd
	}
}

func (f *Follower) buildAffinityWindows() {
	f.affinityWnd = make([][]affEntry, len(f.notes))
	for i, n := range f.notes {
		lo, hi := i, i
		for lo-1 >= 0 && (n.Sec-f.notes[lo-1].Sec <= f.params.PreAffinitySec || i-lo+1 < f.params.MinAffinityLocCnt) {
			lo--
		}
		for hi+1 < len(f.notes) && (f.notes[hi+1].Sec-n.Sec <= f.params.PostAffinitySec || hi-i+1 < f.params.MinAffinityLocCnt) {
			hi++
		}
		wndDur := f.params.PreAffinitySec + f.params.PostAffinitySec
		var env []affEntry
		for j := lo; j <= hi; j++ {
			dt := f.notes[j].Sec - n.Sec
			if dt < 0 {
				dt = -dt
			}
			w := (wndDur - dt) / wndDur
			if w < 0 {
				w = 0
			}
			env = append(env, affEntry{noteIdx: j, weight: w})
		}
		f.affinityWnd[i] = env
	}
}

// applyAffinity adds the affinity envelope of the first note at locID
// to the expectation vector, mirroring _trkr_apply_affinity.
func (f *Follower) applyAffinity(locID int) {
	idx := f.firstNoteAt(locID)
	if idx < 0 {
		return
	}
	for _, a := range f.affinityWnd[idx] {
		f.expectation[a.noteIdx] += a.weight
	}
}

func (f *Follower) firstNoteAt(locID int) int {
	for i, n := range f.notes {
		if n.LocID == locID {
			return i
		}
	}
	return -1
}

// OnNote processes one incoming performed note (spec.md §4.11 steps
// 1-5).
func (f *Follower) OnNote(pitch int, perfSec float64) Result {
	expIdx := f.firstNoteAt(f.expLocID)
	if expIdx < 0 {
		return Result{Spurious: true}
	}

	candidate := -1
	bestExp := -1.0
	for _, ni := range f.searchWnd[expIdx] {
		if f.matched[ni] || f.notes[ni].Pitch != pitch {
			continue
		}
		if f.expectation[ni] > bestExp {
			bestExp = f.expectation[ni]
			candidate = ni
		}
	}
	if candidate < 0 {
		return Result{Spurious: true}
	}

	dLoc := f.notes[candidate].LocID - f.expLocID
	dScoreSec := f.notes[candidate].Sec - f.locSecs[f.expLocID]
	dPerfSec := 0.0
	dCorr := 0.0
	if f.haveBeg {
		dPerfSec = perfSec - f.begPerfSec
		scoreSec := f.notes[candidate].Sec - f.begScoreSec
		dCorr = dPerfSec - scoreSec/f.tempoFactor
	}

	absCorr, absLoc := abs(dCorr), absInt(dLoc)
	reject := (absCorr > f.params.LoSecThresh && float64(absLoc) > f.params.LoLocThresh) ||
		float64(absLoc) > f.params.HiLocThresh ||
		(dLoc > 0 && absCorr > f.params.HiSecThresh)
	if reject {
		return Result{NoteIdx: candidate, DLoc: dLoc, DScoreSec: dScoreSec, DPerfSec: dPerfSec, DCorr: dCorr}
	}

	f.matched[candidate] = true
	f.matchCount++
	if !f.haveBeg {
		f.begScoreSec = f.notes[candidate].Sec
		f.begPerfSec = perfSec
		f.haveBeg = true
	} else if dLoc >= 0 && dLoc < f.params.DLocStatsThresh {
		scoreSec := f.notes[candidate].Sec - f.begScoreSec
		if dPerfSec > 0 {
			newFactor := scoreSec / dPerfSec
			f.tempoFactor = runningMean(f.tempoFactor, newFactor, f.matchCount)
		}
	}

	f.advanceExpected(candidate)
	return Result{Accepted: true, NoteIdx: candidate, DLoc: dLoc, DScoreSec: dScoreSec, DPerfSec: dPerfSec, DCorr: dCorr}
}

// advanceExpected moves the expected location to the next one whose
// note-quota is not yet full and applies its affinity envelope.
func (f *Follower) advanceExpected(fromIdx int) {
	for i := fromIdx + 1; i < len(f.notes); i++ {
		n := f.notes[i]
		if f.quotaFilled(n.LocID) {
			continue
		}
		f.expLocID = n.LocID
		f.applyAffinity(n.LocID)
		return
	}
	f.expLocID = f.params.EndLocID
}

func (f *Follower) quotaFilled(locID int) bool {
	quota, matched := 0, 0
	for i, n := range f.notes {
		if n.LocID != locID {
			continue
		}
		quota = n.Quota
		if f.matched[i] {
			matched++
		}
	}
	return quota > 0 && matched >= quota
}

// Decay attenuates the expectation vector within the current search
// window by DecayCoef; call once per cycle with no input note.
func (f *Follower) Decay() {
	expIdx := f.firstNoteAt(f.expLocID)
	if expIdx < 0 {
		return
	}
	for _, ni := range f.searchWnd[expIdx] {
		f.expectation[ni] *= f.params.DecayCoef
	}
}

// Done reports whether the expected location has reached end_loc_id or
// the score end (spec.md §4.11).
func (f *Follower) Done() bool {
	return f.expLocID == f.params.EndLocID || f.firstNoteAt(f.expLocID) < 0
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func runningMean(mean, sample float64, n int) float64 {
	if n <= 1 {
		return sample
	}
	return mean + (sample-mean)/float64(n)
}
