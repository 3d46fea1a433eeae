// Package match implements the DP edit-distance score/MIDI aligner of
// spec.md §4.9 (sfmatch): given a score window of locations and a
// window of recent MIDI notes, find the alignment with least edit cost
// and the single best backtrace path through it.
package match

import (
	"github.com/larkecw/sfengine/internal/engerr"
)

// Flags mark a matrix cell / path node's role (cwSfMatch.h's
// kSmMatchFl..kSmNoteFl).
type Flags uint

const (
	FlagMatch Flags = 1 << iota
	FlagTranspose
	FlagTruePos
	FlagFalsePos
	FlagBar
	FlagNote
)

// Op identifies which DP recurrence produced a cell's minimum
// (cwSfMatch.h's kSm{Min,Sub,Del,Ins}Idx).
type Op int

const (
	OpSub Op = iota
	OpDel
	OpIns
)

// MidiEvt is one note in the live MIDI window (cwSfMatch.h's midi_t).
type MidiEvt struct {
	MNI       int // unique, monotonic id — lets callers detect backtracking
	MUID      int
	SmpIdx    int
	Pitch     int
	Vel       int
	LocIdx    int // stamped by Sync; -1 if unmatched
	ScEvtIdx  int // stamped by Sync; -1 if unmatched
}

// LocEvt is one score event occurring at a location (cwSfMatch.h's
// event_t nested in loc_t).
type LocEvt struct {
	Pitch    int
	ScEvtIdx int
}

// Loc is one score-window location (cwSfMatch.h's loc_t).
type Loc struct {
	Events   []LocEvt
	ScLocIdx int
	Bar      int
}

type cell struct {
	minOp    Op
	min      int
	flags    Flags
	scEvtIdx int
}

// PathNode is one step of the retained optimal alignment, youngest
// (bottom-right) first (cwSfMatch.h's path_t, as a slice instead of a
// hand-rolled free list — Go's GC makes the C allocator pool moot).
type PathNode struct {
	Op       Op
	Ri, Ci   int
	Flags    Flags
	LocIdx   int // index into the score window, or -1
	ScEvtIdx int
}

// Matcher holds the DP matrix and the last optimal path found by Exec.
type Matcher struct {
	MaxMidiWndN int
	MaxScWndN   int

	matrix  [][]cell
	optPath []PathNode
	optCost float64
}

func New(maxMidiWndN, maxScWndN int) *Matcher {
	return &Matcher{MaxMidiWndN: maxMidiWndN, MaxScWndN: maxScWndN}
}

func isMatch(loc Loc, pitch int) (bool, int) {
	for _, e := range loc.Events {
		if e.Pitch == pitch {
			return true, e.ScEvtIdx
		}
	}
	return false, -1
}

// Exec locates the best alignment of midiV[0:midiN] within
// locs[locIdx:locIdx+locN], updating the optimal path only if its
// cost is strictly less than minCost. Returns engerr.EOF if the window
// extends past the end of the score (spec.md §4.9).
func (m *Matcher) Exec(locs []Loc, locIdx, locN int, midiV []MidiEvt, minCost float64) error {
	if locIdx+locN > len(locs) {
		return engerr.EOF
	}
	if locN > m.MaxScWndN || len(midiV) > m.MaxMidiWndN {
		return engerr.New(engerr.InvalidArg, "match: window exceeds allocated bounds")
	}
	window := locs[locIdx : locIdx+locN]
	midiN := len(midiV)

	mat := make([][]cell, midiN+1)
	for i := range mat {
		mat[i] = make([]cell, locN+1)
	}
	for i := 0; i <= midiN; i++ {
		mat[i][0] = cell{min: i, minOp: OpDel}
	}
	for j := 0; j <= locN; j++ {
		mat[0][j] = cell{min: j, minOp: OpIns}
	}

	for i := 1; i <= midiN; i++ {
		for j := 1; j <= locN; j++ {
			matched, scEvtIdx := isMatch(window[j-1], midiV[i-1].Pitch)
			subCost := mat[i-1][j-1].min
			if !matched {
				subCost++
			}
			delCost := mat[i-1][j].min + 1
			insCost := mat[i][j-1].min + 1

			c := cell{min: subCost, minOp: OpSub}
			if delCost < c.min {
				c.min, c.minOp = delCost, OpDel
			}
			if insCost < c.min {
				c.min, c.minOp = insCost, OpIns
			}
			if matched {
				c.flags |= FlagMatch
				c.scEvtIdx = scEvtIdx
			} else if i >= 2 && j >= 2 {
				// transpose: the adjacent (i-1,j-1)/(i,j) subs swap an
				// adjacent note pair.
				_, prevScEvt := isMatch(window[j-2], midiV[i-1].Pitch)
				_, curScEvt := isMatch(window[j-1], midiV[i-2].Pitch)
				if prevScEvt >= 0 && curScEvt >= 0 {
					c.flags |= FlagTranspose
				}
			}
			mat[i][j] = c
		}
	}

	cost := float64(mat[midiN][locN].min)
	if cost >= minCost {
		return nil
	}
	m.matrix = mat
	m.optCost = cost
	m.optPath = backtrace(mat, window, locIdx, midiN, locN)
	return nil
}

// backtrace walks one path from the bottom-right cell to the top-left,
// at each cell taking the cell's stored minOp (Exec breaks cost ties in
// favour of sub, then del, then ins). The match/transpose flags are
// copied onto the path nodes but do not steer the walk, and a transpose
// earns no cost credit. No other minimum-cost path is enumerated or
// scored.
func backtrace(mat [][]cell, window []Loc, locBase, midiN, locN int) []PathNode {
	var path []PathNode
	i, j := midiN, locN
	for i > 0 || j > 0 {
		switch {
		case i == 0:
			path = append(path, PathNode{Op: OpIns, Ri: i, Ci: j, LocIdx: locBase + j - 1})
			j--
		case j == 0:
			path = append(path, PathNode{Op: OpDel, Ri: i, Ci: j})
			i--
		default:
			c := mat[i][j]
			node := PathNode{Op: c.minOp, Ri: i, Ci: j, Flags: c.flags, ScEvtIdx: c.scEvtIdx, LocIdx: -1}
			switch c.minOp {
			case OpSub:
				node.LocIdx = locBase + j - 1
				i--
				j--
			case OpDel:
				i--
			case OpIns:
				node.LocIdx = locBase + j - 1
				j--
			}
			path = append(path, node)
		}
	}
	return path
}

// OptimalPath returns the last path found by Exec, oldest (top-left)
// first.
func (m *Matcher) OptimalPath() []PathNode {
	out := make([]PathNode, len(m.optPath))
	for i, n := range m.optPath {
		out[len(m.optPath)-1-i] = n
	}
	return out
}

func (m *Matcher) Cost() float64 { return m.optCost }

// Sync walks the stored optimal path and stamps each non-insert MIDI
// event in midiBuf[0:midiN] with its matched location/score-event
// index, returning the last matched location and the trailing miss
// count (spec.md §4.9).
func (m *Matcher) Sync(midiBuf []MidiEvt, midiN int) (lastLoc int, missCnt int) {
	path := m.OptimalPath()
	lastLoc = -1
	midiIdx := 0
	trailingMiss := 0
	for _, n := range path {
		if n.Op == OpIns {
			continue
		}
		if midiIdx >= midiN {
			break
		}
		ev := &midiBuf[midiIdx]
		if n.Flags&FlagMatch != 0 {
			ev.LocIdx = n.LocIdx
			ev.ScEvtIdx = n.ScEvtIdx
			lastLoc = n.LocIdx
			trailingMiss = 0
		} else {
			ev.LocIdx = n.LocIdx
			ev.ScEvtIdx = -1
			trailingMiss++
		}
		midiIdx++
	}
	return lastLoc, trailingMiss
}
