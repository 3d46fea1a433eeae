package score

import (
	"sort"

	"github.com/larkecw/sfengine/internal/engerr"
)

// Score is the immutable, parsed score model (cwSfScore.h's
// sfscore_str handle): events, locations, sets, and sections, plus
// mutable per-event performance state updated during a live run.
type Score struct {
	SampleRate float64
	Events     []*Event
	Locations  []*Location
	Sets       []*Set
	Sections   []*Section

	hashIdx map[uint32]*Event
	barIdx  map[int]*Event // first event of each bar
}

// Build assembles a Score from parsed rows (spec.md §4.8), failing with
// a specific engerr.Kind on any of the documented parser invariant
// violations: bad set length, section gap, duplicate hash.
func Build(rows []Event, srate float64) (*Score, error) {
	sc := &Score{SampleRate: srate, hashIdx: map[uint32]*Event{}, barIdx: map[int]*Event{}}

	sc.Events = make([]*Event, len(rows))
	for i := range rows {
		ev := rows[i]
		ev.Index = i
		sc.Events[i] = &ev
	}

	if err := sc.buildHashIndex(); err != nil {
		return nil, err
	}
	sc.buildBarIndex()
	sc.buildLocations()
	if err := sc.buildSets(); err != nil {
		return nil, err
	}
	if err := sc.buildSections(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Score) buildHashIndex() error {
	for _, ev := range sc.Events {
		if ev.Opcode != OpNoteOn {
			continue
		}
		if prior, ok := sc.hashIdx[ev.Hash]; ok {
			return engerr.New(engerr.InvalidState, "score: duplicate hash %d (event %d collides with event %d)", ev.Hash, ev.Index, prior.Index)
		}
		sc.hashIdx[ev.Hash] = ev
	}
	return nil
}

func (sc *Score) buildBarIndex() {
	for _, ev := range sc.Events {
		if _, ok := sc.barIdx[ev.Bar]; !ok {
			sc.barIdx[ev.Bar] = ev
		}
	}
}

// buildLocations coalesces events sharing equal score seconds into dense
// Locations; locId == locIndex (spec.md §4.8).
func (sc *Score) buildLocations() {
	var cur *Location
	for _, ev := range sc.Events {
		if cur == nil || ev.Secs != cur.Secs {
			cur = &Location{Index: len(sc.Locations), Secs: ev.Secs, Bar: ev.Bar}
			sc.Locations = append(sc.Locations, cur)
		}
		cur.Events = append(cur.Events, ev)
		ev.OLocID = cur.Index
	}
}

// buildSets groups consecutive runs of events bearing the same VarKind
// membership, closed by an end-of-set flag; the set's target section is
// the named section on the end-event, propagated backward to previous
// sets of the same kind when none was named (spec.md §4.8).
func (sc *Score) buildSets() error {
	open := map[VarKind]*Set{}

	for _, ev := range sc.Events {
		for _, m := range ev.Vars {
			s, ok := open[m.Kind]
			if !ok {
				s = &Set{ID: len(sc.Sets), Kind: m.Kind}
				sc.Sets = append(sc.Sets, s)
				open[m.Kind] = s
			}
			s.Events = append(s.Events, ev)

			if m.EndOfSet {
				if len(s.Events) == 0 {
					return engerr.New(engerr.InvalidState, "score: zero-length set ending at event %d", ev.Index)
				}
				s.SectionTag = m.SectionTag
				s.LocN = s.Events[len(s.Events)-1].OLocID - s.Events[0].OLocID + 1
				if err := validateSetLocationCount(s); err != nil {
					return err
				}
				delete(open, m.Kind)
			}
		}
	}
	for kind, s := range open {
		return engerr.New(engerr.InvalidState, "score: set of kind %d left open at end of score (event %d)", kind, s.Events[len(s.Events)-1].Index)
	}
	nextTag := map[VarKind]string{}
	for i := len(sc.Sets) - 1; i >= 0; i-- {
		s := sc.Sets[i]
		if s.SectionTag == "" {
			s.SectionTag = nextTag[s.Kind]
		} else {
			nextTag[s.Kind] = s.SectionTag
		}
	}
	for _, s := range sc.Sets {
		for _, ev := range s.Events {
			for i := range ev.Vars {
				if ev.Vars[i].Kind == s.Kind {
					ev.Vars[i].Set = s
				}
			}
		}
	}
	return nil
}

// validateSetLocationCount enforces original_source/cwScoreParse.cpp's
// _validate_sets: an 'even' set must span at least 3 distinct locations
// and a 'tempo' set at least 2, counted the same way the original does
// (a running dedup over each member event's location id).
func validateSetLocationCount(s *Set) error {
	var minLocN int
	switch s.Kind {
	case VarEven:
		minLocN = 3
	case VarTempo:
		minLocN = 2
	default:
		return nil
	}

	seen := map[int]bool{}
	locN := 0
	for _, ev := range s.Events {
		if !seen[ev.OLocID] {
			seen[ev.OLocID] = true
			locN++
		}
	}
	if locN < minLocN {
		return engerr.New(engerr.SyntaxError, "score: set %d (kind %d) spans only %d distinct location(s), need at least %d", s.ID, s.Kind, locN, minLocN)
	}
	return nil
}

// buildSections sorts sections by label and CSV row, and verifies that
// consecutive sections abut: endEvent.index+1 == nextSection.begEvent
// (spec.md §4.8).
func (sc *Score) buildSections() error {
	type pending struct {
		label    string
		begIndex int
		row      int
	}
	var starts []pending
	for _, ev := range sc.Events {
		if ev.SectionName != "" {
			starts = append(starts, pending{label: ev.SectionName, begIndex: ev.Index, row: ev.CSVRow})
		}
	}
	if len(starts) == 0 {
		return nil
	}

	// Boundaries come from appearance order (starts is already in row
	// order since it was built by a single forward pass over sc.Events):
	// each section runs up to the event just before the next one begins.
	sections := make([]*Section, len(starts))
	for i, p := range starts {
		end := len(sc.Events) - 1
		if i+1 < len(starts) {
			end = starts[i+1].begIndex - 1
		}
		sec := &Section{Label: p.label, BegEvtIndex: p.begIndex, EndEvtIndex: end}
		sections[i] = sec
		for idx := p.begIndex; idx <= end && idx < len(sc.Events); idx++ {
			sc.Events[idx].Section = sec
		}
	}

	// cwSfScore.h presents sections sorted by label (and by CSV row to
	// break ties); valid scores name sections so this order coincides
	// with appearance order, which the adjacency check below verifies.
	sc.Sections = append([]*Section(nil), sections...)
	sort.Slice(sc.Sections, func(i, j int) bool {
		if sc.Sections[i].Label != sc.Sections[j].Label {
			return sc.Sections[i].Label < sc.Sections[j].Label
		}
		return sc.Sections[i].BegEvtIndex < sc.Sections[j].BegEvtIndex
	})
	for i, sec := range sc.Sections {
		sec.Index = i
	}
	for i := 1; i < len(sc.Sections); i++ {
		prev, next := sc.Sections[i-1], sc.Sections[i]
		if prev.EndEvtIndex+1 != next.BegEvtIndex {
			return engerr.New(engerr.InvalidState, "score: section gap between %q (ends %d) and %q (begins %d): section labels must sort in appearance order", prev.Label, prev.EndEvtIndex, next.Label, next.BegEvtIndex)
		}
	}
	for _, s := range sc.Sets {
		for _, sec := range sc.Sections {
			if sec.Label == s.SectionTag {
				s.Sections = append(s.Sections, sec)
				sec.Sets = append(sec.Sets, s)
			}
		}
	}
	return nil
}

// SetPerf stamps event_idx with a performance hit: time, velocity and
// match cost; the pitch argument is not stored (cwSfScore.h's set_perf).
func (sc *Score) SetPerf(eventIdx int, secs float64, _ uint8, vel uint8, cost float64) error {
	if eventIdx < 0 || eventIdx >= len(sc.Events) {
		return engerr.New(engerr.InvalidID, "score: event index %d out of range", eventIdx)
	}
	ev := sc.Events[eventIdx]
	ev.PerfFl = true
	ev.PerfCnt++
	ev.PerfSec = secs
	ev.PerfVel = vel
	ev.PerfMatchCost = cost
	return nil
}

// ClearAllPerformanceData rewinds every event and set performance
// counter (cwSfScore.h's clear_all_performance_data).
func (sc *Score) ClearAllPerformanceData() {
	for _, ev := range sc.Events {
		ev.PerfFl = false
		ev.PerfCnt = 0
		ev.PerfSec = 0
		ev.PerfVel = 0
		ev.PerfDynLevel = 0
		ev.PerfMatchCost = 0
	}
	for _, s := range sc.Sets {
		s.perfEventCnt = 0
		s.perfUpdateCnt = 0
	}
}

// Event returns the event at idx.
func (sc *Score) Event(idx int) (*Event, error) {
	if idx < 0 || idx >= len(sc.Events) {
		return nil, engerr.New(engerr.InvalidID, "score: event index %d out of range", idx)
	}
	return sc.Events[idx], nil
}

// HashToEvent looks an event up by its note-on hash.
func (sc *Score) HashToEvent(hash uint32) (*Event, error) {
	ev, ok := sc.hashIdx[hash]
	if !ok {
		return nil, engerr.New(engerr.NotFound, "score: no event for hash %d", hash)
	}
	return ev, nil
}

// BarToEvent returns the first event in the given bar.
func (sc *Score) BarToEvent(bar int) (*Event, error) {
	ev, ok := sc.barIdx[bar]
	if !ok {
		return nil, engerr.New(engerr.NotFound, "score: no event in bar %d", bar)
	}
	return ev, nil
}

// EventIndexToSection returns the section containing the given event
// index.
func (sc *Score) EventIndexToSection(idx int) (*Section, error) {
	ev, err := sc.Event(idx)
	if err != nil {
		return nil, err
	}
	if ev.Section == nil {
		return nil, engerr.New(engerr.NotFound, "score: event %d has no section", idx)
	}
	return ev.Section, nil
}

// AreAllLocSetEventsPerformed reports whether every event belonging to
// a set and located at locId has been performed.
func (sc *Score) AreAllLocSetEventsPerformed(locID int) (bool, error) {
	if locID < 0 || locID >= len(sc.Locations) {
		return false, engerr.New(engerr.InvalidID, "score: location %d out of range", locID)
	}
	for _, ev := range sc.Locations[locID].Events {
		for _, m := range ev.Vars {
			if m.Set != nil && !ev.PerfFl {
				return false, nil
			}
		}
	}
	return true, nil
}
