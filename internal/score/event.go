// Package score implements the immutable score model of spec.md §4.8:
// events/locations/sets/sections built from a parsed CSV score, plus the
// per-event performance-state queries the matcher and tracker consult.
package score

// Opcode is a score event's CSV opcode (spec.md §6).
type Opcode int

const (
	OpBar Opcode = iota
	OpSection
	OpBpm
	OpNoteOn
	OpNoteOff
	OpPedal
	OpRest
	OpCtl
)

func (o Opcode) String() string {
	switch o {
	case OpBar:
		return "bar"
	case OpSection:
		return "sec"
	case OpBpm:
		return "bpm"
	case OpNoteOn:
		return "non"
	case OpNoteOff:
		return "nof"
	case OpPedal:
		return "ped"
	case OpRest:
		return "rst"
	case OpCtl:
		return "ctl"
	default:
		return "?"
	}
}

// VarKind is the set of per-event measurement variables a score event
// may belong to (dyn/even/tempo, spec.md §4.8 "Sets").
type VarKind int

const (
	VarDyn VarKind = iota
	VarEven
	VarTempo
)

// VarMembership records one (varKind, set, end-of-set, target-section)
// tuple an event carries, mirroring cwSfScore.h's var_t.
type VarMembership struct {
	Kind       VarKind
	Set        *Set
	EndOfSet   bool
	SectionTag string // named target section, only meaningful when EndOfSet
}

// Event is one immutable score event (cwSfScore.h's event_t).
type Event struct {
	Index      int // dense [0, eventN)
	Opcode     Opcode
	Bar        int
	Voice      int
	Tick       int
	Secs       float64
	DurSecs    float64
	OLocID     int // index of the onset location containing this event
	Pitch      uint8
	Vel        uint8
	SciPitch   string
	DynMark    string
	DynLevel   int
	Status     uint8
	D0, D1     uint8
	Grace       bool
	Tie         rune // 0, 't', '_', 'T'
	Onset       bool
	BPM         int
	CSVRow      int
	Hash        uint32 // (op, bar, pitch, bar-pitch-index)
	SectionName string // non-empty only on the row that opens a new section
	Section     *Section
	Vars        []VarMembership

	// Performance state, mutated by SetPerf/ClearAllPerformanceData.
	PerfFl        bool
	PerfCnt       int
	PerfSec       float64
	PerfVel       uint8
	PerfDynLevel  int
	PerfMatchCost float64
}

// Location is the set of all events sharing an onset time (spec.md
// §4.8 "Locations are coalesced by equal score seconds; locId ==
// locIndex").
type Location struct {
	Index  int
	Secs   float64
	Events []*Event
	Bar    int
}

// Set is a contiguous run of events bearing the same VarKind membership,
// ended by an end-of-set flag (cwSfScore.h's set_t).
type Set struct {
	ID         int
	Kind       VarKind
	Events     []*Event
	LocN       int
	Sections   []*Section
	SectionTag string

	perfEventCnt  int
	perfUpdateCnt int
}

// Section is a contiguous labelled span of events (cwSfScore.h's
// section_t).
type Section struct {
	Label       string
	Index       int
	BegEvtIndex int
	EndEvtIndex int
	Sets        []*Set
}
