package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/engerr"
)

const testHeader = "opcode,meas,index,voice,loc,eloc,oloc,tick,sec,dur,rval,dots,sci_pitch,dmark,dlevel,status,d0,d1,bar,section,bpm,grace,tie,onset,pedal,dyn,even,tempo\n"

func csvRow(fields map[string]string) string {
	order := strings.Split(strings.TrimSuffix(testHeader, "\n"), ",")
	row := make([]string, len(order))
	for i, col := range order {
		row[i] = fields[col]
	}
	return strings.Join(row, ",")
}

func TestParseCSVRejectsMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("opcode,meas\nnon,1\n"))
	require.Error(t, err)
}

func TestParseCSVBuildsNoteOnEvents(t *testing.T) {
	csv := testHeader +
		csvRow(map[string]string{"opcode": "non", "bar": "1", "sec": "0.0", "d0": "60", "d1": "80"}) + "\n" +
		csvRow(map[string]string{"opcode": "non", "bar": "1", "sec": "0.5", "d0": "62", "d1": "80"}) + "\n"

	events, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, OpNoteOn, events[0].Opcode)
	assert.EqualValues(t, 60, events[0].Pitch)
	assert.NotEqual(t, events[0].Hash, events[1].Hash)
}

func TestBuildCoalescesLocationsBySeconds(t *testing.T) {
	csv := testHeader +
		csvRow(map[string]string{"opcode": "non", "bar": "1", "sec": "0.0", "d0": "60", "d1": "80"}) + "\n" +
		csvRow(map[string]string{"opcode": "non", "bar": "1", "sec": "0.0", "d0": "64", "d1": "80"}) + "\n" +
		csvRow(map[string]string{"opcode": "non", "bar": "1", "sec": "1.0", "d0": "67", "d1": "80"}) + "\n"

	rows, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)

	sc, err := Build(rows, 48000)
	require.NoError(t, err)
	require.Len(t, sc.Locations, 2)
	assert.Len(t, sc.Locations[0].Events, 2)
	assert.Len(t, sc.Locations[1].Events, 1)
	assert.Equal(t, 0, sc.Events[0].OLocID)
	assert.Equal(t, 1, sc.Events[2].OLocID)
}

func TestBuildRejectsDuplicateHash(t *testing.T) {
	// Two note-ons with identical (op, bar, pitch, bar-pitch-index) collide.
	ev := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Hash: 42}
	ev2 := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Hash: 42}
	_, err := Build([]Event{ev, ev2}, 48000)
	require.Error(t, err)
}

func TestBuildRejectsUnclosedSet(t *testing.T) {
	ev := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarDyn, EndOfSet: false}}}
	_, err := Build([]Event{ev}, 48000)
	require.Error(t, err)
}

func TestBuildClosesSetAndPropagatesSectionTagBackward(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarDyn, EndOfSet: true, SectionTag: ""}}}
	b := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 62, Secs: 1,
		Vars: []VarMembership{{Kind: VarDyn, EndOfSet: true, SectionTag: "A"}}}

	sc, err := Build([]Event{a, b}, 48000)
	require.NoError(t, err)
	require.Len(t, sc.Sets, 2)
	assert.Equal(t, "A", sc.Sets[0].SectionTag, "unlabeled end-of-set should take the next closed set's section")
	assert.Equal(t, "A", sc.Sets[1].SectionTag)
}

func TestSectionsInAppearanceOrderBuildCleanly(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, SectionName: "A01"}
	b := Event{Opcode: OpRest, Bar: 1}
	c := Event{Opcode: OpNoteOn, Bar: 2, SectionName: "A02"}

	sc, err := Build([]Event{a, b, c}, 48000)
	require.NoError(t, err)
	require.Len(t, sc.Sections, 2)
	assert.Equal(t, "A01", sc.Sections[0].Label)
	assert.Equal(t, "A02", sc.Sections[1].Label)
	assert.Equal(t, 1, sc.Sections[0].EndEvtIndex)
	assert.Equal(t, 2, sc.Sections[1].BegEvtIndex)
}

func TestSectionLabelOutOfAppearanceOrderFailsBuild(t *testing.T) {
	// "verse" sorts after "intro" by strcmp, but appears first in the
	// score — the label ordering invariant (spec.md §6) is violated.
	a := Event{Opcode: OpNoteOn, Bar: 1, SectionName: "verse"}
	b := Event{Opcode: OpNoteOn, Bar: 2, SectionName: "intro"}

	_, err := Build([]Event{a, b}, 48000)
	require.Error(t, err)
}

func TestBuildRejectsEvenSetSpanningFewerThanThreeLocations(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarEven, EndOfSet: false}}}
	b := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 62, Secs: 1,
		Vars: []VarMembership{{Kind: VarEven, EndOfSet: true, SectionTag: "A"}}}

	_, err := Build([]Event{a, b}, 48000)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.SyntaxError))
}

func TestBuildAcceptsEvenSetSpanningThreeLocations(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarEven, EndOfSet: false}}}
	b := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 62, Secs: 1,
		Vars: []VarMembership{{Kind: VarEven, EndOfSet: false}}}
	c := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 64, Secs: 2,
		Vars: []VarMembership{{Kind: VarEven, EndOfSet: true, SectionTag: "A"}}}

	_, err := Build([]Event{a, b, c}, 48000)
	require.NoError(t, err)
}

func TestBuildRejectsTempoSetSpanningFewerThanTwoLocations(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarTempo, EndOfSet: true, SectionTag: "A"}}}

	_, err := Build([]Event{a}, 48000)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.SyntaxError))
}

func TestBuildAcceptsTempoSetSpanningTwoLocations(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Secs: 0,
		Vars: []VarMembership{{Kind: VarTempo, EndOfSet: false}}}
	b := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 62, Secs: 1,
		Vars: []VarMembership{{Kind: VarTempo, EndOfSet: true, SectionTag: "A"}}}

	_, err := Build([]Event{a, b}, 48000)
	require.NoError(t, err)
}

func TestSetPerfAndClearAllPerformanceData(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60}
	sc, err := Build([]Event{a}, 48000)
	require.NoError(t, err)

	require.NoError(t, sc.SetPerf(0, 1.25, 60, 90, 0.5))
	ev, err := sc.Event(0)
	require.NoError(t, err)
	assert.True(t, ev.PerfFl)
	assert.Equal(t, 1, ev.PerfCnt)

	sc.ClearAllPerformanceData()
	ev, _ = sc.Event(0)
	assert.False(t, ev.PerfFl)
	assert.Equal(t, 0, ev.PerfCnt)
}

func TestHashToEventAndBarToEvent(t *testing.T) {
	a := Event{Opcode: OpNoteOn, Bar: 1, Pitch: 60, Hash: 7}
	b := Event{Opcode: OpNoteOn, Bar: 2, Pitch: 62, Hash: 9}
	sc, err := Build([]Event{a, b}, 48000)
	require.NoError(t, err)

	ev, err := sc.HashToEvent(7)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Index)

	ev, err = sc.BarToEvent(2)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Index)

	_, err = sc.HashToEvent(999)
	assert.Error(t, err)
}
