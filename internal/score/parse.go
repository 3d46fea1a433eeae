package score

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/larkecw/sfengine/internal/engerr"
)

// requiredCols is the exact column list spec.md §6 requires, in any
// order within the header row.
var requiredCols = []string{
	"opcode", "meas", "index", "voice", "loc", "eloc", "oloc", "tick",
	"sec", "dur", "rval", "dots", "sci_pitch", "dmark", "dlevel",
	"status", "d0", "d1", "bar", "section", "bpm", "grace", "tie",
	"onset", "pedal", "dyn", "even", "tempo",
}

func parseOpcode(s string) (Opcode, error) {
	switch s {
	case "bar":
		return OpBar, nil
	case "sec":
		return OpSection, nil
	case "bpm":
		return OpBpm, nil
	case "non":
		return OpNoteOn, nil
	case "nof":
		return OpNoteOff, nil
	case "ped":
		return OpPedal, nil
	case "rst":
		return OpRest, nil
	case "ctl":
		return OpCtl, nil
	default:
		return 0, engerr.New(engerr.SyntaxError, "score csv: unknown opcode %q", s)
	}
}

func atoiOr0(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func atofOr0(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func byteOr0(s string) uint8 {
	return uint8(atoiOr0(s))
}

// varCell parses one dyn/even/tempo CSV cell: zero or more tokens, each
// a single d/e/t (or uppercase end-of-set variant D/E/T) optionally
// followed by whitespace and a section label (spec.md §6).
func varCell(kind VarKind, cell string) []VarMembership {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	var out []VarMembership
	toks := strings.Fields(cell)
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		end := false
		letter := tok[0]
		switch letter {
		case 'D', 'E', 'T':
			end = true
		}
		tag := ""
		if len(tok) > 1 {
			tag = tok[1:]
		} else if i+1 < len(toks) && !(len(toks[i+1]) == 1 && strings.ContainsRune("dDeEtT", rune(toks[i+1][0]))) {
			i++
			tag = toks[i]
		}
		out = append(out, VarMembership{Kind: kind, EndOfSet: end, SectionTag: tag})
	}
	return out
}

// ParseCSV reads a score CSV file per spec.md §6's column set and
// returns one Event per data row, unassembled (locations/sets/sections
// are computed by Build). Grounded on cwScoreParse.cpp/
// cwSfScoreParser.cpp's row-to-event conversion; encoding/csv is used
// directly because no example repo's go.mod carries a CSV library.
func ParseCSV(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, engerr.New(engerr.SyntaxError, "score csv: empty file")
		}
		return nil, engerr.Wrap(engerr.SyntaxError, err, "score csv: reading header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range requiredCols {
		if _, ok := col[want]; !ok {
			return nil, engerr.New(engerr.SyntaxError, "score csv: missing required column %q", want)
		}
	}

	get := func(row []string, name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	var events []Event
	rowNo := 1 // header was row 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNo++
		if err != nil {
			return nil, engerr.Wrap(engerr.SyntaxError, err, "score csv: row %d", rowNo)
		}
		op, err := parseOpcode(strings.TrimSpace(get(row, "opcode")))
		if err != nil {
			return nil, engerr.Wrap(engerr.SyntaxError, err, "score csv: row %d", rowNo)
		}

		grace := strings.TrimSpace(get(row, "grace")) == "g"
		onset := strings.TrimSpace(get(row, "onset")) == "o"
		tieStr := strings.TrimSpace(get(row, "tie"))
		var tie rune
		if len(tieStr) > 0 {
			tie = rune(tieStr[0])
		}

		ev := Event{
			Index:    len(events),
			Opcode:   op,
			Bar:      atoiOr0(get(row, "bar")),
			Voice:    atoiOr0(get(row, "voice")),
			Tick:     atoiOr0(get(row, "tick")),
			Secs:     atofOr0(get(row, "sec")),
			DurSecs:  atofOr0(get(row, "dur")),
			Pitch:    byteOr0(get(row, "d0")),
			Vel:      byteOr0(get(row, "d1")),
			SciPitch: strings.TrimSpace(get(row, "sci_pitch")),
			DynMark:  strings.TrimSpace(get(row, "dmark")),
			DynLevel: atoiOr0(get(row, "dlevel")),
			Status:   byteOr0(get(row, "status")),
			D0:       byteOr0(get(row, "d0")),
			D1:       byteOr0(get(row, "d1")),
			Grace:    grace,
			Tie:      tie,
			Onset:    onset,
			BPM:      atoiOr0(get(row, "bpm")),
			CSVRow:   rowNo,
		}
		ev.Vars = append(ev.Vars, varCell(VarDyn, get(row, "dyn"))...)
		ev.Vars = append(ev.Vars, varCell(VarEven, get(row, "even"))...)
		ev.Vars = append(ev.Vars, varCell(VarTempo, get(row, "tempo"))...)

		ev.SectionName = strings.TrimSpace(get(row, "section"))

		if op == OpNoteOn {
			ev.Hash = eventHash(op, ev.Bar, ev.Pitch, barPitchIndex(events, ev.Bar, ev.Pitch))
		}

		events = append(events, ev)
	}
	return events, nil
}

// eventHash forms the 32-bit note-on identifier (op, bar, midi-pitch,
// bar-pitch-index) per the GLOSSARY's "hash" definition.
func eventHash(op Opcode, bar int, pitch uint8, barPitchIdx int) uint32 {
	h := uint32(op)
	h = h*131 + uint32(bar)
	h = h*131 + uint32(pitch)
	h = h*131 + uint32(barPitchIdx)
	return h
}

func barPitchIndex(prior []Event, bar int, pitch uint8) int {
	n := 0
	for _, e := range prior {
		if e.Opcode == OpNoteOn && e.Bar == bar && e.Pitch == pitch {
			n++
		}
	}
	return n
}
