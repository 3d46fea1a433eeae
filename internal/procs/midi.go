package procs

import (
	"sort"

	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// midiRecordType is the single-field "midi" record shape midi_in
// publishes alongside its mbuf (spec.md §4.6 "midi_in"). The four
// message bytes (status, channel, d0, d1) are packed into one uint32
// field; the sample index is not stored in the record.
var midiRecordType = &value.RecordType{
	Name:   "midi",
	Fields: []value.Field{{Name: "midi", Flag: value.FlagUInt32}},
}

func packMidi(status, ch, d0, d1 byte) uint32 {
	return uint32(status)<<24 | uint32(ch)<<16 | uint32(d0)<<8 | uint32(d1)
}

// MidiIn attaches to an external MidiDevice and publishes every message
// it polls to both an mbuf and a record array (spec.md §4.6 "midi_in");
// no device or port filtering is applied.
type MidiIn struct {
	Dev      MidiDevice
	MaxMsgN  int
}

type midiInState struct {
	mbufVar, rbufVar *proc.Variable
	mbuf             *value.MBuf
	rbuf             *value.RBuf
	uidSeq           uint64
}

func (m *MidiIn) Create(p *proc.Proc) error {
	st := &midiInState{mbuf: value.NewMBuf(m.MaxMsgN), rbuf: value.NewRBuf(midiRecordType, m.MaxMsgN)}
	st.mbufVar = must(p, "mbuf_out", 0, 0, proc.Descriptor{}, false)
	st.rbufVar = must(p, "rbuf_out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (m *MidiIn) Destroy(p *proc.Proc) error                  { return nil }
func (m *MidiIn) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (m *MidiIn) Report(p *proc.Proc) error                   { return nil }

func (m *MidiIn) Exec(p *proc.Proc) error {
	st := p.State.(*midiInState)
	raw, err := m.Dev.Poll()
	if err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "midi_in %s: poll failed", m.Dev.Label())
	}
	st.mbuf.Reset()
	st.rbuf.RecdN = 0
	for i, rm := range raw {
		if i >= m.MaxMsgN {
			break
		}
		msg := value.MidiMsg{Status: rm.Status, Ch: rm.Ch, D0: rm.D0, D1: rm.D1, UID: st.uidSeq}
		st.uidSeq++
		st.mbuf.Append(msg)
		rec := &st.rbuf.RecdA[st.rbuf.RecdN]
		_ = rec.Set("midi", value.UInt32(packMidi(rm.Status, rm.Ch, rm.D0, rm.D1)))
		st.rbuf.RecdN++
	}
	if err := p.VarSet(st.mbufVar, proc.AnyChannel, proc.MBufValue(st.mbuf)); err != nil {
		return err
	}
	return p.VarSet(st.rbufVar, proc.AnyChannel, proc.RBufValue(st.rbuf))
}

// MidiOut accepts either an mbuf or an rbuf and forwards every message to
// the bound device (spec.md §4.6 "midi_out").
type MidiOut struct {
	Dev MidiDevice
}

type midiOutState struct {
	mbufVar, rbufVar *proc.Variable
}

func (m *MidiOut) Create(p *proc.Proc) error {
	st := &midiOutState{}
	st.mbufVar = must(p, "mbuf_in", 0, 0, proc.Descriptor{}, false)
	st.rbufVar = must(p, "rbuf_in", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (m *MidiOut) Destroy(p *proc.Proc) error                  { return nil }
func (m *MidiOut) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (m *MidiOut) Report(p *proc.Proc) error                   { return nil }

func (m *MidiOut) Exec(p *proc.Proc) error {
	st := p.State.(*midiOutState)
	if val, err := p.VarGet(st.mbufVar, proc.AnyChannel); err == nil && val.MBuf != nil {
		for _, msg := range val.MBuf.Live() {
			if err := m.Dev.Send(msg.Status, msg.Ch, msg.D0, msg.D1); err != nil {
				return engerr.Wrap(engerr.OpFailed, err, "midi_out %s: send failed", m.Dev.Label())
			}
		}
	}
	if val, err := p.VarGet(st.rbufVar, proc.AnyChannel); err == nil && val.RBuf != nil {
		for _, rec := range val.RBuf.Live() {
			fv, err := rec.Get("midi")
			if err != nil {
				continue
			}
			n, _ := fv.Int64()
			packed := uint32(n)
			if err := m.Dev.Send(byte(packed>>24), byte(packed>>16), byte(packed>>8), byte(packed)); err != nil {
				return engerr.Wrap(engerr.OpFailed, err, "midi_out %s: send failed", m.Dev.Label())
			}
		}
	}
	return nil
}

// MidiFile parses messages from a source file via an external MIDI-file
// collaborator, emitting messages reached since the previous cycle and
// supporting start/stop (spec.md §4.6 "midi_file"). On stop or
// completion it synthesises an all-notes-off plus reset-all-controllers
// message per MIDI channel.
type MidiFile struct {
	File    MidiFileSource
	MaxMsgN int
	ChanN   int // channel count to emit all-notes-off/reset-cc for
}

type midiFileState struct {
	outVar, startVar *proc.Variable
	out              *value.MBuf
	running          bool
	sampleClock      int
	framesPerCycle   int
	uidSeq           uint64
}

func (m *MidiFile) Create(p *proc.Proc) error {
	st := &midiFileState{out: value.NewMBuf(m.MaxMsgN)}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	st.startVar = must(p, "start", 0, 0, numDesc(value.FlagBool), true)
	p.State = st
	return nil
}
func (m *MidiFile) Destroy(p *proc.Proc) error { return nil }

func (m *MidiFile) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*midiFileState)
	if v != st.startVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	on, _ := val.Scalar.Bool()
	if on && !st.running {
		st.running = true
		st.sampleClock = 0
		m.File.Reset()
	} else if !on && st.running {
		st.running = false
		m.emitPanic(st)
	}
	return nil
}
func (m *MidiFile) Report(p *proc.Proc) error { return nil }

func (m *MidiFile) emitPanic(st *midiFileState) {
	st.out.Reset()
	for ch := 0; ch < m.ChanN; ch++ {
		st.out.Append(value.MidiMsg{Status: 0xB0, Ch: byte(ch), D0: 123, D1: 0, UID: st.uidSeq})
		st.uidSeq++
		st.out.Append(value.MidiMsg{Status: 0xB0, Ch: byte(ch), D0: 121, D1: 0, UID: st.uidSeq})
		st.uidSeq++
	}
}

func (m *MidiFile) Exec(p *proc.Proc) error {
	st := p.State.(*midiFileState)
	if !st.running {
		return nil
	}
	st.sampleClock += st.framesPerCycle
	msgs := m.File.MessagesThrough(st.sampleClock)
	st.out.Reset()
	atEnd := msgs == nil
	for _, fm := range msgs {
		if !st.out.Append(value.MidiMsg{SampleIdx: fm.SampleIdx, Status: fm.Status, Ch: fm.Ch, D0: fm.D0, D1: fm.D1, UID: st.uidSeq}) {
			break
		}
		st.uidSeq++
	}
	if err := p.VarSet(st.outVar, proc.AnyChannel, proc.MBufValue(st.out)); err != nil {
		return err
	}
	if atEnd {
		st.running = false
		m.emitPanic(st)
		return engerr.EOF
	}
	return nil
}

// MidiMsgBuild constructs a single MIDI message from scalar components on
// trigger (spec.md §4.6 "midi_msg").
type MidiMsgBuild struct{}

type midiMsgState struct {
	statusVar, chVar, d0Var, d1Var, triggerVar, outVar *proc.Variable
	out                                                *value.MBuf
	uidSeq                                             uint64
}

func (MidiMsgBuild) Create(p *proc.Proc) error {
	st := &midiMsgState{out: value.NewMBuf(1)}
	st.statusVar = must(p, "status", 0, 0, numDesc(value.FlagUInt8), false)
	st.chVar = must(p, "ch", 0, 0, numDesc(value.FlagUInt8), false)
	st.d0Var = must(p, "d0", 0, 0, numDesc(value.FlagUInt8), false)
	st.d1Var = must(p, "d1", 0, 0, numDesc(value.FlagUInt8), false)
	st.triggerVar = must(p, "trigger", 0, 0, numDesc(value.FlagBool), true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (MidiMsgBuild) Destroy(p *proc.Proc) error                  { return nil }
func (MidiMsgBuild) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (MidiMsgBuild) Report(p *proc.Proc) error                   { return nil }

func (MidiMsgBuild) Exec(p *proc.Proc) error {
	st := p.State.(*midiMsgState)
	st.out.Reset()
	trig, err := p.VarGet(st.triggerVar, proc.AnyChannel)
	if err != nil {
		return nil
	}
	fire, _ := trig.Scalar.Bool()
	if !fire {
		return nil
	}
	get := func(v *proc.Variable) byte {
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return 0
		}
		n, _ := val.Scalar.Int64()
		return byte(n)
	}
	st.out.Append(value.MidiMsg{Status: get(st.statusVar), Ch: get(st.chVar), D0: get(st.d0Var), D1: get(st.d1Var), UID: st.uidSeq})
	st.uidSeq++
	return p.VarSet(st.outVar, proc.AnyChannel, proc.MBufValue(st.out))
}

// MidiSplit decomposes an mbuf's single most-recent message into
// per-field scalars (spec.md §4.6 "midi_split").
type MidiSplit struct{}

type midiSplitState struct {
	inVar, statusVar, chVar, d0Var, d1Var *proc.Variable
}

func (MidiSplit) Create(p *proc.Proc) error {
	st := &midiSplitState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.statusVar = must(p, "status", 0, 0, numDesc(value.FlagUInt8), false)
	st.chVar = must(p, "ch", 0, 0, numDesc(value.FlagUInt8), false)
	st.d0Var = must(p, "d0", 0, 0, numDesc(value.FlagUInt8), false)
	st.d1Var = must(p, "d1", 0, 0, numDesc(value.FlagUInt8), false)
	p.State = st
	return nil
}
func (MidiSplit) Destroy(p *proc.Proc) error                  { return nil }
func (MidiSplit) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (MidiSplit) Report(p *proc.Proc) error                   { return nil }

func (MidiSplit) Exec(p *proc.Proc) error {
	st := p.State.(*midiSplitState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.MBuf == nil {
		return nil
	}
	live := in.MBuf.Live()
	if len(live) == 0 {
		return nil
	}
	last := live[len(live)-1]
	if err := p.VarSet(st.statusVar, proc.AnyChannel, proc.ScalarValue(value.UInt8(last.Status))); err != nil {
		return err
	}
	if err := p.VarSet(st.chVar, proc.AnyChannel, proc.ScalarValue(value.UInt8(last.Ch))); err != nil {
		return err
	}
	if err := p.VarSet(st.d0Var, proc.AnyChannel, proc.ScalarValue(value.UInt8(last.D0))); err != nil {
		return err
	}
	return p.VarSet(st.d1Var, proc.AnyChannel, proc.ScalarValue(value.UInt8(last.D1)))
}

// MidiMerge time-sort-merges 2+ input mbufs (k-way merge, spec.md §4.6
// "midi_merge").
type MidiMerge struct {
	InputN  int
	MaxMsgN int
}

type midiMergeState struct {
	inVars []*proc.Variable
	outVar *proc.Variable
	out    *value.MBuf
}

func (m *MidiMerge) Create(p *proc.Proc) error {
	st := &midiMergeState{out: value.NewMBuf(m.MaxMsgN)}
	for i := 0; i < m.InputN; i++ {
		st.inVars = append(st.inVars, must(p, "in", i, 0, proc.Descriptor{}, true))
	}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (m *MidiMerge) Destroy(p *proc.Proc) error                  { return nil }
func (m *MidiMerge) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (m *MidiMerge) Report(p *proc.Proc) error                   { return nil }

func (m *MidiMerge) Exec(p *proc.Proc) error {
	st := p.State.(*midiMergeState)
	var all []value.MidiMsg
	for _, iv := range st.inVars {
		val, err := p.VarGet(iv, proc.AnyChannel)
		if err != nil || val.MBuf == nil {
			continue
		}
		all = append(all, val.MBuf.Live()...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].SampleIdx != all[j].SampleIdx {
			return all[i].SampleIdx < all[j].SampleIdx
		}
		return all[i].UID < all[j].UID
	})
	st.out.Reset()
	for _, msg := range all {
		if !st.out.Append(msg) {
			break
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.MBufValue(st.out))
}

// RecdMerge concatenates 2+ rbuf inputs of the same record type into one
// output (spec.md §4.6 "recd_merge").
type RecdMerge struct {
	InputN int
	Type   *value.RecordType
	CapN   int
}

type recdMergeState struct {
	inVars []*proc.Variable
	outVar *proc.Variable
	out    *value.RBuf
}

func (r *RecdMerge) Create(p *proc.Proc) error {
	st := &recdMergeState{out: value.NewRBuf(r.Type, r.CapN)}
	for i := 0; i < r.InputN; i++ {
		st.inVars = append(st.inVars, must(p, "in", i, 0, proc.Descriptor{}, true))
	}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (r *RecdMerge) Destroy(p *proc.Proc) error                  { return nil }
func (r *RecdMerge) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (r *RecdMerge) Report(p *proc.Proc) error                   { return nil }

func (r *RecdMerge) Exec(p *proc.Proc) error {
	st := p.State.(*recdMergeState)
	st.out.RecdN = 0
	for _, iv := range st.inVars {
		val, err := p.VarGet(iv, proc.AnyChannel)
		if err != nil || val.RBuf == nil {
			continue
		}
		for _, rec := range val.RBuf.Live() {
			if st.out.RecdN >= st.out.Cap() {
				break
			}
			st.out.RecdA[st.out.RecdN] = rec
			st.out.RecdN++
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.RBufValue(st.out))
}

// RecdRoute routes rbuf records to one of len(Outs) output rbufs based
// on the value of a named selector field (spec.md §4.6 "recd_route").
type RecdRoute struct {
	SelectorField string
	Type          *value.RecordType
	CapN          int
	RouteN        int // number of output ports
}

type recdRouteState struct {
	inVar   *proc.Variable
	outVars []*proc.Variable
	outs    []*value.RBuf
}

func (r *RecdRoute) Create(p *proc.Proc) error {
	st := &recdRouteState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	for i := 0; i < r.RouteN; i++ {
		st.outVars = append(st.outVars, must(p, "out", i, 0, proc.Descriptor{}, false))
		st.outs = append(st.outs, value.NewRBuf(r.Type, r.CapN))
	}
	p.State = st
	return nil
}
func (r *RecdRoute) Destroy(p *proc.Proc) error                  { return nil }
func (r *RecdRoute) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (r *RecdRoute) Report(p *proc.Proc) error                   { return nil }

func (r *RecdRoute) Exec(p *proc.Proc) error {
	st := p.State.(*recdRouteState)
	for _, o := range st.outs {
		o.RecdN = 0
	}
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.RBuf == nil {
		return nil
	}
	for _, rec := range in.RBuf.Live() {
		fv, err := rec.Get(r.SelectorField)
		if err != nil {
			continue
		}
		sel, err := fv.Int64()
		if err != nil || sel < 0 || int(sel) >= r.RouteN {
			continue
		}
		dst := st.outs[sel]
		if dst.RecdN >= dst.Cap() {
			continue
		}
		dst.RecdA[dst.RecdN] = rec
		dst.RecdN++
	}
	for i, v := range st.outVars {
		if err := p.VarSet(v, proc.AnyChannel, proc.RBufValue(st.outs[i])); err != nil {
			return err
		}
	}
	return nil
}
