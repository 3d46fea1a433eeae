package procs

import (
	"math"

	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

const earlyStopVelocity = 64

// voiceState is poly_voice_ctl's per-voice bookkeeping (spec.md §4.7).
type voiceState struct {
	active      bool
	noff        bool
	earlyStop   bool
	pitch       byte
	vel         byte
	age         int
	gateFl      bool
}

// PolyVoiceCtl is the central voice allocator described in spec.md §4.7:
// note-on/note-off handling with voice-stealing, an active-voice prune
// threshold, and per-voice age/gate tracking.
type PolyVoiceCtl struct {
	VoiceN       int
	PruneThresh  int // T
	MaxOutMsgN   int
}

type polyVoiceCtlState struct {
	inVar, gateFlVar, outVars []*proc.Variable
	voices                    []voiceState
	pitchCount                map[byte]int
	pitchVoice                map[byte]int
	doneVars                  []*proc.Variable
	outBufs                   []*value.MBuf
	uidSeq                    uint64
	sustainOn, sostenutoOn    bool
}

func (c *PolyVoiceCtl) Create(p *proc.Proc) error {
	st := &polyVoiceCtlState{
		voices:     make([]voiceState, c.VoiceN),
		pitchCount: map[byte]int{},
		pitchVoice: map[byte]int{},
	}
	st.inVar = append(st.inVar, must(p, "in", 0, 0, proc.Descriptor{}, true))
	for i := 0; i < c.VoiceN; i++ {
		st.gateFlVar = append(st.gateFlVar, must(p, "gate_fl", i, 0, numDesc(value.FlagBool), false))
		st.outVars = append(st.outVars, must(p, "out", i, 0, proc.Descriptor{}, false))
		st.doneVars = append(st.doneVars, must(p, "done_fl", i, 0, numDesc(value.FlagBool), true))
		st.outBufs = append(st.outBufs, value.NewMBuf(c.MaxOutMsgN))
	}
	p.State = st
	return nil
}
func (c *PolyVoiceCtl) Destroy(p *proc.Proc) error { return nil }

func (c *PolyVoiceCtl) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (c *PolyVoiceCtl) Report(p *proc.Proc) error                   { return nil }

// isNoteOn / isNoteOff classify a channel-voice status byte (ignoring
// channel nibble).
func isNoteOn(status, d1 byte) bool  { return status&0xF0 == 0x90 && d1 > 0 }
func isNoteOff(status, d1 byte) bool { return status&0xF0 == 0x80 || (status&0xF0 == 0x90 && d1 == 0) }

func (c *PolyVoiceCtl) onNoteOn(st *polyVoiceCtlState, pitch, vel byte) {
	st.pitchCount[pitch]++
	if vi, ok := st.pitchVoice[pitch]; ok {
		c.earlyStop(st, vi)
	}

	vi := -1
	for i, v := range st.voices {
		if !v.active {
			vi = i
			break
		}
	}
	if vi < 0 {
		oldest, oldestAge := -1, -1
		for i, v := range st.voices {
			if v.active && v.age > oldestAge {
				oldest, oldestAge = i, v.age
			}
		}
		vi = oldest
		c.earlyStop(st, vi)
	}
	if vi < 0 {
		return
	}

	activeN := 0
	for _, v := range st.voices {
		if v.active {
			activeN++
		}
	}
	if activeN > c.PruneThresh {
		oldest, oldestAge := -1, -1
		for i, v := range st.voices {
			if v.active && !v.earlyStop && v.age > oldestAge {
				oldest, oldestAge = i, v.age
			}
		}
		if oldest >= 0 {
			c.earlyStop(st, oldest)
		}
	}

	st.voices[vi] = voiceState{active: true, pitch: pitch, vel: vel, gateFl: true}
	st.pitchVoice[pitch] = vi
	c.forward(st, vi, 0x90, pitch, vel)
}

func (c *PolyVoiceCtl) onNoteOff(st *polyVoiceCtlState, pitch byte) {
	if st.pitchCount[pitch] == 0 {
		return // spec.md §4.7: note-off with a zero counter is ignored (not logged)
	}
	st.pitchCount[pitch]--
	if st.pitchCount[pitch] != 0 {
		return
	}
	vi, ok := st.pitchVoice[pitch]
	if !ok {
		return
	}
	v := &st.voices[vi]
	if v.active && !v.noff && !v.earlyStop && v.pitch == pitch {
		v.noff = true
		c.forward(st, vi, 0x80, pitch, 0)
	}
}

func (c *PolyVoiceCtl) earlyStop(st *polyVoiceCtlState, vi int) {
	v := &st.voices[vi]
	if !v.active || v.earlyStop {
		return
	}
	v.earlyStop = true
	c.forward(st, vi, 0x80, v.pitch, earlyStopVelocity)
}

func (c *PolyVoiceCtl) forward(st *polyVoiceCtlState, vi int, status, d0, d1 byte) {
	st.outBufs[vi].Append(value.MidiMsg{Status: status, D0: d0, D1: d1, UID: st.uidSeq})
	st.uidSeq++
}

func (c *PolyVoiceCtl) broadcast(st *polyVoiceCtlState, status, d0, d1 byte) {
	for vi := range st.voices {
		c.forward(st, vi, status, d0, d1)
	}
}

func (c *PolyVoiceCtl) Exec(p *proc.Proc) error {
	st := p.State.(*polyVoiceCtlState)
	for _, buf := range st.outBufs {
		buf.Reset()
	}

	in, err := p.VarGet(st.inVar[0], proc.AnyChannel)
	if err == nil && in.MBuf != nil {
		for _, msg := range in.MBuf.Live() {
			switch {
			case msg.Status&0xF0 == 0xB0 && msg.D0 == 64:
				st.sustainOn = msg.D1 >= 64
				c.broadcast(st, msg.Status, msg.D0, msg.D1)
			case msg.Status&0xF0 == 0xB0 && msg.D0 == 66:
				st.sostenutoOn = msg.D1 >= 64
				c.broadcast(st, msg.Status, msg.D0, msg.D1)
			case isNoteOn(msg.Status, msg.D1):
				c.onNoteOn(st, msg.D0, msg.D1)
			case isNoteOff(msg.Status, msg.D1):
				c.onNoteOff(st, msg.D0)
			default:
				c.broadcast(st, msg.Status, msg.D0, msg.D1)
			}
		}
	}

	for vi := range st.voices {
		v := &st.voices[vi]
		done, err := p.VarGet(st.doneVars[vi], proc.AnyChannel)
		if err == nil {
			if d, _ := done.Scalar.Bool(); d {
				delete(st.pitchVoice, v.pitch)
				*v = voiceState{}
			}
		}
		if v.active {
			v.age++
		}
		if err := p.VarSet(st.gateFlVar[vi], proc.AnyChannel, proc.ScalarValue(value.Bool(v.gateFl))); err != nil {
			return err
		}
		if err := p.VarSet(st.outVars[vi], proc.AnyChannel, proc.MBufValue(st.outBufs[vi])); err != nil {
			return err
		}
	}
	return nil
}

// MidiVoice is a per-voice synthesizer driven by note-on/note-off mbuf
// messages; this implementation generates a fixed-decay-envelope sine
// per active note (spec.md §4.6 "midi_voice").
type MidiVoice struct {
	FrameN int
	SRate  float64
	DecayPerSample float64
}

type midiVoiceState struct {
	inVar, outVar, doneVar *proc.Variable
	out                    *value.ABuf
	phase, freq, amp       float64
	active                 bool
}

func (m *MidiVoice) Create(p *proc.Proc) error {
	st := &midiVoiceState{out: value.NewABuf(1, m.FrameN, m.SRate)}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	st.doneVar = must(p, "done_fl", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}
func (m *MidiVoice) Destroy(p *proc.Proc) error                  { return nil }
func (m *MidiVoice) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (m *MidiVoice) Report(p *proc.Proc) error                   { return nil }

func midiToFreq(pitch byte) float64 {
	return 440 * math.Pow(2, (float64(pitch)-69)/12)
}

func (m *MidiVoice) Exec(p *proc.Proc) error {
	st := p.State.(*midiVoiceState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err == nil && in.MBuf != nil {
		for _, msg := range in.MBuf.Live() {
			if isNoteOn(msg.Status, msg.D1) {
				st.active = true
				st.freq = midiToFreq(msg.D0)
				st.amp = float64(msg.D1) / 127
			} else if isNoteOff(msg.Status, msg.D1) {
				st.active = false
			}
		}
	}
	dst := st.out.Chans[0]
	w := 2 * math.Pi * st.freq / m.SRate
	for i := range dst {
		if st.active {
			dst[i] = float32(math.Sin(st.phase) * st.amp)
			st.phase += w
		} else {
			st.amp *= 1 - m.DecayPerSample
			dst[i] = float32(math.Sin(st.phase) * st.amp)
			st.phase += w
		}
	}
	if err := p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out)); err != nil {
		return err
	}
	done := !st.active && st.amp < 1e-4
	return p.VarSet(st.doneVar, proc.AnyChannel, proc.ScalarValue(value.Bool(done)))
}

// PianoVoice wraps a MidiVoice (a single-channel decaying sine) plus
// sustain/sostenuto pedal state; a test mode remaps a pitch range to a
// single sampled pitch with ordered velocities (spec.md §4.6
// "piano_voice"). No wave-table or sampled playback is performed; this
// processor owns only pedal/envelope/test-mode state around the sine.
type PianoVoice struct {
	*MidiVoice
	TestModeLoPitch, TestModeHiPitch byte
	TestModeSamplePitch              byte

	// TestModeVelocities is the ascending set of velocity layer
	// thresholds test-mode note-ons snap to (spec.md §4.6 "ordered
	// velocities"); empty means velocities pass through unchanged.
	TestModeVelocities []byte
}

type pianoVoiceState struct {
	midiVoiceState
	sustainVar, sostenutoVar *proc.Variable
	sustain, sostenuto       bool
}

func (pv *PianoVoice) Create(p *proc.Proc) error {
	if err := pv.MidiVoice.Create(p); err != nil {
		return err
	}
	inner := p.State.(*midiVoiceState)
	st := &pianoVoiceState{midiVoiceState: *inner}
	st.sustainVar = must(p, "sustain", 0, 0, numDesc(value.FlagBool), false)
	st.sostenutoVar = must(p, "sostenuto", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}

// testModeActive reports whether a test-mode pitch range has been
// configured at all.
func (pv *PianoVoice) testModeActive() bool {
	return pv.TestModeLoPitch != 0 || pv.TestModeHiPitch != 0
}

func (pv *PianoVoice) remapTestPitch(pitch byte) byte {
	if pitch >= pv.TestModeLoPitch && pitch <= pv.TestModeHiPitch {
		return pv.TestModeSamplePitch
	}
	return pitch
}

// remapTestVelocity snaps vel to the nearest configured velocity layer
// at or below it, so every remapped note-on plays one of an ordered set
// of sampled velocities instead of an arbitrary input velocity.
func (pv *PianoVoice) remapTestVelocity(vel byte) byte {
	if len(pv.TestModeVelocities) == 0 {
		return vel
	}
	chosen := pv.TestModeVelocities[0]
	for _, thresh := range pv.TestModeVelocities {
		if thresh <= vel {
			chosen = thresh
		}
	}
	return chosen
}

func (pv *PianoVoice) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*pianoVoiceState)
	switch v {
	case st.sustainVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			st.sustain, _ = val.Scalar.Bool()
		}
	case st.sostenutoVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			st.sostenuto, _ = val.Scalar.Bool()
		}
	}
	return nil
}

func (pv *PianoVoice) Exec(p *proc.Proc) error {
	st := p.State.(*pianoVoiceState)
	swallowNoteOffs := st.sustain || st.sostenuto
	testMode := pv.testModeActive()

	if swallowNoteOffs || testMode {
		in, err := p.VarGet(st.midiVoiceState.inVar, proc.AnyChannel)
		if err == nil && in.MBuf != nil {
			filtered := value.NewMBuf(in.MBuf.Cap())
			for _, msg := range in.MBuf.Live() {
				// while a pedal is held, a note-off is observed but decay
				// is deferred: swallow note-offs at the mbuf level before
				// the shared envelope logic runs.
				if swallowNoteOffs && isNoteOff(msg.Status, msg.D1) {
					continue
				}
				// test mode remaps a pitch range to one sampled pitch
				// with ordered velocities, ahead of the shared envelope.
				if testMode && isNoteOn(msg.Status, msg.D1) {
					msg.D0 = pv.remapTestPitch(msg.D0)
					msg.D1 = pv.remapTestVelocity(msg.D1)
				}
				filtered.Append(msg)
			}
			_ = p.VarSet(st.midiVoiceState.inVar, proc.AnyChannel, proc.MBufValue(filtered))
		}
	}
	p.State = &st.midiVoiceState
	err := pv.MidiVoice.Exec(p)
	p.State = st
	return err
}

func (pv *PianoVoice) Destroy(p *proc.Proc) error { return nil }
func (pv *PianoVoice) Report(p *proc.Proc) error  { return nil }

// VoiceDetector is a per-voice RMS-window-with-hysteresis done detector:
// it emits a done-flag after three consecutive sub-threshold windows
// following at least one above-threshold window (spec.md §4.6
// "voice_detector").
type VoiceDetector struct {
	WindowFrameN int
	Threshold    float32
}

type voiceDetectorState struct {
	inVar, doneVar     *proc.Variable
	wasAboveOnce       bool
	belowStreak        int
	sumSq              float64
	n                  int
}

func (d *VoiceDetector) Create(p *proc.Proc) error {
	st := &voiceDetectorState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.doneVar = must(p, "done_fl", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}
func (d *VoiceDetector) Destroy(p *proc.Proc) error                  { return nil }
func (d *VoiceDetector) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (d *VoiceDetector) Report(p *proc.Proc) error                   { return nil }

func (d *VoiceDetector) Exec(p *proc.Proc) error {
	st := p.State.(*voiceDetectorState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	for _, s := range in.ABuf.Chans[0] {
		st.sumSq += float64(s) * float64(s)
		st.n++
	}
	done := false
	if st.n >= d.WindowFrameN {
		rms := float32(math.Sqrt(st.sumSq / float64(st.n)))
		st.sumSq, st.n = 0, 0
		if rms >= d.Threshold {
			st.wasAboveOnce = true
			st.belowStreak = 0
		} else if st.wasAboveOnce {
			st.belowStreak++
			if st.belowStreak >= 3 {
				done = true
				st.wasAboveOnce = false
				st.belowStreak = 0
			}
		}
	}
	return p.VarSet(st.doneVar, proc.AnyChannel, proc.ScalarValue(value.Bool(done)))
}
