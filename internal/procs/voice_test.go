package procs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

func TestRemapTestPitchOnlyAffectsConfiguredRange(t *testing.T) {
	pv := &PianoVoice{TestModeLoPitch: 60, TestModeHiPitch: 64, TestModeSamplePitch: 72}
	assert.EqualValues(t, 72, pv.remapTestPitch(60))
	assert.EqualValues(t, 72, pv.remapTestPitch(64))
	assert.EqualValues(t, 59, pv.remapTestPitch(59), "outside the range, pitch passes through unchanged")
}

func TestRemapTestVelocitySnapsToOrderedThresholds(t *testing.T) {
	pv := &PianoVoice{TestModeVelocities: []byte{20, 60, 100}}
	assert.EqualValues(t, 20, pv.remapTestVelocity(10), "below every threshold snaps to the lowest")
	assert.EqualValues(t, 20, pv.remapTestVelocity(20))
	assert.EqualValues(t, 60, pv.remapTestVelocity(80))
	assert.EqualValues(t, 100, pv.remapTestVelocity(127))
}

func TestRemapTestVelocityPassesThroughWhenUnconfigured(t *testing.T) {
	pv := &PianoVoice{}
	assert.EqualValues(t, 55, pv.remapTestVelocity(55))
}

// mbufFeeder is a minimal upstream proc that publishes a fixed set of
// mbuf messages on its first cycle and an empty mbuf afterward.
type mbufFeeder struct {
	msgs []value.MidiMsg
	sent bool
}

type mbufFeederState struct {
	outVar *proc.Variable
}

func (f *mbufFeeder) Create(p *proc.Proc) error {
	v, err := p.Register("out", 0, 0, proc.Descriptor{}, false)
	if err != nil {
		return err
	}
	p.State = &mbufFeederState{outVar: v}
	return nil
}
func (f *mbufFeeder) Destroy(p *proc.Proc) error                  { return nil }
func (f *mbufFeeder) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (f *mbufFeeder) Report(p *proc.Proc) error                   { return nil }

func (f *mbufFeeder) Exec(p *proc.Proc) error {
	st := p.State.(*mbufFeederState)
	mb := value.NewMBuf(8)
	if !f.sent {
		for _, m := range f.msgs {
			mb.Append(m)
		}
		f.sent = true
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.MBufValue(mb))
}

func TestPianoVoiceExecRemapsTestModeNoteOnPitchAndVelocity(t *testing.T) {
	pv := &PianoVoice{
		MidiVoice:           &MidiVoice{FrameN: 16, SRate: 48000, DecayPerSample: 0.01},
		TestModeLoPitch:     60,
		TestModeHiPitch:     64,
		TestModeSamplePitch: 72,
		TestModeVelocities:  []byte{20, 60, 100},
	}

	n := proc.NewNetwork("test")
	feeder := proc.NewProc("feeder", 0, &mbufFeeder{msgs: []value.MidiMsg{{Status: 0x90, D0: 62, D1: 110}}})
	piano := proc.NewProc("piano", 0, pv)
	n.AddProc(feeder)
	n.AddProc(piano)
	n.AddWire(proc.Wire{Src: feeder, SrcLabel: "out", Dst: piano, DstLabel: "in"})

	require.NoError(t, n.Build())
	require.NoError(t, n.ExecCycle())

	st := piano.State.(*pianoVoiceState)
	assert.True(t, st.midiVoiceState.active)
	assert.InDelta(t, midiToFreq(72), st.midiVoiceState.freq, 1e-6, "note-on pitch 62 should have been remapped to the test-mode sample pitch 72")
	assert.InDelta(t, 100.0/127, st.midiVoiceState.amp, 1e-6, "velocity 110 should have snapped down to the ordered threshold 100")
}

func TestPianoVoiceExecLeavesPitchAloneOutsideTestRange(t *testing.T) {
	pv := &PianoVoice{
		MidiVoice:           &MidiVoice{FrameN: 16, SRate: 48000, DecayPerSample: 0.01},
		TestModeLoPitch:     60,
		TestModeHiPitch:     64,
		TestModeSamplePitch: 72,
	}

	n := proc.NewNetwork("test")
	feeder := proc.NewProc("feeder", 0, &mbufFeeder{msgs: []value.MidiMsg{{Status: 0x90, D0: 40, D1: 90}}})
	piano := proc.NewProc("piano", 0, pv)
	n.AddProc(feeder)
	n.AddProc(piano)
	n.AddWire(proc.Wire{Src: feeder, SrcLabel: "out", Dst: piano, DstLabel: "in"})

	require.NoError(t, n.Build())
	require.NoError(t, n.ExecCycle())

	st := piano.State.(*pianoVoiceState)
	assert.InDelta(t, midiToFreq(40), st.midiVoiceState.freq, 1e-6, "pitch 40 is outside the test-mode range and must pass through unchanged")
}
