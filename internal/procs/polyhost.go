package procs

import (
	"time"

	"github.com/larkecw/sfengine/internal/poly"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// Poly hosts a polyphonic internal network: builds Count independent
// voice networks via Build and runs them serially or over a ThreadCnt
// worker pool; a preset_sfx_id notify applies the named preset to the
// indicated voice (spec.md §4.6 "poly"). The voice replication/
// scheduling mechanics live in internal/poly; this processor is the
// proc.ClassMembers adapter that exposes them as one network node.
type Poly struct {
	Count     int
	Build     poly.VoiceBuilder
	ThreadCnt int // 0 or 1 runs serially
	Futex     bool
	Timeout   time.Duration

	// PresetVarOf returns, for a given voice index, the variable a preset
	// should be written to (nil if that voice has no preset input).
	PresetVarOf func(voiceIdx int) *proc.Variable
}

type polyState struct {
	presetSfxIDVar, voiceIdxVar *proc.Variable
	vs                          *poly.VoiceSet
}

func (h *Poly) Create(p *proc.Proc) error {
	vs, err := poly.NewVoiceSet(h.Count, h.Build)
	if err != nil {
		return err
	}
	if err := vs.Build(); err != nil {
		return err
	}
	if h.ThreadCnt > 1 {
		vs.EnableParallel(h.ThreadCnt, h.Futex, h.Timeout)
	}
	st := &polyState{vs: vs}
	st.presetSfxIDVar = must(p, "preset_sfx_id", 0, 0, numDesc(value.FlagInt32), true)
	st.voiceIdxVar = must(p, "preset_voice_idx", 0, 0, numDesc(value.FlagInt32), true)
	p.State = st
	return nil
}

func (h *Poly) Destroy(p *proc.Proc) error {
	st := p.State.(*polyState)
	st.vs.DisableParallel()
	return st.vs.Teardown()
}

func (h *Poly) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*polyState)
	if v != st.presetSfxIDVar {
		return nil
	}
	if h.PresetVarOf == nil {
		return nil
	}
	sfxVal, err := p.VarGet(st.presetSfxIDVar, proc.AnyChannel)
	if err != nil {
		return nil
	}
	idxVal, err := p.VarGet(st.voiceIdxVar, proc.AnyChannel)
	if err != nil {
		return nil
	}
	sfxID, _ := sfxVal.Scalar.Int64()
	voiceIdx, _ := idxVal.Scalar.Int64()
	if voiceIdx < 0 || int(voiceIdx) >= len(st.vs.Voices) {
		return nil
	}
	pv := h.PresetVarOf(int(voiceIdx))
	if pv == nil {
		return nil
	}
	return pv.Owner.VarSet(pv, proc.AnyChannel, proc.ScalarValue(value.Int32(int32(sfxID))))
}

func (h *Poly) Report(p *proc.Proc) error { return nil }

func (h *Poly) Exec(p *proc.Proc) error {
	st := p.State.(*polyState)
	return st.vs.ExecCycle()
}
