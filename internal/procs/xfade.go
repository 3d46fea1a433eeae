package procs

import (
	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// XfadeProxy is one of xfade_ctl's pc round-robin proxy voice networks:
// a nested network (spec.md §4.6 "xfade_ctl") whose OutVar carries the
// abuf this proxy contributes to the crossfaded output, plus an optional
// preset input the controller writes a queued preset to before the
// proxy becomes active.
type XfadeProxy struct {
	Network   *proc.Network
	OutVar    *proc.Variable
	PresetVar *proc.Variable // may be nil if this proxy set has no presets
}

// XfadeCtl maintains a round-robin of pc>=3 proxy voice networks; on
// trigger the previously-chosen proxy fades out while the next one fades
// in, both advancing by framesPerCycle/(durMs*srate/1000) per cycle with
// sign tracking. A preset change is queued and applied to the *next*
// voice chosen, not the current one (spec.md §4.6 "xfade_ctl").
type XfadeCtl struct {
	Proxies        []XfadeProxy
	DurMs          float64
	SRate          float64
	FramesPerCycle int
	ChN            int
}

type xfadeCtlState struct {
	triggerVar, presetSfxVar, outVar *proc.Variable
	activeIdx, fadingOutIdx          int
	gainIn, gainOut                  float64
	step                             float64
	queuedPresetSfxID                int
	havePendingPreset                bool
	out                              *value.ABuf
}

func (x *XfadeCtl) Create(p *proc.Proc) error {
	if len(x.Proxies) < 3 {
		return engerr.New(engerr.InvalidArg, "xfade_ctl: pc must be >= 3, got %d", len(x.Proxies))
	}
	st := &xfadeCtlState{activeIdx: 0, fadingOutIdx: -1, gainIn: 1}
	st.step = float64(x.FramesPerCycle) / (x.DurMs * x.SRate / 1000)
	st.triggerVar = must(p, "trigger", 0, 0, numDesc(value.FlagBool), true)
	st.presetSfxVar = must(p, "preset_sfx_id", 0, 0, numDesc(value.FlagInt32), true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	st.out = value.NewABuf(x.ChN, x.FramesPerCycle, x.SRate)
	for _, pr := range x.Proxies {
		if err := pr.Network.Build(); err != nil {
			return err
		}
	}
	p.State = st
	return nil
}

func (x *XfadeCtl) Destroy(p *proc.Proc) error {
	var firstErr error
	for _, pr := range x.Proxies {
		if err := pr.Network.Teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (x *XfadeCtl) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*xfadeCtlState)
	if v != st.presetSfxVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	n, _ := val.Scalar.Int64()
	st.queuedPresetSfxID = int(n)
	st.havePendingPreset = true
	return nil
}
func (x *XfadeCtl) Report(p *proc.Proc) error { return nil }

func (x *XfadeCtl) applyQueuedPreset(st *xfadeCtlState, proxyIdx int) error {
	if !st.havePendingPreset {
		return nil
	}
	pr := x.Proxies[proxyIdx]
	if pr.PresetVar == nil {
		return nil
	}
	if err := pr.PresetVar.Owner.VarSet(pr.PresetVar, proc.AnyChannel, proc.ScalarValue(value.Int32(int32(st.queuedPresetSfxID)))); err != nil {
		return err
	}
	st.havePendingPreset = false
	return nil
}

func (x *XfadeCtl) Exec(p *proc.Proc) error {
	st := p.State.(*xfadeCtlState)

	trig, err := p.VarGet(st.triggerVar, proc.AnyChannel)
	if err == nil {
		if fire, _ := trig.Scalar.Bool(); fire {
			nextIdx := (st.activeIdx + 1) % len(x.Proxies)
			if err := x.applyQueuedPreset(st, nextIdx); err != nil {
				return err
			}
			st.fadingOutIdx = st.activeIdx
			st.activeIdx = nextIdx
			st.gainIn = 0
			st.gainOut = 1
		}
	}

	st.out.Zero()
	if err := x.runProxy(st, st.activeIdx, st.gainIn); err != nil {
		return err
	}
	st.gainIn += st.step
	if st.gainIn > 1 {
		st.gainIn = 1
	}

	if st.fadingOutIdx >= 0 {
		if err := x.runProxy(st, st.fadingOutIdx, st.gainOut); err != nil {
			return err
		}
		st.gainOut -= st.step
		if st.gainOut <= 0 {
			st.gainOut = 0
			st.fadingOutIdx = -1
		}
	}

	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

func (x *XfadeCtl) runProxy(st *xfadeCtlState, idx int, gain float64) error {
	pr := x.Proxies[idx]
	if err := pr.Network.ExecCycle(); err != nil && err != engerr.EOF {
		return err
	}
	val, err := pr.OutVar.Get(proc.AnyChannel)
	if err != nil || val.ABuf == nil {
		return nil
	}
	g := float32(gain)
	for c := 0; c < min(x.ChN, val.ABuf.ChN); c++ {
		src, dst := val.ABuf.Chans[c], st.out.Chans[c]
		for i := 0; i < min(len(src), len(dst)); i++ {
			dst[i] += src[i] * g
		}
	}
	return nil
}
