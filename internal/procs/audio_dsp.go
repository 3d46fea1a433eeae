package procs

import (
	"math"

	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// AudioGain applies a per-channel gain vector to its input (spec.md
// §4.6 "audio_gain"). Output is zeroed first; channel-count mismatch
// truncates to the minimum of source and destination.
type AudioGain struct {
	Gain []float32
}

type audioGainState struct {
	inVar, outVar *proc.Variable
	out           *value.ABuf
}

func (a *AudioGain) Create(p *proc.Proc) error {
	st := &audioGainState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioGain) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioGain) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioGain) Report(p *proc.Proc) error                   { return nil }

func (a *AudioGain) Exec(p *proc.Proc) error {
	st := p.State.(*audioGainState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	chN := min(in.ABuf.ChN, len(a.Gain))
	if st.out == nil || st.out.ChN != in.ABuf.ChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(in.ABuf.ChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	st.out.Zero()
	for c := 0; c < chN; c++ {
		g := a.Gain[c]
		src, dst := in.ABuf.Chans[c], st.out.Chans[c]
		for i := range src {
			dst[i] = src[i] * g
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioMix linearly combines any number of inputs into one output, each
// input scaled by its own gain and the output scaled by a vector of its
// own (spec.md §4.6 "audio_mix").
type AudioMix struct {
	InGain  []float32 // per-input scalar, applied uniformly across that input's channels
	OutGain []float32 // per-output-channel
}

type audioMixState struct {
	inVars []*proc.Variable
	outVar *proc.Variable
	out    *value.ABuf
}

// NewAudioMix builds a mixer with one input port per inGain entry; Create
// registers them as "in" with sfx-id 0..len(inGain)-1.
func NewAudioMix(inGain, outGain []float32) *AudioMix {
	return &AudioMix{InGain: inGain, OutGain: outGain}
}

func (a *AudioMix) Create(p *proc.Proc) error {
	st := &audioMixState{}
	for i := range a.InGain {
		st.inVars = append(st.inVars, must(p, "in", i, 0, proc.Descriptor{}, true))
	}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioMix) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioMix) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioMix) Report(p *proc.Proc) error                   { return nil }

func (a *AudioMix) Exec(p *proc.Proc) error {
	st := p.State.(*audioMixState)
	var chN, frameN int
	var srate float64
	ins := make([]*value.ABuf, len(st.inVars))
	for i, iv := range st.inVars {
		val, err := p.VarGet(iv, proc.AnyChannel)
		if err != nil || val.ABuf == nil {
			continue
		}
		ins[i] = val.ABuf
		if val.ABuf.ChN > chN {
			chN = val.ABuf.ChN
		}
		if val.ABuf.FrameN > frameN {
			frameN = val.ABuf.FrameN
		}
		srate = val.ABuf.SRate
	}
	if chN == 0 {
		return nil
	}
	outChN := min(chN, len(a.OutGain))
	if st.out == nil || st.out.ChN != outChN || st.out.FrameN != frameN {
		st.out = value.NewABuf(outChN, frameN, srate)
	}
	st.out.Zero()
	for i, in := range ins {
		if in == nil {
			continue
		}
		ig := float32(1)
		if i < len(a.InGain) {
			ig = a.InGain[i]
		}
		cN := min(in.ChN, outChN)
		fN := min(in.FrameN, frameN)
		for c := 0; c < cN; c++ {
			og := a.OutGain[c]
			src, dst := in.Chans[c], st.out.Chans[c]
			for f := 0; f < fN; f++ {
				dst[f] += src[f] * ig * og
			}
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioSplit demultiplexes input channels to output channels according
// to an integer selection list: Sel[i] names the source channel feeding
// output channel i (spec.md §4.6 "audio_split").
type AudioSplit struct {
	Sel []int
}

type audioSplitState struct {
	inVar, outVar *proc.Variable
	out           *value.ABuf
}

func (a *AudioSplit) Create(p *proc.Proc) error {
	st := &audioSplitState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioSplit) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioSplit) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioSplit) Report(p *proc.Proc) error                   { return nil }

func (a *AudioSplit) Exec(p *proc.Proc) error {
	st := p.State.(*audioSplitState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	if st.out == nil || st.out.ChN != len(a.Sel) || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(len(a.Sel), in.ABuf.FrameN, in.ABuf.SRate)
	}
	st.out.Zero()
	for o, src := range a.Sel {
		if src < 0 || src >= in.ABuf.ChN {
			continue
		}
		copy(st.out.Chans[o], in.ABuf.Chans[src])
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioDuplicate repeats each input channel Count times, concatenated in
// source-channel order (spec.md §4.6 "audio_duplicate").
type AudioDuplicate struct {
	Count int
}

type audioDuplicateState struct {
	inVar, outVar *proc.Variable
	out           *value.ABuf
}

func (a *AudioDuplicate) Create(p *proc.Proc) error {
	st := &audioDuplicateState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioDuplicate) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioDuplicate) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioDuplicate) Report(p *proc.Proc) error                   { return nil }

func (a *AudioDuplicate) Exec(p *proc.Proc) error {
	st := p.State.(*audioDuplicateState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	outChN := in.ABuf.ChN * a.Count
	if st.out == nil || st.out.ChN != outChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(outChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	for c := 0; c < in.ABuf.ChN; c++ {
		for k := 0; k < a.Count; k++ {
			copy(st.out.Chans[c*a.Count+k], in.ABuf.Chans[c])
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioMerge concatenates any number of inputs' channels into one output
// (spec.md §4.6 "audio_merge").
type AudioMerge struct {
	InputN int
}

type audioMergeState struct {
	inVars []*proc.Variable
	outVar *proc.Variable
	out    *value.ABuf
}

func (a *AudioMerge) Create(p *proc.Proc) error {
	st := &audioMergeState{}
	for i := 0; i < a.InputN; i++ {
		st.inVars = append(st.inVars, must(p, "in", i, 0, proc.Descriptor{}, true))
	}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioMerge) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioMerge) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioMerge) Report(p *proc.Proc) error                   { return nil }

func (a *AudioMerge) Exec(p *proc.Proc) error {
	st := p.State.(*audioMergeState)
	var bufs []*value.ABuf
	outChN, frameN := 0, 0
	var srate float64
	for _, iv := range st.inVars {
		val, err := p.VarGet(iv, proc.AnyChannel)
		if err != nil || val.ABuf == nil {
			bufs = append(bufs, nil)
			continue
		}
		bufs = append(bufs, val.ABuf)
		outChN += val.ABuf.ChN
		if val.ABuf.FrameN > frameN {
			frameN = val.ABuf.FrameN
		}
		srate = val.ABuf.SRate
	}
	if outChN == 0 {
		return nil
	}
	if st.out == nil || st.out.ChN != outChN || st.out.FrameN != frameN {
		st.out = value.NewABuf(outChN, frameN, srate)
	}
	st.out.Zero()
	dst := 0
	for _, b := range bufs {
		if b == nil {
			continue
		}
		for c := 0; c < b.ChN; c++ {
			copy(st.out.Chans[dst], b.Chans[c][:min(len(b.Chans[c]), frameN)])
			dst++
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioDelay is a per-channel ring delay clamped to MaxDelayFrames; the
// ring is rezeroed on any delay-length change (spec.md §4.6
// "audio_delay").
type AudioDelay struct {
	MaxDelayFrames int
}

type audioDelayState struct {
	inVar, delayVar, outVar *proc.Variable
	ring                    [][]float32
	writeIdx                []int
	delayFrames             int
	out                     *value.ABuf
}

func (a *AudioDelay) Create(p *proc.Proc) error {
	st := &audioDelayState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.delayVar = must(p, "delay_frames", 0, 0, numDesc(value.FlagInt32), true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (a *AudioDelay) Destroy(p *proc.Proc) error { return nil }

func (a *AudioDelay) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*audioDelayState)
	if v != st.delayVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	n, _ := val.Scalar.Int64()
	d := int(n)
	if d < 0 {
		d = 0
	}
	if d > a.MaxDelayFrames {
		d = a.MaxDelayFrames
	}
	st.delayFrames = d
	for c := range st.ring {
		for i := range st.ring[c] {
			st.ring[c][i] = 0
		}
		st.writeIdx[c] = 0
	}
	return nil
}
func (a *AudioDelay) Report(p *proc.Proc) error { return nil }

func (a *AudioDelay) Exec(p *proc.Proc) error {
	st := p.State.(*audioDelayState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	if st.ring == nil || len(st.ring) != in.ABuf.ChN {
		st.ring = make([][]float32, in.ABuf.ChN)
		st.writeIdx = make([]int, in.ABuf.ChN)
		for c := range st.ring {
			st.ring[c] = make([]float32, a.MaxDelayFrames+1)
		}
	}
	if st.out == nil || st.out.ChN != in.ABuf.ChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(in.ABuf.ChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	ringLen := a.MaxDelayFrames + 1
	for c := 0; c < in.ABuf.ChN; c++ {
		ring := st.ring[c]
		w := st.writeIdx[c]
		src, dst := in.ABuf.Chans[c], st.out.Chans[c]
		for i := range src {
			ring[w] = src[i]
			readIdx := (w - st.delayFrames + ringLen) % ringLen
			dst[i] = ring[readIdx]
			w = (w + 1) % ringLen
		}
		st.writeIdx[c] = w
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// SineTone is a multi-channel sinusoid with per-channel frequency,
// phase, DC, and gain; phase integrates across cycles (spec.md §4.6
// "sine_tone").
type SineTone struct {
	ChN    int
	FrameN int
	SRate  float64
}

type sineToneChan struct {
	freq, dc, gain float64
	phase          float64
}

type sineToneState struct {
	freqVar, dcVar, gainVar, outVar *proc.Variable
	chans                          []sineToneChan
	out                            *value.ABuf
}

func (s *SineTone) Create(p *proc.Proc) error {
	st := &sineToneState{chans: make([]sineToneChan, s.ChN)}
	for i := range st.chans {
		st.chans[i] = sineToneChan{freq: 440, gain: 1}
	}
	st.freqVar = must(p, "freq", 0, 0, numDesc(value.FlagDouble), false)
	st.dcVar = must(p, "dc", 0, 0, numDesc(value.FlagDouble), false)
	st.gainVar = must(p, "gain", 0, 0, numDesc(value.FlagDouble), false)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	for c := 0; c < s.ChN; c++ {
		st.freqVar.EnsureChannel(c)
		st.dcVar.EnsureChannel(c)
		st.gainVar.EnsureChannel(c)
	}
	st.out = value.NewABuf(s.ChN, s.FrameN, s.SRate)
	p.State = st
	return nil
}
func (s *SineTone) Destroy(p *proc.Proc) error { return nil }

func (s *SineTone) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*sineToneState)
	for c := range st.chans {
		switch v {
		case st.freqVar:
			if val, err := p.VarGet(v, c); err == nil {
				st.chans[c].freq, _ = val.Scalar.Float64()
			}
		case st.dcVar:
			if val, err := p.VarGet(v, c); err == nil {
				st.chans[c].dc, _ = val.Scalar.Float64()
			}
		case st.gainVar:
			if val, err := p.VarGet(v, c); err == nil {
				st.chans[c].gain, _ = val.Scalar.Float64()
			}
		}
	}
	return nil
}
func (s *SineTone) Report(p *proc.Proc) error { return nil }

func (s *SineTone) Exec(p *proc.Proc) error {
	st := p.State.(*sineToneState)
	twoPiOverSR := 2 * math.Pi / s.SRate
	for c := range st.chans {
		ch := &st.chans[c]
		dst := st.out.Chans[c]
		w := ch.freq * twoPiOverSR
		for i := 0; i < s.FrameN; i++ {
			dst[i] = float32(math.Sin(ch.phase)*ch.gain + ch.dc)
			ch.phase += w
			if ch.phase > 2*math.Pi {
				ch.phase -= 2 * math.Pi
			}
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}
