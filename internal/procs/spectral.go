package procs

import (
	"math"

	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// PvAnalysis wraps STFT analysis: per-channel magnitude is rescaled by
// binN/2, window length can change via notify (spec.md §4.6
// "pv_analysis").
type PvAnalysis struct {
	ChN     int
	WinLenN int // initial window length, forced to a power of two
	HopN    int
	SRate   float64
}

type pvAnalysisState struct {
	winLenVar, inVar, outVar *proc.Variable
	winN                     int
	window                   []float64
	ring                     [][]float64
	ringPos                  []int
	fbuf                     *value.FBuf
}

func (a *PvAnalysis) Create(p *proc.Proc) error {
	st := &pvAnalysisState{}
	st.winLenVar = must(p, "win_len", 0, 0, numDesc(value.FlagInt32), false)
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	a.resize(st, nextPow2(a.WinLenN))
	p.State = st
	return nil
}
func (a *PvAnalysis) Destroy(p *proc.Proc) error { return nil }

func (a *PvAnalysis) resize(st *pvAnalysisState, winN int) {
	st.winN = winN
	st.window = hannWindow(winN)
	st.ring = make([][]float64, a.ChN)
	st.ringPos = make([]int, a.ChN)
	for c := range st.ring {
		st.ring[c] = make([]float64, winN)
	}
	st.fbuf = value.NewFBuf(a.ChN, winN/2+1, a.HopN, false)
}

func (a *PvAnalysis) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*pvAnalysisState)
	if v != st.winLenVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	n, _ := val.Scalar.Int64()
	a.resize(st, nextPow2(int(n)))
	return nil
}
func (a *PvAnalysis) Report(p *proc.Proc) error { return nil }

func (a *PvAnalysis) Exec(p *proc.Proc) error {
	st := p.State.(*pvAnalysisState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	binN := st.winN/2 + 1
	for c := 0; c < min(a.ChN, in.ABuf.ChN); c++ {
		ring := st.ring[c]
		pos := st.ringPos[c]
		for _, s := range in.ABuf.Chans[c] {
			ring[pos] = float64(s)
			pos = (pos + 1) % st.winN
		}
		st.ringPos[c] = pos

		frame := make([]complex128, st.winN)
		for i := 0; i < st.winN; i++ {
			idx := (pos + i) % st.winN
			frame[i] = complex(ring[idx]*st.window[i], 0)
		}
		fftRadix2(frame, false)

		mag := st.fbuf.Mag[c]
		phs := st.fbuf.Phs[c]
		scale := float32(2.0 / float64(st.winN/2))
		for b := 0; b < binN; b++ {
			re, im := real(frame[b]), imag(frame[b])
			mag[b] = float32(math.Hypot(re, im)) * scale
			phs[b] = float32(math.Atan2(im, re))
		}
		st.fbuf.Ready[c] = true
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.FBufValue(st.fbuf))
}

// PvSynthesis is the dual of PvAnalysis. enable zeros the output and
// clears ready-flags (spec.md §4.6 "pv_synthesis").
type PvSynthesis struct {
	ChN    int
	FrameN int
	SRate  float64
}

type pvSynthesisState struct {
	inVar, enableVar, outVar *proc.Variable
	out                      *value.ABuf
}

func (s *PvSynthesis) Create(p *proc.Proc) error {
	st := &pvSynthesisState{out: value.NewABuf(s.ChN, s.FrameN, s.SRate)}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.enableVar = must(p, "enable", 0, 0, numDesc(value.FlagBool), true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (s *PvSynthesis) Destroy(p *proc.Proc) error { return nil }

func (s *PvSynthesis) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*pvSynthesisState)
	if v != st.enableVar {
		return nil
	}
	val, err := p.VarGet(v, proc.AnyChannel)
	if err != nil {
		return nil
	}
	if on, _ := val.Scalar.Bool(); !on {
		st.out.Zero()
		if in, err := p.VarGet(st.inVar, proc.AnyChannel); err == nil && in.FBuf != nil {
			in.FBuf.ClearReady()
		}
	}
	return nil
}
func (s *PvSynthesis) Report(p *proc.Proc) error { return nil }

func (s *PvSynthesis) Exec(p *proc.Proc) error {
	st := p.State.(*pvSynthesisState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.FBuf == nil {
		return nil
	}
	fb := in.FBuf
	binN := fb.BinN
	winN := (binN - 1) * 2
	spectrum := make([]complex128, winN)

	for c := 0; c < min(s.ChN, fb.ChN); c++ {
		if !fb.Ready[c] {
			continue
		}
		mag, phs := fb.Mag[c], fb.Phs[c]
		for b := 0; b < binN; b++ {
			re := float64(mag[b]) * math.Cos(float64(phs[b]))
			im := float64(mag[b]) * math.Sin(float64(phs[b]))
			spectrum[b] = complex(re, im)
			if b > 0 && b < winN-b {
				spectrum[winN-b] = complex(re, -im)
			}
		}
		fftRadix2(spectrum, true)
		dst := st.out.Chans[c]
		n := min(len(dst), winN)
		for i := 0; i < n; i++ {
			dst[i] = float32(real(spectrum[i]))
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// SpecDist is a per-band spectral distortion: threshold/ratio/ceiling/
// expo/bypass/mix, propagating ready-flags from input (spec.md §4.6
// "spec_dist").
type SpecDist struct {
	Threshold, Ratio, Ceiling, Expo float32
	Bypass                          bool
	Mix                             float32 // 0=dry, 1=wet
}

type specDistState struct {
	inVar, outVar *proc.Variable
	out           *value.FBuf
}

func (s *SpecDist) Create(p *proc.Proc) error {
	st := &specDistState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (s *SpecDist) Destroy(p *proc.Proc) error                  { return nil }
func (s *SpecDist) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (s *SpecDist) Report(p *proc.Proc) error                   { return nil }

func (s *SpecDist) Exec(p *proc.Proc) error {
	st := p.State.(*specDistState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.FBuf == nil {
		return nil
	}
	fb := in.FBuf
	if st.out == nil || st.out.ChN != fb.ChN || st.out.BinN != fb.BinN {
		st.out = value.NewFBuf(fb.ChN, fb.BinN, fb.HopN, fb.Freq != nil)
	}
	for c := 0; c < fb.ChN; c++ {
		st.out.Ready[c] = fb.Ready[c]
		if !fb.Ready[c] {
			continue
		}
		copy(st.out.Phs[c], fb.Phs[c])
		for b, m := range fb.Mag[c] {
			wet := m
			if !s.Bypass && m > s.Threshold {
				over := m - s.Threshold
				wet = s.Threshold + over/s.Ratio
				if s.Expo != 0 {
					wet = float32(math.Pow(float64(wet), float64(s.Expo)))
				}
				if wet > s.Ceiling {
					wet = s.Ceiling
				}
			}
			st.out.Mag[c][b] = m*(1-s.Mix) + wet*s.Mix
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.FBufValue(st.out))
}
