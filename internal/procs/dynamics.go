package procs

import (
	"math"

	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// Compressor is a per-channel feed-forward compressor; notify updates
// live threshold/ratio/attack/release (spec.md §4.6 "compressor").
type Compressor struct {
	ChN               int
	SRate             float64
	Threshold         float32 // linear
	Ratio             float32
	AttackMs, RelMs   float32
}

type compDynState struct {
	env []float32
}

type compressorState struct {
	threshVar, ratioVar, attackVar, relVar, inVar, outVar *proc.Variable
	threshold, ratio, attackCoef, relCoef                 float32
	dyn                                                    compDynState
	out                                                    *value.ABuf
}

func coef(ms float32, srate float64) float32 {
	if ms <= 0 {
		return 0
	}
	return float32(math.Exp(-1.0 / (float64(ms) / 1000.0 * srate)))
}

func (c *Compressor) Create(p *proc.Proc) error {
	st := &compressorState{threshold: c.Threshold, ratio: c.Ratio}
	st.attackCoef = coef(c.AttackMs, c.SRate)
	st.relCoef = coef(c.RelMs, c.SRate)
	st.dyn.env = make([]float32, c.ChN)
	st.threshVar = must(p, "threshold", 0, 0, numDesc(value.FlagFloat), false)
	st.ratioVar = must(p, "ratio", 0, 0, numDesc(value.FlagFloat), false)
	st.attackVar = must(p, "attack_ms", 0, 0, numDesc(value.FlagFloat), false)
	st.relVar = must(p, "release_ms", 0, 0, numDesc(value.FlagFloat), false)
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (c *Compressor) Destroy(p *proc.Proc) error { return nil }

func (c *Compressor) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*compressorState)
	switch v {
	case st.threshVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			f, _ := val.Scalar.Float64()
			st.threshold = float32(f)
		}
	case st.ratioVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			f, _ := val.Scalar.Float64()
			st.ratio = float32(f)
		}
	case st.attackVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			f, _ := val.Scalar.Float64()
			st.attackCoef = coef(float32(f), c.SRate)
		}
	case st.relVar:
		if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
			f, _ := val.Scalar.Float64()
			st.relCoef = coef(float32(f), c.SRate)
		}
	}
	return nil
}
func (c *Compressor) Report(p *proc.Proc) error { return nil }

func (c *Compressor) Exec(p *proc.Proc) error {
	st := p.State.(*compressorState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	if st.out == nil || st.out.ChN != in.ABuf.ChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(in.ABuf.ChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	for ch := 0; ch < min(c.ChN, in.ABuf.ChN); ch++ {
		src, dst := in.ABuf.Chans[ch], st.out.Chans[ch]
		env := st.dyn.env[ch]
		for i, s := range src {
			a := float32(math.Abs(float64(s)))
			if a > env {
				env = st.attackCoef*env + (1-st.attackCoef)*a
			} else {
				env = st.relCoef*env + (1-st.relCoef)*a
			}
			gain := float32(1)
			if env > st.threshold && st.threshold > 0 {
				over := env / st.threshold
				target := float32(math.Pow(float64(over), float64(1/st.ratio-1)))
				gain = target
			}
			dst[i] = s * gain
		}
		st.dyn.env[ch] = env
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// Limiter hard-clips each sample to +-Ceiling (spec.md §4.6 "limiter");
// unlike Compressor it has no envelope follower.
type Limiter struct {
	ChN      int
	Ceiling  float32
}

type limiterState struct {
	ceilingVar, inVar, outVar *proc.Variable
	ceiling                   float32
	out                       *value.ABuf
}

func (l *Limiter) Create(p *proc.Proc) error {
	st := &limiterState{ceiling: l.Ceiling}
	st.ceilingVar = must(p, "ceiling", 0, 0, numDesc(value.FlagFloat), false)
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (l *Limiter) Destroy(p *proc.Proc) error { return nil }

func (l *Limiter) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*limiterState)
	if v != st.ceilingVar {
		return nil
	}
	if val, err := p.VarGet(v, proc.AnyChannel); err == nil {
		f, _ := val.Scalar.Float64()
		st.ceiling = float32(f)
	}
	return nil
}
func (l *Limiter) Report(p *proc.Proc) error { return nil }

func (l *Limiter) Exec(p *proc.Proc) error {
	st := p.State.(*limiterState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	if st.out == nil || st.out.ChN != in.ABuf.ChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(in.ABuf.ChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	for c := 0; c < in.ABuf.ChN; c++ {
		src, dst := in.ABuf.Chans[c], st.out.Chans[c]
		for i, s := range src {
			switch {
			case s > st.ceiling:
				dst[i] = st.ceiling
			case s < -st.ceiling:
				dst[i] = -st.ceiling
			default:
				dst[i] = s
			}
		}
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// DcFilter is a per-channel one-pole DC blocker (spec.md §4.6
// "dc_filter").
type DcFilter struct {
	ChN   int
	Pole  float32 // typically ~0.995
}

type dcFilterState struct {
	inVar, outVar *proc.Variable
	prevX, prevY  []float32
	out           *value.ABuf
}

func (d *DcFilter) Create(p *proc.Proc) error {
	st := &dcFilterState{prevX: make([]float32, d.ChN), prevY: make([]float32, d.ChN)}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}
func (d *DcFilter) Destroy(p *proc.Proc) error                  { return nil }
func (d *DcFilter) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (d *DcFilter) Report(p *proc.Proc) error                   { return nil }

func (d *DcFilter) Exec(p *proc.Proc) error {
	st := p.State.(*dcFilterState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	if st.out == nil || st.out.ChN != in.ABuf.ChN || st.out.FrameN != in.ABuf.FrameN {
		st.out = value.NewABuf(in.ABuf.ChN, in.ABuf.FrameN, in.ABuf.SRate)
	}
	for c := 0; c < min(d.ChN, in.ABuf.ChN); c++ {
		src, dst := in.ABuf.Chans[c], st.out.Chans[c]
		x1, y1 := st.prevX[c], st.prevY[c]
		for i, x := range src {
			y := x - x1 + d.Pole*y1
			dst[i] = y
			x1, y1 = x, y
		}
		st.prevX[c], st.prevY[c] = x1, y1
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioMeter periodically emits per-channel RMS dB and a peak/clip flag,
// reporting to the UI at a configurable period (spec.md §4.6
// "audio_meter").
type AudioMeter struct {
	ChN          int
	ReportPeriod int // cycles between report emissions
}

type audioMeterState struct {
	inVar, rmsDbVar, peakVar, clipVar *proc.Variable
	sumSq, peak                      []float64
	cycleCount                       int
}

func (m *AudioMeter) Create(p *proc.Proc) error {
	st := &audioMeterState{sumSq: make([]float64, m.ChN), peak: make([]float64, m.ChN)}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.rmsDbVar = must(p, "rms_db", 0, 0, numDesc(value.FlagDouble), false)
	st.peakVar = must(p, "peak", 0, 0, numDesc(value.FlagDouble), false)
	st.clipVar = must(p, "clip", 0, 0, numDesc(value.FlagBool), false)
	for c := 0; c < m.ChN; c++ {
		st.rmsDbVar.EnsureChannel(c)
		st.peakVar.EnsureChannel(c)
		st.clipVar.EnsureChannel(c)
	}
	p.State = st
	return nil
}
func (m *AudioMeter) Destroy(p *proc.Proc) error                  { return nil }
func (m *AudioMeter) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (m *AudioMeter) Report(p *proc.Proc) error                   { return nil }

func (m *AudioMeter) Exec(p *proc.Proc) error {
	st := p.State.(*audioMeterState)
	in, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || in.ABuf == nil {
		return nil
	}
	for c := 0; c < min(m.ChN, in.ABuf.ChN); c++ {
		for _, s := range in.ABuf.Chans[c] {
			a := float64(s)
			st.sumSq[c] += a * a
			if math.Abs(a) > st.peak[c] {
				st.peak[c] = math.Abs(a)
			}
		}
	}
	st.cycleCount++
	if st.cycleCount < m.ReportPeriod {
		return nil
	}
	for c := 0; c < m.ChN; c++ {
		n := float64(in.ABuf.FrameN) * float64(st.cycleCount)
		rms := math.Sqrt(st.sumSq[c] / math.Max(n, 1))
		db := 20 * math.Log10(math.Max(rms, 1e-12))
		if err := p.VarSet(st.rmsDbVar, c, proc.ScalarValue(value.Double(db))); err != nil {
			return err
		}
		if err := p.VarSet(st.peakVar, c, proc.ScalarValue(value.Double(st.peak[c]))); err != nil {
			return err
		}
		clip := st.peak[c] >= 1.0
		if err := p.VarSet(st.clipVar, c, proc.ScalarValue(value.Bool(clip))); err != nil {
			return err
		}
		st.sumSq[c] = 0
		st.peak[c] = 0
	}
	st.cycleCount = 0
	return nil
}
