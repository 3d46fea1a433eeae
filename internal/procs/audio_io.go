package procs

import (
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// AudioIn binds a logical device label to an AudioDevice and produces one
// abuf per cycle, clamped to the minimum of device and buffer channel/
// frame counts (spec.md §4.6 "audio_in").
type AudioIn struct {
	Dev AudioDevice
}

type audioInState struct {
	out    *value.ABuf
	outVar *proc.Variable
}

func (a *AudioIn) Create(p *proc.Proc) error {
	chN := a.Dev.ChannelCount()
	st := &audioInState{out: value.NewABuf(chN, 0, 0)}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	p.State = st
	return nil
}

func (a *AudioIn) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioIn) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioIn) Report(p *proc.Proc) error                   { return nil }

func (a *AudioIn) Exec(p *proc.Proc) error {
	st := p.State.(*audioInState)
	chN := min(a.Dev.ChannelCount(), st.out.ChN)
	frameN, err := a.Dev.ReadInto(st.out.Chans[:chN])
	if err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "audio_in %s: read failed", a.Dev.Label())
	}
	st.out.FrameN = frameN
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioOut is the dual of AudioIn: consumes one abuf per cycle and writes
// it to the bound device, clamped the same way.
type AudioOut struct {
	Dev AudioDevice
}

type audioOutState struct {
	inVar *proc.Variable
}

func (a *AudioOut) Create(p *proc.Proc) error {
	p.State = &audioOutState{inVar: must(p, "in", 0, 0, proc.Descriptor{}, true)}
	return nil
}
func (a *AudioOut) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioOut) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioOut) Report(p *proc.Proc) error                   { return nil }

func (a *AudioOut) Exec(p *proc.Proc) error {
	st := p.State.(*audioOutState)
	val, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || val.ABuf == nil {
		return nil
	}
	chN := min(a.Dev.ChannelCount(), val.ABuf.ChN)
	if err := a.Dev.WriteFrom(val.ABuf.Chans[:chN], val.ABuf.FrameN); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "audio_out %s: write failed", a.Dev.Label())
	}
	return nil
}

// AudioFileIn wraps an AudioFile: a sample-offset seek on notify, an
// on/off gate (zero-fill when off), and end-of-file on exhaustion.
type AudioFileIn struct {
	File AudioFile
}

type audioFileInState struct {
	out           *value.ABuf
	outVar        *proc.Variable
	seekVar, onVar *proc.Variable
	on            bool
}

func (a *AudioFileIn) Create(p *proc.Proc) error {
	chN := a.File.ChannelCount()
	st := &audioFileInState{out: value.NewABuf(chN, 1024, a.File.SampleRate()), on: true}
	st.outVar = must(p, "out", 0, 0, proc.Descriptor{}, false)
	st.seekVar = must(p, "seek", 0, 0, numDesc(value.FlagInt64), true)
	st.onVar = must(p, "on", 0, 0, numDesc(value.FlagBool), true)
	p.State = st
	return nil
}
func (a *AudioFileIn) Destroy(p *proc.Proc) error { return nil }

func (a *AudioFileIn) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*audioFileInState)
	switch v {
	case st.seekVar:
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return nil
		}
		off, err := val.Scalar.Int64()
		if err != nil {
			return err
		}
		if err := a.File.Seek(off); err != nil {
			return engerr.Wrap(engerr.OpFailed, err, "audio_file_in: seek failed")
		}
	case st.onVar:
		val, err := p.VarGet(v, proc.AnyChannel)
		if err != nil {
			return nil
		}
		st.on, _ = val.Scalar.Bool()
	}
	return nil
}
func (a *AudioFileIn) Report(p *proc.Proc) error { return nil }

func (a *AudioFileIn) Exec(p *proc.Proc) error {
	st := p.State.(*audioFileInState)
	frameN := len(st.out.Chans[0])
	if !st.on {
		st.out.Zero()
		st.out.FrameN = frameN
	} else {
		n, err := a.File.Read(st.out.Chans, frameN)
		if err != nil {
			return engerr.Wrap(engerr.OpFailed, err, "audio_file_in: read failed")
		}
		if n == 0 {
			return engerr.EOF
		}
		st.out.FrameN = n
	}
	return p.VarSet(st.outVar, proc.AnyChannel, proc.ABufValue(st.out))
}

// AudioFileOut is the dual of AudioFileIn.
type AudioFileOut struct {
	File AudioFile
}

type audioFileOutState struct {
	inVar, onVar *proc.Variable
}

func (a *AudioFileOut) Create(p *proc.Proc) error {
	st := &audioFileOutState{inVar: must(p, "in", 0, 0, proc.Descriptor{}, true)}
	st.onVar = must(p, "on", 0, 0, numDesc(value.FlagBool), false)
	p.State = st
	return nil
}
func (a *AudioFileOut) Destroy(p *proc.Proc) error                  { return nil }
func (a *AudioFileOut) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (a *AudioFileOut) Report(p *proc.Proc) error                   { return nil }

func (a *AudioFileOut) Exec(p *proc.Proc) error {
	st := p.State.(*audioFileOutState)
	val, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || val.ABuf == nil {
		return nil
	}
	onVal, err := p.VarGet(st.onVar, proc.AnyChannel)
	if err == nil {
		if on, _ := onVal.Scalar.Bool(); !on {
			return nil
		}
	}
	if err := a.File.Write(val.ABuf.Chans, val.ABuf.FrameN); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "audio_file_out: write failed")
	}
	return nil
}

// audioChunk is one node in audio_buf_file_out's owned chunk list.
type audioChunk struct {
	chans [][]float32
	n     int
	next  *audioChunk
}

// AudioBufFileOut is a cache-then-flush sink (spec.md §4.6): it owns a
// linked list of sample chunks and appends one chunk per Exec holding
// that cycle's frames (SecondsPerChunk is not consulted). A "write"
// notify versions the filename via strftime and flushes every chunk
// before clearing; a "reset" notify discards the cached chunks.
type AudioBufFileOut struct {
	SecondsPerChunk float64
	PathPattern     string // strftime pattern, e.g. "take-%Y%m%d-%H%M%S.wav"
	Writer          func(path string, chN int, srate float64, chunks [][][]float32, chunkLens []int) error
}

type audioBufFileOutState struct {
	inVar, writeVar, resetVar *proc.Variable
	head, tail                *audioChunk
	chanN                     int
	srate                     float64
}

func (a *AudioBufFileOut) Create(p *proc.Proc) error {
	st := &audioBufFileOutState{}
	st.inVar = must(p, "in", 0, 0, proc.Descriptor{}, true)
	st.writeVar = must(p, "write", 0, 0, numDesc(value.FlagBool), true)
	st.resetVar = must(p, "reset", 0, 0, numDesc(value.FlagBool), true)
	p.State = st
	return nil
}
func (a *AudioBufFileOut) Destroy(p *proc.Proc) error { return nil }

func (a *AudioBufFileOut) Notify(p *proc.Proc, v *proc.Variable) error {
	st := p.State.(*audioBufFileOutState)
	switch v {
	case st.writeVar:
		return a.flush(st)
	case st.resetVar:
		st.head, st.tail = nil, nil
	}
	return nil
}
func (a *AudioBufFileOut) Report(p *proc.Proc) error { return nil }

func (a *AudioBufFileOut) Exec(p *proc.Proc) error {
	st := p.State.(*audioBufFileOutState)
	val, err := p.VarGet(st.inVar, proc.AnyChannel)
	if err != nil || val.ABuf == nil {
		return nil
	}
	buf := val.ABuf
	if st.chanN == 0 {
		st.chanN = buf.ChN
		st.srate = buf.SRate
	}

	chunk := &audioChunk{chans: make([][]float32, st.chanN), n: buf.FrameN}
	for c := 0; c < st.chanN; c++ {
		chunk.chans[c] = append([]float32(nil), buf.Chans[c][:buf.FrameN]...)
	}
	if st.head == nil {
		st.head = chunk
	} else {
		st.tail.next = chunk
	}
	st.tail = chunk
	return nil
}

func (a *AudioBufFileOut) flush(st *audioBufFileOutState) error {
	if st.head == nil {
		return nil
	}
	pattern, err := strftime.New(a.PathPattern)
	if err != nil {
		return engerr.Wrap(engerr.InvalidArg, err, "audio_buf_file_out: bad path pattern")
	}
	path := pattern.FormatString(time.Now())

	var chunks [][][]float32
	var lens []int
	for c := st.head; c != nil; c = c.next {
		chunks = append(chunks, c.chans)
		lens = append(lens, c.n)
	}
	if a.Writer == nil {
		return engerr.New(engerr.InvalidState, "audio_buf_file_out: no Writer configured")
	}
	if err := a.Writer(path, st.chanN, st.srate, chunks, lens); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "audio_buf_file_out: flush to %s failed", path)
	}
	st.head, st.tail = nil, nil
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
