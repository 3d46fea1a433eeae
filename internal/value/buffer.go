package value

// ABuf owns a planar float block of shape chN x frameN at a sample rate
// (spec.md §3). Chans[c] is frameN samples long.
type ABuf struct {
	SRate  float64
	ChN    int
	FrameN int
	Chans  [][]float32
}

// NewABuf allocates a zeroed planar audio buffer.
func NewABuf(chN, frameN int, srate float64) *ABuf {
	chans := make([][]float32, chN)
	for i := range chans {
		chans[i] = make([]float32, frameN)
	}
	return &ABuf{SRate: srate, ChN: chN, FrameN: frameN, Chans: chans}
}

// Zero clears every channel.
func (a *ABuf) Zero() {
	for _, ch := range a.Chans {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// MidiMsg is one channel-voice MIDI message plus its frame-relative
// sample offset within the owning MBuf's cycle.
type MidiMsg struct {
	SampleIdx int
	Status    byte
	Ch        byte
	D0        byte
	D1        byte
	UID       uint64 // monotonic id for dedup/ordering across merges
}

// MBuf is a pointer to a shared slice of channel-voice MIDI messages with
// a live count (spec.md §3). Like RBuf, it is producer-owned and
// consumers must not retain it past the cycle boundary.
type MBuf struct {
	MsgA []MidiMsg // capacity
	MsgN int       // live count
}

// NewMBuf allocates an MBuf with room for maxMsgN messages.
func NewMBuf(maxMsgN int) *MBuf {
	return &MBuf{MsgA: make([]MidiMsg, maxMsgN)}
}

func (b *MBuf) Live() []MidiMsg {
	if b.MsgN > len(b.MsgA) {
		return b.MsgA
	}
	return b.MsgA[:b.MsgN]
}

func (b *MBuf) Cap() int { return len(b.MsgA) }

// Reset clears the live count so the buffer can be refilled this cycle.
func (b *MBuf) Reset() { b.MsgN = 0 }

// Append appends a message if capacity allows, returning false if full.
func (b *MBuf) Append(m MidiMsg) bool {
	if b.MsgN >= len(b.MsgA) {
		return false
	}
	b.MsgA[b.MsgN] = m
	b.MsgN++
	return true
}

// FBuf carries per-channel magnitude, phase, and optionally frequency
// arrays with per-channel bin/hop counts and a ready-flag per channel
// (spec.md §3), backing the STFT-shaped processors (pv_analysis,
// pv_synthesis, spec_dist).
type FBuf struct {
	ChN   int
	BinN  int
	HopN  int
	Mag   [][]float32 // [ch][bin]
	Phs   [][]float32 // [ch][bin]
	Freq  [][]float32 // [ch][bin], optional (may be nil)
	Ready []bool      // per-channel ready flag
}

// NewFBuf allocates a spectral buffer. If withFreq is false, Freq stays
// nil (per-channel magnitude/phase only).
func NewFBuf(chN, binN, hopN int, withFreq bool) *FBuf {
	f := &FBuf{ChN: chN, BinN: binN, HopN: hopN,
		Mag: make([][]float32, chN), Phs: make([][]float32, chN), Ready: make([]bool, chN)}
	for c := 0; c < chN; c++ {
		f.Mag[c] = make([]float32, binN)
		f.Phs[c] = make([]float32, binN)
	}
	if withFreq {
		f.Freq = make([][]float32, chN)
		for c := 0; c < chN; c++ {
			f.Freq[c] = make([]float32, binN)
		}
	}
	return f
}

// ClearReady zeroes every channel's ready flag and magnitude (used by
// pv_synthesis.enable per spec.md §4.6).
func (f *FBuf) ClearReady() {
	for c := range f.Ready {
		f.Ready[c] = false
		for i := range f.Mag[c] {
			f.Mag[c][i] = 0
		}
	}
}
