package device

// LoopbackDevice is the non-cgo procs.AudioDevice stand-in named in
// SPEC_FULL.md §4.13: writes land in an internal buffer that the next
// read returns, so a network built entirely of LoopbackDevices can run
// (and be tested) without a real sound card.
type LoopbackDevice struct {
	label  string
	chN    int
	frames [][]float32 // last buffer written, read back verbatim
	n      int
}

// NewLoopbackDevice returns a loopback device with chN channels.
func NewLoopbackDevice(label string, chN int) *LoopbackDevice {
	return &LoopbackDevice{label: label, chN: chN}
}

func (d *LoopbackDevice) Label() string     { return d.label }
func (d *LoopbackDevice) ChannelCount() int { return d.chN }

// ReadInto copies back whatever was last written via WriteFrom,
// zero-filling if nothing has been written yet.
func (d *LoopbackDevice) ReadInto(buf [][]float32) (int, error) {
	chN := min(len(buf), d.chN)
	if d.frames == nil {
		for c := 0; c < chN; c++ {
			for i := range buf[c] {
				buf[c][i] = 0
			}
		}
		return len(buf[0]), nil
	}
	frameN := min(d.n, len(buf[0]))
	for c := 0; c < chN; c++ {
		copy(buf[c], d.frames[c][:frameN])
	}
	return frameN, nil
}

// WriteFrom stores buf[0:frameN] for the next ReadInto to return.
func (d *LoopbackDevice) WriteFrom(buf [][]float32, frameN int) error {
	chN := min(len(buf), d.chN)
	if d.frames == nil {
		d.frames = make([][]float32, d.chN)
		for c := range d.frames {
			d.frames[c] = make([]float32, frameN)
		}
	}
	for c := 0; c < chN; c++ {
		if len(d.frames[c]) < frameN {
			d.frames[c] = make([]float32, frameN)
		}
		copy(d.frames[c], buf[c][:frameN])
	}
	d.n = frameN
	return nil
}
