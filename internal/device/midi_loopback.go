package device

import "github.com/larkecw/sfengine/internal/procs"

// LoopbackMidiDevice is a non-hardware procs.MidiDevice: messages
// queued via Inject are what the next Poll returns, and Send appends to
// a Sent log instead of reaching real hardware. It backs tests and the
// cmd/sfengine demo the way LoopbackDevice backs audio.
type LoopbackMidiDevice struct {
	label  string
	queued []procs.RawMidiMsg
	Sent   []procs.RawMidiMsg
}

// NewLoopbackMidiDevice returns an empty loopback MIDI device.
func NewLoopbackMidiDevice(label string) *LoopbackMidiDevice {
	return &LoopbackMidiDevice{label: label}
}

func (d *LoopbackMidiDevice) Label() string { return d.label }

// Inject queues a message to be returned by the next Poll.
func (d *LoopbackMidiDevice) Inject(status, ch, d0, d1 byte) {
	d.queued = append(d.queued, procs.RawMidiMsg{Status: status, Ch: ch, D0: d0, D1: d1})
}

func (d *LoopbackMidiDevice) Poll() ([]procs.RawMidiMsg, error) {
	out := d.queued
	d.queued = nil
	return out, nil
}

func (d *LoopbackMidiDevice) Send(status, ch, d0, d1 byte) error {
	d.Sent = append(d.Sent, procs.RawMidiMsg{Status: status, Ch: ch, D0: d0, D1: d1})
	return nil
}
