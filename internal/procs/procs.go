// Package procs implements the processor library of spec.md §4.6: the
// concrete proc.ClassMembers behind every named processor, from audio
// I/O through MIDI routing, voice allocation, and flow-control glue.
//
// Every processor here follows the same shape as the teacher's per-frame
// handlers in its transport layer: a small State struct stashed on
// proc.Proc.State, variables declared in Create, and Exec doing the one
// thing the processor contract promises and nothing else.
package procs

import (
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/value"
)

// AudioDevice is the external collaborator a bound audio_in/audio_out
// reads/writes each cycle (spec.md §4.6; backed by internal/device's
// portaudio adapter, out of scope for this package).
type AudioDevice interface {
	Label() string
	ChannelCount() int
	// ReadInto copies up to len(buf[c]) frames into each channel and
	// returns the frame count actually available this cycle.
	ReadInto(buf [][]float32) (frameN int, err error)
	WriteFrom(buf [][]float32, frameN int) error
}

// AudioFile is the external file collaborator for audio_file_in/out.
type AudioFile interface {
	ChannelCount() int
	SampleRate() float64
	Seek(sampleOffset int64) error
	Read(buf [][]float32, frameN int) (n int, err error)
	Write(buf [][]float32, frameN int) error
}

// RawMidiMsg is one channel-voice message as delivered by a MidiDevice,
// before it is wrapped in value.MidiMsg/UID bookkeeping.
type RawMidiMsg struct {
	Status, Ch, D0, D1 byte
}

// MidiDevice is the external collaborator for midi_in/midi_out.
type MidiDevice interface {
	Label() string
	// Poll returns messages that arrived since the previous cycle.
	Poll() ([]RawMidiMsg, error)
	Send(status, ch, d0, d1 byte) error
}

// MidiFileSource is the external MIDI-file collaborator for midi_file.
type MidiFileSource interface {
	SampleRate() float64
	// MessagesThrough returns every message whose sample-index is <=
	// uptoSample and > the previous call's watermark.
	MessagesThrough(uptoSample int) []FileMidiMsg
	Reset()
}

// FileMidiMsg is one message parsed from an external MIDI file.
type FileMidiMsg struct {
	SampleIdx int
	Status    byte
	Ch        byte
	D0        byte
	D1        byte
}

func must(p *proc.Proc, label string, sfxID, vid int, desc proc.Descriptor, isInput bool) *proc.Variable {
	v, err := p.Register(label, sfxID, vid, desc, isInput)
	if err != nil {
		panic(err) // Create runs during single-threaded build; a registration
		// conflict here is a topology bug, not a runtime condition.
	}
	return v
}

func numDesc(flags ...value.Flag) proc.Descriptor { return proc.Descriptor{Flags: flags} }
