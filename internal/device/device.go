// Package device implements the audio/MIDI device registry of spec.md
// §6: enumeration of local sound-card and MIDI hardware plus
// network-advertised MIDI endpoints, and the concrete procs.AudioDevice/
// procs.MidiDevice adapters bound to real hardware or, for non-cgo builds
// and tests, an in-memory loopback.
package device

import "sync"

// AudioInfo describes one enumerated audio device (cwFileSys-adjacent:
// the teacher's own audio.go enumerates ALSA PCM devices by name the
// same shallow way, before opening one).
type AudioInfo struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// MidiInfo describes one enumerated MIDI endpoint, local (ALSA rawmidi
// node under /dev/snd) or network-advertised (RTP-MIDI/AppleMIDI over
// Bonjour).
type MidiInfo struct {
	Name    string
	Devnode string // local rawmidi device node; empty when Network
	Network bool
}

// Registry collects audio and MIDI devices discovered from every
// enumeration source (udev on Linux, dnssd for network MIDI) into one
// queryable snapshot.
type Registry struct {
	mu    sync.RWMutex
	audio []AudioInfo
	midi  []MidiInfo
}

// NewRegistry returns an empty registry; callers populate it by calling
// the enumeration functions in this package (EnumerateALSA,
// EnumerateNetworkMIDI, EnumeratePortAudio where built with cgo).
func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) addAudio(infos ...AudioInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = append(r.audio, infos...)
}

func (r *Registry) addMidi(infos ...MidiInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.midi = append(r.midi, infos...)
}

// Audio returns a snapshot of every audio device discovered so far.
func (r *Registry) Audio() []AudioInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AudioInfo(nil), r.audio...)
}

// Midi returns a snapshot of every MIDI endpoint discovered so far.
func (r *Registry) Midi() []MidiInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]MidiInfo(nil), r.midi...)
}
