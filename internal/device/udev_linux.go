//go:build linux

package device

import (
	"strings"

	"github.com/jochenvg/go-udev"

	"github.com/larkecw/sfengine/internal/engerr"
)

// EnumerateALSA scans udev's "sound" subsystem for rawmidi device nodes
// and adds them to r as local MidiInfo entries (the Linux source for
// spec.md §6's "Audio/MIDI device registry", grounded on the teacher's
// own udev-based hardware enumeration).
func EnumerateALSA(r *Registry) error {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: udev match subsystem failed")
	}
	devices, err := enum.Devices()
	if err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: udev enumerate failed")
	}

	var midi []MidiInfo
	for _, d := range devices {
		node := d.Devnode()
		if node == "" || !strings.Contains(node, "midi") {
			continue
		}
		name := d.PropertyValue("ID_MODEL")
		if name == "" {
			name = d.Sysname()
		}
		midi = append(midi, MidiInfo{Name: name, Devnode: node})
	}
	r.addMidi(midi...)
	return nil
}
