package device

import (
	"context"
	"time"

	"github.com/brutella/dnssd"

	"github.com/larkecw/sfengine/internal/engerr"
)

// appleMIDIService is the Bonjour service type RTP-MIDI/AppleMIDI
// endpoints advertise.
const appleMIDIService = "_apple-midi._udp.local."

// EnumerateNetworkMIDI browses for RTP-MIDI/AppleMIDI sessions
// advertised over Bonjour for the given window and adds each one found
// to r as a network MidiInfo entry (spec.md §6's device registry,
// supplemented per SPEC_FULL.md §4.13 with a network discovery source
// alongside direct device I/O).
func EnumerateNetworkMIDI(ctx context.Context, r *Registry, window time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	added := func(e dnssd.BrowseEntry) {
		r.addMidi(MidiInfo{Name: e.Name, Network: true})
	}
	removed := func(e dnssd.BrowseEntry) {}

	if err := dnssd.LookupType(ctx, appleMIDIService, added, removed); err != nil && ctx.Err() == nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: dnssd lookup failed")
	}
	return nil
}
