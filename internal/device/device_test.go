package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAccumulatesAcrossSources(t *testing.T) {
	r := NewRegistry()
	r.addAudio(AudioInfo{Name: "built-in", MaxInputChannels: 2, MaxOutputChannels: 2})
	r.addMidi(MidiInfo{Name: "usb-midi", Devnode: "/dev/snd/midiC1D0"})
	r.addMidi(MidiInfo{Name: "session-1", Network: true})

	assert.Len(t, r.Audio(), 1)
	assert.Len(t, r.Midi(), 2)
}

func TestRegistrySnapshotsAreIndependentCopies(t *testing.T) {
	r := NewRegistry()
	r.addAudio(AudioInfo{Name: "a"})
	snap := r.Audio()
	r.addAudio(AudioInfo{Name: "b"})
	assert.Len(t, snap, 1, "a prior snapshot must not see devices added afterward")
	assert.Len(t, r.Audio(), 2)
}

func TestLoopbackDeviceEchoesLastWrite(t *testing.T) {
	d := NewLoopbackDevice("loop0", 2)
	in := [][]float32{make([]float32, 4), make([]float32, 4)}
	n, err := d.ReadInto(in)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{0, 0, 0, 0}, in[0])

	out := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	require.NoError(t, d.WriteFrom(out, 4))

	back := [][]float32{make([]float32, 4), make([]float32, 4)}
	n, err = d.ReadInto(back)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{1, 2, 3, 4}, back[0])
	assert.Equal(t, []float32{5, 6, 7, 8}, back[1])
}

func TestLoopbackMidiDeviceQueuesAndSends(t *testing.T) {
	d := NewLoopbackMidiDevice("loopmidi0")
	d.Inject(0x90, 0, 60, 100)
	d.Inject(0x80, 0, 60, 0)

	msgs, err := d.Poll()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, byte(0x90), msgs[0].Status)

	more, err := d.Poll()
	require.NoError(t, err)
	assert.Empty(t, more, "a second Poll with nothing injected should return no messages")

	require.NoError(t, d.Send(0x90, 1, 64, 80))
	require.Len(t, d.Sent, 1)
	assert.Equal(t, byte(64), d.Sent[0].D0)
}
