//go:build cgo

package device

import (
	"github.com/gordonklaus/portaudio"

	"github.com/larkecw/sfengine/internal/engerr"
)

// EnumeratePortAudio lists every device portaudio's host API layer can
// see and adds them to r (spec.md §6's "external audio device handle",
// backed here by the real collaborator per SPEC_FULL.md §4.13 — the
// non-cgo build substitutes LoopbackDevice for tests).
func EnumeratePortAudio(r *Registry) error {
	if err := portaudio.Initialize(); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: portaudio init failed")
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: portaudio enumerate failed")
	}
	var infos []AudioInfo
	for _, d := range devs {
		infos = append(infos, AudioInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	r.addAudio(infos...)
	return nil
}

// PortAudioDevice binds a single portaudio.Device as a procs.AudioDevice
// (Label/ChannelCount/ReadInto/WriteFrom), opening one full-duplex
// stream in OpenPortAudioDevice and closing it on Close — the teacher's own
// audio.go follows the same open-once-keep-handle shape for its ALSA
// PCM handles.
type PortAudioDevice struct {
	label  string
	chN    int
	stream *portaudio.Stream
	inBuf  [][]float32
	outBuf [][]float32
}

// OpenPortAudioDevice opens a full-duplex stream on dev at srate with
// chN channels and framesPerBuffer frames per callback-less Read/Write.
func OpenPortAudioDevice(dev *portaudio.DeviceInfo, srate float64, chN, framesPerBuffer int) (*PortAudioDevice, error) {
	d := &PortAudioDevice{
		label:  dev.Name,
		chN:    chN,
		inBuf:  make([][]float32, chN),
		outBuf: make([][]float32, chN),
	}
	inFlat := make([]float32, chN*framesPerBuffer)
	outFlat := make([]float32, chN*framesPerBuffer)
	for c := 0; c < chN; c++ {
		d.inBuf[c] = inFlat[c*framesPerBuffer : (c+1)*framesPerBuffer]
		d.outBuf[c] = outFlat[c*framesPerBuffer : (c+1)*framesPerBuffer]
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: chN,
			Latency:  dev.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: chN,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      srate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, inFlat, outFlat)
	if err != nil {
		return nil, engerr.Wrap(engerr.OpFailed, err, "device: open stream on %s failed", dev.Name)
	}
	if err := stream.Start(); err != nil {
		return nil, engerr.Wrap(engerr.OpFailed, err, "device: start stream on %s failed", dev.Name)
	}
	d.stream = stream
	return d, nil
}

func (d *PortAudioDevice) Label() string     { return d.label }
func (d *PortAudioDevice) ChannelCount() int { return d.chN }

func (d *PortAudioDevice) ReadInto(buf [][]float32) (int, error) {
	if err := d.stream.Read(); err != nil {
		return 0, engerr.Wrap(engerr.OpFailed, err, "device: %s read failed", d.label)
	}
	chN := min(len(buf), d.chN)
	frameN := 0
	for c := 0; c < chN; c++ {
		n := copy(buf[c], d.inBuf[c])
		if n > frameN {
			frameN = n
		}
	}
	return frameN, nil
}

func (d *PortAudioDevice) WriteFrom(buf [][]float32, frameN int) error {
	chN := min(len(buf), d.chN)
	for c := 0; c < chN; c++ {
		copy(d.outBuf[c], buf[c][:frameN])
	}
	if err := d.stream.Write(); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: %s write failed", d.label)
	}
	return nil
}

// Close stops and releases the underlying stream.
func (d *PortAudioDevice) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return engerr.Wrap(engerr.OpFailed, err, "device: %s stop failed", d.label)
	}
	return d.stream.Close()
}
