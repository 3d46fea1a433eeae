// Command sfengine is a small demonstration binary: it builds a fixed
// network by hand (standing in for the external config-object reader
// named out of scope in spec.md §1) and runs it for a fixed number of
// cycles, logging what the network produces.
//
// The network wires together three independent chains: an audio path
// (audio_in -> audio_gain -> audio_out) over loopback devices, a glue
// path (timer -> print) exercising variable notification, and a MIDI
// path (midi_in -> midi_out) over loopback MIDI devices. None of this
// reaches real hardware; swap in device.PortAudioDevice/EnumerateALSA
// for that.
package main

import (
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/larkecw/sfengine/internal/device"
	"github.com/larkecw/sfengine/internal/proc"
	"github.com/larkecw/sfengine/internal/procs"
)

func main() {
	var (
		cycles       = pflag.IntP("cycles", "n", 8, "Number of network cycles to run.")
		timerPeriod  = pflag.IntP("timer-period", "t", 4, "Cycles between timer pulses in the glue chain.")
		gain         = pflag.Float64P("gain", "g", 0.5, "Gain applied to both channels in the audio chain.")
		verbose      = pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
		help         = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - runs a small hand-built network for a fixed number of cycles.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nUsage: sfengine [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := charmlog.Default()
	if *verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}

	n, err := buildNetwork(logger, *timerPeriod, float32(*gain))
	if err != nil {
		logger.Error("build network failed", "err", err)
		os.Exit(1)
	}

	if err := n.Build(); err != nil {
		logger.Error("network build failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := n.Teardown(); err != nil {
			logger.Error("network teardown failed", "err", err)
		}
	}()

	for i := 0; i < *cycles; i++ {
		if err := n.ExecCycle(); err != nil {
			if err == io.EOF {
				logger.Info("network halted", "cycle", i)
				return
			}
			logger.Error("exec cycle failed", "cycle", i, "err", err)
			os.Exit(1)
		}
	}
	logger.Info("ran network", "cycles", *cycles)
}

// buildNetwork assembles the three demo chains described in the package
// doc comment, wiring every proc through n.AddWire before n.Build runs
// their Create callbacks.
func buildNetwork(logger *charmlog.Logger, timerPeriod int, gain float32) (*proc.Network, error) {
	n := proc.NewNetwork("demo")
	n.Logger = logger

	audioIn := proc.NewProc("audio_in", 0, &procs.AudioIn{Dev: device.NewLoopbackDevice("demo-audio-in", 2)})
	audioGain := proc.NewProc("audio_gain", 0, &procs.AudioGain{Gain: []float32{gain, gain}})
	audioOut := proc.NewProc("audio_out", 0, &procs.AudioOut{Dev: device.NewLoopbackDevice("demo-audio-out", 2)})

	timer := proc.NewProc("timer", 0, &procs.Timer{PeriodCycles: timerPeriod})
	printer := proc.NewProc("print", 0, &procs.Print{Logger: logger})

	midiDev := device.NewLoopbackMidiDevice("demo-midi-in")
	midiDev.Inject(0x90, 0, 60, 100)
	midiDev.Inject(0x80, 0, 60, 0)
	midiIn := proc.NewProc("midi_in", 0, &procs.MidiIn{Dev: midiDev, MaxMsgN: 16})
	midiOut := proc.NewProc("midi_out", 0, &procs.MidiOut{Dev: device.NewLoopbackMidiDevice("demo-midi-out")})

	for _, p := range []*proc.Proc{audioIn, audioGain, audioOut, timer, printer, midiIn, midiOut} {
		n.AddProc(p)
	}

	n.AddWire(proc.Wire{Src: audioIn, SrcLabel: "out", Dst: audioGain, DstLabel: "in"})
	n.AddWire(proc.Wire{Src: audioGain, SrcLabel: "out", Dst: audioOut, DstLabel: "in"})
	n.AddWire(proc.Wire{Src: timer, SrcLabel: "out", Dst: printer, DstLabel: "in"})
	n.AddWire(proc.Wire{Src: midiIn, SrcLabel: "mbuf_out", Dst: midiOut, DstLabel: "mbuf_in"})

	return n, nil
}
