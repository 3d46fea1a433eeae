package proc

import (
	"io"

	charmlog "github.com/charmbracelet/log"

	"github.com/larkecw/sfengine/internal/engerr"
)

// Wire records a pending connection from an upstream proc's output
// variable to a downstream proc's input variable, established before
// Build runs (standing in for the external config-object reader's
// topology, out of scope per spec.md §1).
type Wire struct {
	Src      *Proc
	SrcLabel string
	SrcSfxID int
	SrcVid   int

	Dst      *Proc
	DstLabel string
	DstSfxID int
	DstVid   int
}

type wireKey struct {
	dst      *Proc
	label    string
	sfxID    int
	vid      int
}

// Network is an ordered list of procs sharing a cycle clock (spec.md
// §3). For polyphonic networks it is linked via PolyLink into a list of
// voice networks (see internal/poly).
type Network struct {
	Label string
	Procs []*Proc

	wires map[wireKey]Wire

	// PolyLink holds the sibling voice networks when this network is one
	// replica of a polyphonic subnet (spec.md §3, §4.6 "poly").
	PolyLink []*Network

	Logger *charmlog.Logger

	built bool
}

// NewNetwork constructs an empty network.
func NewNetwork(label string) *Network {
	return &Network{Label: label, wires: map[wireKey]Wire{}, Logger: charmlog.Default()}
}

// AddProc appends a proc to the network, assigning its back-reference.
func (n *Network) AddProc(p *Proc) {
	p.Network = n
	n.Procs = append(n.Procs, p)
}

// AddWire queues a connection that Register() will resolve once both
// sides have been Built.
func (n *Network) AddWire(w Wire) {
	n.wires[wireKey{w.Dst, w.DstLabel, w.DstSfxID, w.DstVid}] = w
}

func (n *Network) wireFor(dst *Proc, label string, sfxID, vid int) (Wire, bool) {
	w, ok := n.wires[wireKey{dst, label, sfxID, vid}]
	return w, ok
}

// Build runs every proc's Create callback, in the network's declared
// proc order (spec.md §4.5 topological order is the declaration order
// here — the external config/topology reader is responsible for listing
// procs in an order consistent with their data dependencies).
func (n *Network) Build() error {
	if n.built {
		return nil
	}
	for _, p := range n.Procs {
		if err := p.Class.Create(p); err != nil {
			n.teardownPartial()
			return engerr.Wrap(engerr.InvalidState, err, "network %s: proc %s create failed", n.Label, p.Label)
		}
	}
	n.built = true
	return nil
}

func (n *Network) teardownPartial() {
	for _, p := range n.Procs {
		_ = p.Class.Destroy(p)
	}
}

// Teardown runs every proc's Destroy callback in reverse creation order
// (spec.md §3, §5 "Memory ownership").
func (n *Network) Teardown() error {
	var firstErr error
	for i := len(n.Procs) - 1; i >= 0; i-- {
		if err := n.Procs[i].Class.Destroy(n.Procs[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ExecCycle runs one network cycle: for every proc in declared order,
// invoke Exec if ReadyToExec, log non-EOF errors, and propagate EOF
// (normal termination) to the caller immediately.
func (n *Network) ExecCycle() error {
	for _, p := range n.Procs {
		if !p.ReadyToExec() {
			continue
		}
		err := p.Class.Exec(p)
		if err == nil {
			continue
		}
		if err == io.EOF {
			return io.EOF
		}
		n.logExecError(p, err)
	}
	return nil
}

func (n *Network) logExecError(p *Proc, err error) {
	if n.Logger == nil {
		return
	}
	n.Logger.Error("exec failed", "proc", p.Label, "sfx", p.SfxID, "err", err)
}

func (n *Network) logNotifyError(p *Proc, v *Variable, err error) {
	if n.Logger == nil {
		return
	}
	n.Logger.Error("notify failed", "proc", p.Label, "sfx", p.SfxID, "variable", v.Label, "vid", v.Vid, "err", err)
}
