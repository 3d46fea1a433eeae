package proc

import "github.com/larkecw/sfengine/internal/engerr"

// ClassMembers is the five-callback lifecycle every processor class
// implements (spec.md §4.5): create/destroy/notify/exec/report. This is
// the Go re-expression of the source's function-pointer method table
// (spec.md §9 "Runtime dispatch").
type ClassMembers interface {
	// Create runs once during network build, single-threaded. It
	// typically calls p.Register/p.RegisterAndSet to declare variables.
	Create(p *Proc) error

	// Destroy runs once during teardown.
	Destroy(p *Proc) error

	// Notify runs every time one of this proc's variables changes value,
	// including changes that occur before runtime begins. During runtime
	// it runs only from this proc's own exec thread.
	Notify(p *Proc, v *Variable) error

	// Exec runs once per network cycle when the proc is scheduled. It
	// must not block. Returning engerr.EOF (io.EOF) is a normal
	// termination that propagates out of the network; any other non-nil
	// error is logged and the cycle continues.
	Exec(p *Proc) error

	// Report is a best-effort diagnostic hook.
	Report(p *Proc) error
}

type varKey struct {
	label string
	sfxID int
	vid   int
}

// Proc is one processor instance: a set of variables, user state, a
// class descriptor, an owning network, and an optional internal network
// (used by poly-host and xfade-proxy style processors).
type Proc struct {
	Label string
	SfxID int

	Class   ClassMembers
	State   any
	Network *Network

	// InternalNetwork is set by processors that host a nested network
	// (poly, xfade_ctl's proxy voices).
	InternalNetwork *Network

	vars     []*Variable
	varIndex map[varKey]*Variable

	pendingNotify map[varKey]*Variable // allocated by NewProc, never written: VarSet dispatches Notify directly
}

// NewProc constructs an un-built proc; the caller is expected to add it
// to a Network before calling Build.
func NewProc(label string, sfxID int, class ClassMembers) *Proc {
	return &Proc{
		Label:         label,
		SfxID:         sfxID,
		Class:         class,
		varIndex:      map[varKey]*Variable{},
		pendingNotify: map[varKey]*Variable{},
	}
}

// lookupVar finds a variable already registered by this proc.
func (p *Proc) lookupVar(label string, sfxID, vid int) (*Variable, bool) {
	v, ok := p.varIndex[varKey{label, sfxID, vid}]
	return v, ok
}

// Register declares variable (label, sfxID, vid). Registration is
// idempotent: a second call with the same key returns the existing
// Variable. If the network has a wire feeding this (proc, label, sfxID,
// vid), the existing upstream Variable is attached (shared by pointer)
// instead of creating a new one — this is how "connected inputs" inherit
// their producer's type and storage.
func (p *Proc) Register(label string, sfxID, vid int, desc Descriptor, isInput bool) (*Variable, error) {
	key := varKey{label, sfxID, vid}
	if v, ok := p.varIndex[key]; ok {
		return v, nil
	}

	if p.Network != nil {
		if w, ok := p.Network.wireFor(p, label, sfxID, vid); ok {
			srcVar, ok := w.Src.lookupVar(w.SrcLabel, w.SrcSfxID, w.SrcVid)
			if !ok {
				return nil, engerr.New(engerr.InvalidState, "proc %s: wire source %s.%s not yet registered", p.Label, w.Src.Label, w.SrcLabel).
					WithContext("proc", p.Label).WithContext("variable", label)
			}
			p.varIndex[key] = srcVar
			p.vars = append(p.vars, srcVar)
			srcVar.addSubscriber(p)
			return srcVar, nil
		}
	}

	v := newVariable(p, label, sfxID, vid, desc, isInput)
	v.addSubscriber(p)
	p.varIndex[key] = v
	p.vars = append(p.vars, v)
	return v, nil
}

// RegisterAndSet registers the variable (if needed) and installs a
// default value on the given channel.
func (p *Proc) RegisterAndSet(label string, sfxID, vid, channel int, desc Descriptor, def VarValue) (*Variable, error) {
	desc.HasDefault = true
	desc.Default = def
	v, err := p.Register(label, sfxID, vid, desc, false)
	if err != nil {
		return nil, err
	}
	if err := p.VarSet(v, channel, def); err != nil {
		return nil, err
	}
	return v, nil
}

// VarGet reads a variable's channel value. Convenience wrapper so
// processor Exec/Notify bodies can write p.VarGet(v, ch) without
// reaching into Variable directly.
func (p *Proc) VarGet(v *Variable, channel int) (VarValue, error) {
	return v.Get(channel)
}

// VarSet writes a variable's channel value and calls Notify on each of
// its subscribers. Per spec.md §4.5, notify is invoked once per change, from
// the setting proc's own call stack (synchronous here — the engine has
// no separate notify thread).
func (p *Proc) VarSet(v *Variable, channel int, val VarValue) error {
	if err := v.Set(channel, val); err != nil {
		return err
	}
	for _, sub := range v.subscribers {
		if err := sub.Class.Notify(sub, v); err != nil {
			// notify errors never kill the cycle (spec.md §7): log and
			// discard the value-set's side effects beyond what already
			// landed in storage.
			if sub.Network != nil {
				sub.Network.logNotifyError(sub, v, err)
			}
		}
	}
	return nil
}

// MultiVariableSfxIDs enumerates the sfx-ids registered for label across
// this proc (the "multi-variable" registry query of spec.md §4.5).
func (p *Proc) MultiVariableSfxIDs(label string) []int {
	seen := map[int]bool{}
	var out []int
	for k := range p.varIndex {
		if k.label == label && !seen[k.sfxID] {
			seen[k.sfxID] = true
			out = append(out, k.sfxID)
		}
	}
	return out
}

// Vars returns every variable registered by this proc, in registration
// order.
func (p *Proc) Vars() []*Variable { return p.vars }

// ReadyToExec reports whether every declared input variable has a value
// (by connection or default) — the testable property "exec is called
// iff all declared inputs are connected or defaulted" (spec.md §8).
func (p *Proc) ReadyToExec() bool {
	for _, v := range p.vars {
		if !v.IsInput {
			continue
		}
		if v.Desc.HasDefault {
			continue
		}
		if !v.HasValue(AnyChannel) && len(v.Channels()) == 0 {
			return false
		}
	}
	return true
}
