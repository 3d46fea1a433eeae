// Package proc implements the variable + proc + network runtime of
// spec.md §4.5: typed channel-aware I/O ports, registration with
// idempotent attach-or-create semantics, channel fan-out through the
// wildcard slot, and the five-callback proc lifecycle.
package proc

import (
	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/value"
)

// AnyChannel is the wildcard channel index: setting it broadcasts to
// every concrete channel that exists; reading a concrete channel with no
// backing of its own falls back to it.
const AnyChannel = -1

// VarValue is the payload a Variable channel slot can hold: exactly one
// of a scalar Value or one of the four buffer kinds.
type VarValue struct {
	Scalar value.Value
	ABuf   *value.ABuf
	MBuf   *value.MBuf
	FBuf   *value.FBuf
	RBuf   *value.RBuf
	set    bool
}

// IsSet reports whether this slot carries a value yet.
func (v VarValue) IsSet() bool { return v.set }

func ScalarValue(v value.Value) VarValue { return VarValue{Scalar: v, set: true} }
func ABufValue(b *value.ABuf) VarValue   { return VarValue{ABuf: b, set: true} }
func MBufValue(b *value.MBuf) VarValue   { return VarValue{MBuf: b, set: true} }
func FBufValue(b *value.FBuf) VarValue   { return VarValue{FBuf: b, set: true} }
func RBufValue(b *value.RBuf) VarValue   { return VarValue{RBuf: b, set: true} }

// Descriptor declares a variable's legal type flag(s) and, for record
// variables, its record format (type + pre-allocated array count).
type Descriptor struct {
	Flags          []value.Flag
	RecordType     *value.RecordType
	RecordCapacity int
	HasDefault     bool
	Default        VarValue
}

func (d Descriptor) allows(f value.Flag) bool {
	if len(d.Flags) == 0 {
		return true // untyped until first connection (type negotiation)
	}
	for _, a := range d.Flags {
		if a == f {
			return true
		}
	}
	return false
}

// Variable is a proc's typed, channel-aware I/O port, identified by
// (owner-proc, label, sfx-id, vid). Per-channel storage is held inside
// the Variable itself; channel is an axis within it, not part of its
// object identity, so a dense concrete range [0, chN) plus the wildcard
// slot can coexist.
type Variable struct {
	Owner *Proc // the proc that first created it (the producer, usually)
	Label string
	SfxID int
	Vid   int
	Desc  Descriptor
	IsInput bool

	ValueList []value.Value // optional enumerated choices surfaced to UIs

	slots       map[int]VarValue
	wildcard    VarValue
	subscribers []*Proc // every proc that has registered/attached this variable
}

func newVariable(owner *Proc, label string, sfxID, vid int, desc Descriptor, isInput bool) *Variable {
	return &Variable{
		Owner:   owner,
		Label:   label,
		SfxID:   sfxID,
		Vid:     vid,
		Desc:    desc,
		IsInput: isInput,
		slots:   map[int]VarValue{},
	}
}

func (v *Variable) addSubscriber(p *Proc) {
	for _, s := range v.subscribers {
		if s == p {
			return
		}
	}
	v.subscribers = append(v.subscribers, p)
}

// HasValue reports whether channel (or the wildcard, as fallback) has
// ever been set.
func (v *Variable) HasValue(channel int) bool {
	if channel == AnyChannel {
		return v.wildcard.IsSet()
	}
	if s, ok := v.slots[channel]; ok && s.IsSet() {
		return true
	}
	return v.wildcard.IsSet()
}

// Get reads channel's value, falling back to the wildcard slot when the
// concrete channel has no backing of its own.
func (v *Variable) Get(channel int) (VarValue, error) {
	if channel == AnyChannel {
		if !v.wildcard.IsSet() {
			return VarValue{}, engerr.New(engerr.InvalidState, "variable %s: wildcard has no value", v.Label)
		}
		return v.wildcard, nil
	}
	if s, ok := v.slots[channel]; ok && s.IsSet() {
		return s, nil
	}
	if v.wildcard.IsSet() {
		return v.wildcard, nil
	}
	return VarValue{}, engerr.New(engerr.InvalidState, "variable %s channel %d: no value", v.Label, channel)
}

// flagOf extracts a VarValue's effective type flag for descriptor
// negotiation/validation; buffer kinds are not flag-checked (the record
// type / buffer shape is the contract for those).
func flagOf(val VarValue) (value.Flag, bool) {
	if val.Scalar.Flag() != value.FlagInvalid {
		return val.Scalar.Flag(), true
	}
	return value.FlagInvalid, false
}

// Set assigns val to channel. Setting the wildcard mirrors the value to
// every concrete channel that already exists (spec.md §4.5 channel
// fan-out); setting a concrete channel leaves the wildcard untouched.
// On first connection with no declared type, the descriptor adopts val's
// type (type negotiation).
func (v *Variable) Set(channel int, val VarValue) error {
	if f, ok := flagOf(val); ok {
		if len(v.Desc.Flags) == 0 {
			v.Desc.Flags = []value.Flag{f}
		} else if !v.Desc.allows(f) {
			return engerr.New(engerr.InvalidArg, "variable %s: value type %s not declared", v.Label, f)
		}
	}

	if channel == AnyChannel {
		v.wildcard = val
		for c := range v.slots {
			v.slots[c] = val
		}
		return nil
	}
	v.slots[channel] = val
	return nil
}

// Channels returns the concrete channel indices that have their own
// backing (not counting wildcard fallback).
func (v *Variable) Channels() []int {
	out := make([]int, 0, len(v.slots))
	for c := range v.slots {
		out = append(out, c)
	}
	return out
}

// EnsureChannel makes sure a concrete channel slot exists, inheriting the
// current wildcard value if the channel is new. This is how a variable
// declared with AnyChannel "grows" to cover [0, chN) as the network
// build discovers channel counts.
func (v *Variable) EnsureChannel(channel int) {
	if _, ok := v.slots[channel]; !ok {
		v.slots[channel] = v.wildcard
	}
}
