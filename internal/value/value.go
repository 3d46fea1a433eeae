// Package value implements the tagged Value union, record types/records,
// and the four buffer kinds (rbuf, abuf, mbuf, fbuf) of spec.md §3–§4.4.
package value

import (
	"fmt"

	"github.com/larkecw/sfengine/internal/engerr"
)

// Flag is the closed set of type tags a Value may carry.
type Flag int

const (
	FlagInvalid Flag = iota
	FlagBool
	FlagInt8
	FlagUInt8
	FlagInt16
	FlagUInt16
	FlagInt32
	FlagUInt32
	FlagInt64
	FlagUInt64
	FlagFloat
	FlagDouble
	FlagChar
	FlagString
	FlagCfg // reference to a parsed configuration node
)

func (f Flag) String() string {
	switch f {
	case FlagBool:
		return "bool"
	case FlagInt8:
		return "int8"
	case FlagUInt8:
		return "uint8"
	case FlagInt16:
		return "int16"
	case FlagUInt16:
		return "uint16"
	case FlagInt32:
		return "int32"
	case FlagUInt32:
		return "uint32"
	case FlagInt64:
		return "int64"
	case FlagUInt64:
		return "uint64"
	case FlagFloat:
		return "float"
	case FlagDouble:
		return "double"
	case FlagChar:
		return "char"
	case FlagString:
		return "string"
	case FlagCfg:
		return "cfg"
	default:
		return "invalid"
	}
}

func (f Flag) isNumeric() bool {
	switch f {
	case FlagBool, FlagInt8, FlagUInt8, FlagInt16, FlagUInt16, FlagInt32, FlagUInt32,
		FlagInt64, FlagUInt64, FlagFloat, FlagDouble, FlagChar:
		return true
	}
	return false
}

// CfgNode is the minimal shape a configuration node must satisfy for a
// Value to reference it (internal/cfgnode.Node implements this).
type CfgNode interface {
	IsLeaf() bool
}

// Value is a tagged union over bool, sized ints, float/double, char,
// string, and a configuration-node reference. Every Value carries
// exactly one Flag.
type Value struct {
	flag Flag
	num  float64 // backing store for every numeric flag (incl. bool, char)
	str  string
	cfg  CfgNode
}

func Bool(b bool) Value {
	n := 0.0
	if b {
		n = 1.0
	}
	return Value{flag: FlagBool, num: n}
}

func Int64(v int64) Value    { return Value{flag: FlagInt64, num: float64(v)} }
func UInt64(v uint64) Value  { return Value{flag: FlagUInt64, num: float64(v)} }
func Int32(v int32) Value    { return Value{flag: FlagInt32, num: float64(v)} }
func UInt32(v uint32) Value  { return Value{flag: FlagUInt32, num: float64(v)} }
func Int16(v int16) Value    { return Value{flag: FlagInt16, num: float64(v)} }
func UInt16(v uint16) Value  { return Value{flag: FlagUInt16, num: float64(v)} }
func Int8(v int8) Value      { return Value{flag: FlagInt8, num: float64(v)} }
func UInt8(v uint8) Value    { return Value{flag: FlagUInt8, num: float64(v)} }
func Float(v float32) Value  { return Value{flag: FlagFloat, num: float64(v)} }
func Double(v float64) Value { return Value{flag: FlagDouble, num: v} }
func Char(v rune) Value      { return Value{flag: FlagChar, num: float64(v)} }
func String(v string) Value  { return Value{flag: FlagString, str: v} }
func Cfg(v CfgNode) Value    { return Value{flag: FlagCfg, cfg: v} }

// Flag returns the value's type tag.
func (v Value) Flag() Flag { return v.flag }

func (v Value) IsNumeric() bool { return v.flag.isNumeric() }

// Float64 coerces any numeric value to float64. string/cfg values fail
// with engerr.InvalidArg ("incompatible type") per spec.md §4.4.
func (v Value) Float64() (float64, error) {
	if !v.flag.isNumeric() {
		return 0, engerr.New(engerr.InvalidArg, "value: cannot read %s value as numeric", v.flag)
	}
	return v.num, nil
}

func (v Value) Int64() (int64, error) {
	f, err := v.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func (v Value) Bool() (bool, error) {
	f, err := v.Float64()
	if err != nil {
		return false, err
	}
	return f != 0, nil
}

// String returns the string payload. Numeric and cfg values fail.
func (v Value) String() (string, error) {
	if v.flag != FlagString {
		return "", engerr.New(engerr.InvalidArg, "value: cannot read %s value as string", v.flag)
	}
	return v.str, nil
}

// CfgNode returns the referenced configuration node. Only valid for
// FlagCfg values.
func (v Value) CfgNode() (CfgNode, error) {
	if v.flag != FlagCfg {
		return nil, engerr.New(engerr.InvalidArg, "value: cannot read %s value as cfg", v.flag)
	}
	return v.cfg, nil
}

func (v Value) GoString() string {
	switch v.flag {
	case FlagString:
		return fmt.Sprintf("Value(string=%q)", v.str)
	case FlagCfg:
		return "Value(cfg)"
	default:
		return fmt.Sprintf("Value(%s=%v)", v.flag, v.num)
	}
}
