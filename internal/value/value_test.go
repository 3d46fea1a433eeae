package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericCoercion(t *testing.T) {
	v := Int32(42)
	f, err := v.Float64()
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)

	i, err := v.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)
}

func TestBoolZeroFalse(t *testing.T) {
	b, err := Double(0).Bool()
	require.NoError(t, err)
	assert.False(t, b)

	b, err = Double(3.2).Bool()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestStringNumericIncompatible(t *testing.T) {
	_, err := String("x").Float64()
	assert.Error(t, err)

	_, err = Int32(1).String()
	assert.Error(t, err)
}

func TestCfgNeverCrossesNumeric(t *testing.T) {
	_, err := Cfg(nil).Float64()
	assert.Error(t, err)
}

func TestRecordTypeInheritsBaseFields(t *testing.T) {
	base := &RecordType{Name: "base", Fields: []Field{{Name: "a", Flag: FlagInt32}}}
	derived := &RecordType{Name: "derived", Base: base, Fields: []Field{{Name: "b", Flag: FlagString}}}

	all := derived.AllFields()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)
}

func TestRecordSetGetRoundTrip(t *testing.T) {
	rt := &RecordType{Name: "midi", Fields: []Field{{Name: "status", Flag: FlagUInt8}}}
	r := NewRecord(rt)
	require.NoError(t, r.Set("status", UInt8(0x90)))
	v, err := r.Get("status")
	require.NoError(t, err)
	i, _ := v.Int64()
	assert.Equal(t, int64(0x90), i)
}

func TestRecordSetTypeMismatchRejected(t *testing.T) {
	rt := &RecordType{Name: "t", Fields: []Field{{Name: "a", Flag: FlagInt32}}}
	r := NewRecord(rt)
	assert.Error(t, r.Set("a", String("nope")))
}

func TestRBufLiveClampsToCapacity(t *testing.T) {
	rt := &RecordType{Name: "t", Fields: []Field{{Name: "a", Flag: FlagInt32}}}
	b := NewRBuf(rt, 4)
	b.RecdN = 2
	assert.Len(t, b.Live(), 2)
}

func TestMBufAppendRespectsCapacity(t *testing.T) {
	b := NewMBuf(2)
	assert.True(t, b.Append(MidiMsg{}))
	assert.True(t, b.Append(MidiMsg{}))
	assert.False(t, b.Append(MidiMsg{}))
	assert.Equal(t, 2, b.MsgN)
}

func TestFBufClearReady(t *testing.T) {
	f := NewFBuf(2, 4, 1, false)
	f.Ready[0] = true
	f.Mag[0][0] = 1.5
	f.ClearReady()
	assert.False(t, f.Ready[0])
	assert.Equal(t, float32(0), f.Mag[0][0])
}
