package proc

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/value"
)

// fakeClass is a minimal ClassMembers for exercising the runtime without
// a real DSP processor.
type fakeClass struct {
	createFn func(p *Proc) error
	execFn   func(p *Proc) error
	notifyN  int
}

func (f *fakeClass) Create(p *Proc) error {
	if f.createFn != nil {
		return f.createFn(p)
	}
	return nil
}
func (f *fakeClass) Destroy(p *Proc) error { return nil }
func (f *fakeClass) Notify(p *Proc, v *Variable) error {
	f.notifyN++
	return nil
}
func (f *fakeClass) Exec(p *Proc) error {
	if f.execFn != nil {
		return f.execFn(p)
	}
	return nil
}
func (f *fakeClass) Report(p *Proc) error { return nil }

func TestWildcardBroadcastObservableFromEveryChannel(t *testing.T) {
	fc := &fakeClass{}
	p := NewProc("gain", 0, fc)
	n := NewNetwork("n")
	n.AddProc(p)

	v, err := p.Register("g", 0, 0, Descriptor{}, false)
	require.NoError(t, err)

	for c := 0; c < 4; c++ {
		v.EnsureChannel(c)
	}

	require.NoError(t, p.VarSet(v, AnyChannel, ScalarValue(value.Double(0.5))))

	for c := 0; c < 4; c++ {
		got, err := v.Get(c)
		require.NoError(t, err)
		f, _ := got.Scalar.Float64()
		assert.Equal(t, 0.5, f)
	}
}

func TestConcreteChannelWriteLeavesWildcardUnchanged(t *testing.T) {
	fc := &fakeClass{}
	p := NewProc("gain", 0, fc)
	n := NewNetwork("n")
	n.AddProc(p)

	v, err := p.Register("g", 0, 0, Descriptor{}, false)
	require.NoError(t, err)

	require.NoError(t, p.VarSet(v, AnyChannel, ScalarValue(value.Double(0.5))))
	require.NoError(t, p.VarSet(v, 2, ScalarValue(value.Double(0.9))))

	got, err := v.Get(2)
	require.NoError(t, err)
	f, _ := got.Scalar.Float64()
	assert.Equal(t, 0.9, f)

	wild, err := v.Get(AnyChannel)
	require.NoError(t, err)
	f, _ = wild.Scalar.Float64()
	assert.Equal(t, 0.5, f)

	// An untouched concrete channel still falls back to the wildcard.
	other, err := v.Get(3)
	require.NoError(t, err)
	f, _ = other.Scalar.Float64()
	assert.Equal(t, 0.5, f)
}

func TestExecOnlyRunsWhenInputsSatisfied(t *testing.T) {
	ran := false
	fc := &fakeClass{
		createFn: func(p *Proc) error {
			_, err := p.Register("in", 0, 0, Descriptor{}, true)
			return err
		},
		execFn: func(p *Proc) error {
			ran = true
			return nil
		},
	}
	p := NewProc("needsInput", 0, fc)
	n := NewNetwork("n")
	n.AddProc(p)
	require.NoError(t, n.Build())

	require.NoError(t, n.ExecCycle())
	assert.False(t, ran, "exec must not run before the input is connected")

	v, _ := p.lookupVar("in", 0, 0)
	require.NoError(t, p.VarSet(v, AnyChannel, ScalarValue(value.Double(1))))

	require.NoError(t, n.ExecCycle())
	assert.True(t, ran, "exec must run once the input has a value")
}

func TestWireAttachesSameVariableAcrossProcs(t *testing.T) {
	n := NewNetwork("n")
	src := NewProc("src", 0, &fakeClass{createFn: func(p *Proc) error {
		_, err := p.RegisterAndSet("out", 0, 0, AnyChannel, Descriptor{}, ScalarValue(value.Double(1)))
		return err
	}})
	dst := NewProc("dst", 0, &fakeClass{createFn: func(p *Proc) error {
		_, err := p.Register("in", 0, 0, Descriptor{}, true)
		return err
	}})
	n.AddProc(src)
	n.AddProc(dst)
	n.AddWire(Wire{Src: src, SrcLabel: "out", Dst: dst, DstLabel: "in"})

	require.NoError(t, n.Build())

	srcVar, _ := src.lookupVar("out", 0, 0)
	dstVar, _ := dst.lookupVar("in", 0, 0)
	assert.Same(t, srcVar, dstVar)
}

func TestEOFPropagatesOutOfNetwork(t *testing.T) {
	n := NewNetwork("n")
	p := NewProc("halts", 0, &fakeClass{execFn: func(p *Proc) error { return io.EOF }})
	n.AddProc(p)
	require.NoError(t, n.Build())
	err := n.ExecCycle()
	assert.Equal(t, io.EOF, err)
}
