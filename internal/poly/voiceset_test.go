package poly

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/proc"
)

type countingClass struct {
	execN int
}

func (c *countingClass) Create(p *proc.Proc) error  { return nil }
func (c *countingClass) Destroy(p *proc.Proc) error { return nil }
func (c *countingClass) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (c *countingClass) Exec(p *proc.Proc) error {
	c.execN++
	return nil
}
func (c *countingClass) Report(p *proc.Proc) error { return nil }

func buildCountingVoice(classes []*countingClass) VoiceBuilder {
	return func(idx int) (*proc.Network, error) {
		n := proc.NewNetwork("voice")
		n.AddProc(proc.NewProc("osc", idx, classes[idx]))
		return n, nil
	}
}

func TestSerialExecRunsEveryVoiceOnce(t *testing.T) {
	classes := make([]*countingClass, 4)
	for i := range classes {
		classes[i] = &countingClass{}
	}
	vs, err := NewVoiceSet(4, buildCountingVoice(classes))
	require.NoError(t, err)
	require.NoError(t, vs.Build())

	require.NoError(t, vs.ExecCycle())
	for i, c := range classes {
		assert.Equal(t, 1, c.execN, "voice %d", i)
	}
}

func TestParallelExecRunsEveryVoiceExactlyOnce(t *testing.T) {
	classes := make([]*countingClass, 8)
	for i := range classes {
		classes[i] = &countingClass{}
	}
	vs, err := NewVoiceSet(8, buildCountingVoice(classes))
	require.NoError(t, err)
	require.NoError(t, vs.Build())
	vs.EnableParallel(4, false, time.Second)
	defer vs.DisableParallel()

	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, vs.ExecCycle())
	}
	for i, c := range classes {
		assert.Equal(t, 3, c.execN, "voice %d", i)
	}
}

type eofClass struct{ at int }

func (c *eofClass) Create(p *proc.Proc) error  { return nil }
func (c *eofClass) Destroy(p *proc.Proc) error { return nil }
func (c *eofClass) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (c *eofClass) Exec(p *proc.Proc) error {
	if p.SfxID == c.at {
		return io.EOF
	}
	return nil
}
func (c *eofClass) Report(p *proc.Proc) error { return nil }

func TestSerialExecPropagatesVoiceEOF(t *testing.T) {
	n := 3
	build := func(idx int) (*proc.Network, error) {
		net := proc.NewNetwork("voice")
		net.AddProc(proc.NewProc("osc", idx, &eofClass{at: 1}))
		return net, nil
	}
	vs, err := NewVoiceSet(n, build)
	require.NoError(t, err)
	require.NoError(t, vs.Build())

	err = vs.ExecCycle()
	assert.Equal(t, io.EOF, err)
}

func TestVoiceSetTeardownRunsReverseOrder(t *testing.T) {
	var order []int
	build := func(idx int) (*proc.Network, error) {
		net := proc.NewNetwork("voice")
		idx := idx
		net.AddProc(proc.NewProc("osc", idx, &orderClass{idx: idx, order: &order}))
		return net, nil
	}
	vs, err := NewVoiceSet(3, build)
	require.NoError(t, err)
	require.NoError(t, vs.Build())
	require.NoError(t, vs.Teardown())
	assert.Equal(t, []int{2, 1, 0}, order)
}

type orderClass struct {
	idx   int
	order *[]int
}

func (c *orderClass) Create(p *proc.Proc) error { return nil }
func (c *orderClass) Destroy(p *proc.Proc) error {
	*c.order = append(*c.order, c.idx)
	return nil
}
func (c *orderClass) Notify(p *proc.Proc, v *proc.Variable) error { return nil }
func (c *orderClass) Exec(p *proc.Proc) error                    { return nil }
func (c *orderClass) Report(p *proc.Proc) error                  { return nil }
