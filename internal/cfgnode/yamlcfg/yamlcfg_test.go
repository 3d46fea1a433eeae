package yamlcfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/cfgnode"
)

const doc = `
name: demo
sampleRate: 48000
gain: 0.75
procs:
  - label: osc1
    kind: sine
  - label: mix1
    kind: mixer
nested:
  inner:
    found: yes
`

func parseDoc(t *testing.T) cfgnode.Node {
	t.Helper()
	n, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return n
}

func TestParseTopLevelDict(t *testing.T) {
	n := parseDoc(t)
	assert.True(t, n.IsDict())
	assert.Equal(t, 5, n.ChildCount())
}

func TestFindReadsScalarsByType(t *testing.T) {
	n := parseDoc(t)

	name, err := n.Find("name", false)
	require.NoError(t, err)
	s, err := name.String()
	require.NoError(t, err)
	assert.Equal(t, "demo", s)

	rate, err := n.Find("sampleRate", false)
	require.NoError(t, err)
	i, err := rate.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 48000, i)

	gain, err := n.Find("gain", false)
	require.NoError(t, err)
	g, err := gain.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, g, 1e-9)
}

func TestFindDescendsIntoListElements(t *testing.T) {
	n := parseDoc(t)

	procs, err := n.Find("procs", false)
	require.NoError(t, err)
	require.True(t, procs.IsList())
	require.Equal(t, 2, procs.ChildCount())

	first, err := procs.ChildEle(0)
	require.NoError(t, err)
	require.True(t, first.IsDict())

	label, err := first.Find("label", false)
	require.NoError(t, err)
	s, err := label.String()
	require.NoError(t, err)
	assert.Equal(t, "osc1", s)
}

func TestFindRecursesIntoNestedDicts(t *testing.T) {
	n := parseDoc(t)

	_, err := n.Find("found", false)
	assert.Error(t, err, "a non-recursing find should not see a nested dict's fields")

	found, err := n.Find("found", true)
	require.NoError(t, err)
	b, err := found.Bool()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestChildEleExposesDictChildrenAsPairs(t *testing.T) {
	n := parseDoc(t)

	var sawName bool
	for i := 0; i < n.ChildCount(); i++ {
		child, err := n.ChildEle(i)
		require.NoError(t, err)
		require.True(t, child.IsPair())
		label, err := child.PairLabel()
		require.NoError(t, err)
		if label == "name" {
			sawName = true
			val, err := child.PairValue()
			require.NoError(t, err)
			s, err := val.String()
			require.NoError(t, err)
			assert.Equal(t, "demo", s)
		}
	}
	assert.True(t, sawName)
}

func TestGetVReadsAgainstParsedYAML(t *testing.T) {
	n := parseDoc(t)

	var name string
	var rate int64
	err := cfgnode.GetV(n, cfgnode.Field{Label: "name", Dst: &name}, cfgnode.Field{Label: "sampleRate", Dst: &rate})
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
	assert.EqualValues(t, 48000, rate)
}
