package cfgnode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkecw/sfengine/internal/engerr"
)

var (
	engerrOutOfRange = engerr.New(engerr.InvalidArg, "cfgnode_test: index out of range")
	engerrNotFound   = engerr.New(engerr.NotFound, "cfgnode_test: label not found")
)

// fakeNode is a minimal hand-built Node for exercising GetV without the
// yamlcfg adapter.
type fakeNode struct {
	kind  Kind
	label string
	val   string
	kids  []*fakeNode
}

func (f *fakeNode) Kind() Kind     { return f.kind }
func (f *fakeNode) IsDict() bool   { return f.kind == KindDict }
func (f *fakeNode) IsList() bool   { return f.kind == KindList }
func (f *fakeNode) IsPair() bool   { return f.kind == KindPair }
func (f *fakeNode) IsScalar() bool { return f.kind == KindScalar }
func (f *fakeNode) IsLeaf() bool   { return f.kind == KindScalar }

func (f *fakeNode) ChildCount() int { return len(f.kids) }
func (f *fakeNode) ChildEle(idx int) (Node, error) {
	if idx < 0 || idx >= len(f.kids) {
		return nil, engerrOutOfRange
	}
	return f.kids[idx], nil
}
func (f *fakeNode) PairLabel() (string, error) { return f.label, nil }
func (f *fakeNode) PairValue() (Node, error)   { return f.kids[0], nil }

func (f *fakeNode) Find(label string, recurse bool) (Node, error) {
	for _, k := range f.kids {
		if k.kind == KindPair && k.label == label {
			return k.kids[0], nil
		}
	}
	return nil, engerrNotFound
}

func (f *fakeNode) String() (string, error)   { return f.val, nil }
func (f *fakeNode) Int64() (int64, error)     { return 0, nil }
func (f *fakeNode) Float64() (float64, error) { return 0, nil }
func (f *fakeNode) Bool() (bool, error)       { return false, nil }

func pairDict(kids ...*fakeNode) *fakeNode { return &fakeNode{kind: KindDict, kids: kids} }
func pair(label, val string) *fakeNode {
	return &fakeNode{kind: KindPair, label: label, kids: []*fakeNode{{kind: KindScalar, val: val}}}
}

func TestGetVReadsRequiredFields(t *testing.T) {
	d := pairDict(pair("name", "osc1"), pair("label", "sine"))

	var name, label string
	require.NoError(t, GetV(d, Field{Label: "name", Dst: &name}, Field{Label: "label", Dst: &label}))
	assert.Equal(t, "osc1", name)
	assert.Equal(t, "sine", label)
}

func TestGetVFailsOnMissingRequiredField(t *testing.T) {
	d := pairDict(pair("name", "osc1"))

	var name, missing string
	err := GetV(d, Field{Label: "name", Dst: &name}, Field{Label: "missing", Dst: &missing})
	assert.Error(t, err)
}

func TestGetVSkipsMissingOptionalField(t *testing.T) {
	d := pairDict(pair("name", "osc1"))

	var name, missing string
	err := GetV(d, Field{Label: "name", Dst: &name}, Field{Label: "missing", Dst: &missing, Optional: true})
	require.NoError(t, err)
	assert.Empty(t, missing)
}
