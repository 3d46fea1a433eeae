// Package yamlcfg backs internal/cfgnode.Node with a parsed YAML
// document, since gopkg.in/yaml.v3's yaml.Node tree already models
// dict/seq/scalar nodes 1:1 (a YAML mapping's children are re-exposed
// as synthetic pair nodes so ChildEle/PairLabel/PairValue line up with
// cfgnode.Node exactly as cwObject.h's dict/pair split does).
package yamlcfg

import (
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/larkecw/sfengine/internal/cfgnode"
	"github.com/larkecw/sfengine/internal/engerr"
)

// Parse decodes a single YAML document from r into a cfgnode.Node tree.
func Parse(r io.Reader) (cfgnode.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, engerr.Wrap(engerr.SyntaxError, err, "yamlcfg: parse failed")
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	return wrap(root), nil
}

// node wraps a *yaml.Node as a cfgnode.Node. A pair is synthesized: key
// and val point into a mapping node's Content pair, kind is pinned to
// cfgnode.KindPair, and n is left nil.
type node struct {
	n       *yaml.Node
	kind    cfgnode.Kind
	pairKey *yaml.Node
	pairVal *yaml.Node
}

func wrap(n *yaml.Node) cfgnode.Node {
	switch n.Kind {
	case yaml.MappingNode:
		return &node{n: n, kind: cfgnode.KindDict}
	case yaml.SequenceNode:
		return &node{n: n, kind: cfgnode.KindList}
	case yaml.AliasNode:
		return wrap(n.Alias)
	default:
		return &node{n: n, kind: cfgnode.KindScalar}
	}
}

func wrapPair(key, val *yaml.Node) cfgnode.Node {
	return &node{kind: cfgnode.KindPair, pairKey: key, pairVal: val}
}

func (nd *node) Kind() cfgnode.Kind { return nd.kind }
func (nd *node) IsDict() bool       { return nd.kind == cfgnode.KindDict }
func (nd *node) IsList() bool       { return nd.kind == cfgnode.KindList }
func (nd *node) IsPair() bool       { return nd.kind == cfgnode.KindPair }
func (nd *node) IsScalar() bool     { return nd.kind == cfgnode.KindScalar }
func (nd *node) IsLeaf() bool       { return nd.kind == cfgnode.KindScalar }

func (nd *node) ChildCount() int {
	switch nd.kind {
	case cfgnode.KindDict:
		return len(nd.n.Content) / 2
	case cfgnode.KindList:
		return len(nd.n.Content)
	default:
		return 0
	}
}

func (nd *node) ChildEle(idx int) (cfgnode.Node, error) {
	switch nd.kind {
	case cfgnode.KindDict:
		if idx < 0 || 2*idx+1 >= len(nd.n.Content) {
			return nil, engerr.New(engerr.InvalidArg, "yamlcfg: child index %d out of range", idx)
		}
		return wrapPair(nd.n.Content[2*idx], nd.n.Content[2*idx+1]), nil
	case cfgnode.KindList:
		if idx < 0 || idx >= len(nd.n.Content) {
			return nil, engerr.New(engerr.InvalidArg, "yamlcfg: child index %d out of range", idx)
		}
		return wrap(nd.n.Content[idx]), nil
	default:
		return nil, engerr.New(engerr.InvalidState, "yamlcfg: %s node has no children", nd.kind)
	}
}

func (nd *node) PairLabel() (string, error) {
	if nd.kind != cfgnode.KindPair {
		return "", engerr.New(engerr.InvalidState, "yamlcfg: %s node is not a pair", nd.kind)
	}
	return nd.pairKey.Value, nil
}

func (nd *node) PairValue() (cfgnode.Node, error) {
	if nd.kind != cfgnode.KindPair {
		return nil, engerr.New(engerr.InvalidState, "yamlcfg: %s node is not a pair", nd.kind)
	}
	return wrap(nd.pairVal), nil
}

// Find searches dict children for a pair labeled label, recursing into
// nested dict-valued pairs when recurse is true (cwObject.h's
// find(label, kRecurseFl)).
func (nd *node) Find(label string, recurse bool) (cfgnode.Node, error) {
	if nd.kind != cfgnode.KindDict {
		return nil, engerr.New(engerr.NotFound, "yamlcfg: %s node cannot be searched by label", nd.kind)
	}
	for i := 0; i+1 < len(nd.n.Content); i += 2 {
		key, val := nd.n.Content[i], nd.n.Content[i+1]
		if key.Value == label {
			return wrap(val), nil
		}
		if recurse && val.Kind == yaml.MappingNode {
			if found, err := (&node{n: val, kind: cfgnode.KindDict}).Find(label, true); err == nil {
				return found, nil
			}
		}
	}
	return nil, engerr.New(engerr.NotFound, "yamlcfg: label %q not found", label)
}

func (nd *node) scalar() (*yaml.Node, error) {
	switch nd.kind {
	case cfgnode.KindScalar:
		return nd.n, nil
	case cfgnode.KindPair:
		if nd.pairVal.Kind != yaml.ScalarNode {
			return nil, engerr.New(engerr.InvalidArg, "yamlcfg: pair %q value is not a scalar", nd.pairKey.Value)
		}
		return nd.pairVal, nil
	default:
		return nil, engerr.New(engerr.InvalidArg, "yamlcfg: %s node is not a scalar", nd.kind)
	}
}

func (nd *node) String() (string, error) {
	s, err := nd.scalar()
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

func (nd *node) Int64() (int64, error) {
	s, err := nd.scalar()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s.Value, 0, 64)
	if err != nil {
		return 0, engerr.Wrap(engerr.InvalidArg, err, "yamlcfg: %q is not an integer", s.Value)
	}
	return v, nil
}

func (nd *node) Float64() (float64, error) {
	s, err := nd.scalar()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return 0, engerr.Wrap(engerr.InvalidArg, err, "yamlcfg: %q is not a number", s.Value)
	}
	return v, nil
}

func (nd *node) Bool() (bool, error) {
	s, err := nd.scalar()
	if err != nil {
		return false, err
	}
	switch s.Value {
	case "yes", "Yes", "YES", "on", "On", "ON":
		return true, nil
	case "no", "No", "NO", "off", "Off", "OFF":
		return false, nil
	}
	v, err := strconv.ParseBool(s.Value)
	if err != nil {
		return false, engerr.Wrap(engerr.InvalidArg, err, "yamlcfg: %q is not a bool", s.Value)
	}
	return v, nil
}
