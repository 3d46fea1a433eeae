// Package cfgnode specifies the external configuration tree interface
// of spec.md §6: a tree of typed nodes (dict/list/pair/scalar) the core
// reads from but never writes back to. internal/cfgnode/yamlcfg backs
// it with a YAML document (cwObject.h's object_t, generalized away from
// its C union/type-id encoding to a small Go interface).
package cfgnode

import "github.com/larkecw/sfengine/internal/engerr"

// Kind is the closed set of node shapes (cwObject.h's kPairTId/
// kListTId/kDictTId plus every scalar type-id collapsed to one).
type Kind int

const (
	KindScalar Kind = iota
	KindPair
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPair:
		return "pair"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "invalid"
	}
}

// Node is the minimal reader surface the core needs from a parsed
// configuration tree (cwObject.h's object_t, pared down to the
// core-consumed subset spec.md §6 names: getv, child_ele, child_count,
// pair_label/pair_value, find, and the type predicates).
type Node interface {
	Kind() Kind
	IsDict() bool
	IsList() bool
	IsPair() bool
	IsScalar() bool
	IsLeaf() bool // satisfies internal/value.CfgNode

	ChildCount() int
	ChildEle(idx int) (Node, error)

	PairLabel() (string, error)
	PairValue() (Node, error)

	// Find searches this node's children for a pair with the given
	// label, recursing into nested dicts when recurse is true
	// (cwObject.h's find(label, kRecurseFl)).
	Find(label string, recurse bool) (Node, error)

	String() (string, error)
	Int64() (int64, error)
	Float64() (float64, error)
	Bool() (bool, error)
}

// Field is one entry of a GetV field list: read the child pair labeled
// Label into *Dst, or skip it without error when Optional and absent.
type Field struct {
	Label    string
	Dst      any // *string, *int64, *float64, *bool, or *Node
	Optional bool
}

// GetV performs a sequence of typed reads against n's pair children,
// aborting on the first required field that is missing or whose value
// cannot convert to the requested type (cwObject.h's getv/getv_opt,
// re-expressed as a field-list builder instead of variadic templates).
func GetV(n Node, fields ...Field) error {
	for _, f := range fields {
		child, err := n.Find(f.Label, false)
		if err != nil {
			if f.Optional {
				continue
			}
			return engerr.Wrap(engerr.NotFound, err, "cfgnode: required field %q missing", f.Label)
		}
		if err := assign(f.Dst, child); err != nil {
			return engerr.Wrap(engerr.InvalidArg, err, "cfgnode: field %q", f.Label)
		}
	}
	return nil
}

func assign(dst any, n Node) error {
	switch d := dst.(type) {
	case *string:
		v, err := n.String()
		if err != nil {
			return err
		}
		*d = v
	case *int64:
		v, err := n.Int64()
		if err != nil {
			return err
		}
		*d = v
	case *int:
		v, err := n.Int64()
		if err != nil {
			return err
		}
		*d = int(v)
	case *float64:
		v, err := n.Float64()
		if err != nil {
			return err
		}
		*d = v
	case *bool:
		v, err := n.Bool()
		if err != nil {
			return err
		}
		*d = v
	case *Node:
		*d = n
	default:
		return engerr.New(engerr.InvalidArg, "cfgnode: unsupported destination type %T", dst)
	}
	return nil
}
