package value

import "github.com/larkecw/sfengine/internal/engerr"

// Field is one named, typed slot in a RecordType.
type Field struct {
	Name string
	Flag Flag
}

// RecordType is an ordered list of named typed fields, optionally
// extending a base type (spec.md §3).
type RecordType struct {
	Name   string
	Base   *RecordType
	Fields []Field
}

// AllFields returns the base type's fields (if any) followed by this
// type's own fields, in declaration order.
func (t *RecordType) AllFields() []Field {
	var out []Field
	if t.Base != nil {
		out = append(out, t.Base.AllFields()...)
	}
	out = append(out, t.Fields...)
	return out
}

// FieldIndex returns the position of name within AllFields(), or -1.
func (t *RecordType) FieldIndex(name string) int {
	for i, f := range t.AllFields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Record is a tuple of values conforming to a RecordType.
type Record struct {
	Type   *RecordType
	Values []Value
}

// NewRecord allocates a zero-valued record for t.
func NewRecord(t *RecordType) Record {
	return Record{Type: t, Values: make([]Value, len(t.AllFields()))}
}

// Get returns the value of field name.
func (r Record) Get(name string) (Value, error) {
	idx := r.Type.FieldIndex(name)
	if idx < 0 {
		return Value{}, engerr.New(engerr.NotFound, "record: no field %q in type %q", name, r.Type.Name)
	}
	return r.Values[idx], nil
}

// Set assigns the value of field name, checking the declared flag when
// the field is numeric-typed and the value is numeric (both are
// coercible); string/cfg never cross into numeric fields or vice versa.
func (r Record) Set(name string, v Value) error {
	idx := r.Type.FieldIndex(name)
	if idx < 0 {
		return engerr.New(engerr.NotFound, "record: no field %q in type %q", name, r.Type.Name)
	}
	field := r.Type.AllFields()[idx]
	if field.Flag.isNumeric() != v.flag.isNumeric() {
		return engerr.New(engerr.InvalidArg, "record: field %q is %s, value is %s", name, field.Flag, v.Flag())
	}
	r.Values[idx] = v
	return nil
}

// RBuf is a ring-like array of records with an owning type pointer plus
// a live count (spec.md §3). It is pre-allocated by the producer
// processor, which mutates RecdN (<= cap) each cycle; consumers read
// RecdN records and must not retain pointers past the next cycle.
type RBuf struct {
	Type  *RecordType
	RecdA []Record // len == allocated capacity
	RecdN int      // live count, <= len(RecdA)
}

// NewRBuf allocates an RBuf with capN pre-allocated records of type t.
func NewRBuf(t *RecordType, capN int) *RBuf {
	recs := make([]Record, capN)
	for i := range recs {
		recs[i] = NewRecord(t)
	}
	return &RBuf{Type: t, RecdA: recs}
}

// Live returns the RecdN live records, a view the caller must not retain
// past the next cycle.
func (b *RBuf) Live() []Record {
	if b.RecdN > len(b.RecdA) {
		return b.RecdA
	}
	return b.RecdA[:b.RecdN]
}

// Cap returns the pre-allocated capacity.
func (b *RBuf) Cap() int { return len(b.RecdA) }
