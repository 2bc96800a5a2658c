// Package codec implements the atomic value type that crosses the store's
// boundary: a small tagged union encoded as JSON text, distinguishing
// ordinary sequences from tuples and preserving insertion order on maps.
package codec

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindList
	KindTuple
	KindMap
)

// mapEntry retains the original (possibly non-text) key alongside its value,
// keyed in the backing OrderedMap by the key's encoded text so lookups stay
// O(1) while round-tripping the key's exact shape.
type mapEntry struct {
	Key Value
	Val Value
}

// Value is any composition of null, bool, int, float, text, ordered
// sequences (list or tuple), and keyed mappings that the codec round-trips.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    *orderedmap.OrderedMap[string, mapEntry]
}

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Int(i int64) Value            { return Value{kind: KindInt, i: i} }
func Float(f float64) Value        { return Value{kind: KindFloat, f: f} }
func Text(s string) Value          { return Value{kind: KindText, s: s} }
func List(items ...Value) Value    { return Value{kind: KindList, seq: items} }
func Tuple(items ...Value) Value   { return Value{kind: KindTuple, seq: items} }
func ListOf(items []Value) Value   { return Value{kind: KindList, seq: items} }
func TupleOf(items []Value) Value  { return Value{kind: KindTuple, seq: items} }

// NewMap returns an empty, order-preserving mapping value.
func NewMap() Value {
	return Value{kind: KindMap, m: orderedmap.New[string, mapEntry]()}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsText() (string, bool)     { return v.s, v.kind == KindText }
func (v Value) AsList() ([]Value, bool)    { return v.seq, v.kind == KindList }
func (v Value) AsTuple() ([]Value, bool)   { return v.seq, v.kind == KindTuple }

// Len returns the number of entries in a map Value, or the number of
// elements in a list/tuple Value. It is 0 for scalar kinds.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		if v.m == nil {
			return 0
		}
		return v.m.Len()
	case KindList, KindTuple:
		return len(v.seq)
	default:
		return 0
	}
}

// Set inserts or overwrites key -> val in a map Value. Set returns an
// *EncodingError if v is not a map Value constructed via NewMap.
func (v Value) Set(key, val Value) error {
	if v.kind != KindMap {
		return &EncodingError{Reason: "Set called on a non-map Value"}
	}
	keyText, err := Encode(key)
	if err != nil {
		return err
	}
	v.m.Set(keyText, mapEntry{Key: key, Val: val})
	return nil
}

// Get looks up key in a map Value.
func (v Value) Get(key Value) (Value, bool) {
	if v.kind != KindMap || v.m == nil {
		return Value{}, false
	}
	keyText, err := Encode(key)
	if err != nil {
		return Value{}, false
	}
	entry, ok := v.m.Get(keyText)
	if !ok {
		return Value{}, false
	}
	return entry.Val, true
}

// Delete removes key from a map Value, reporting whether it was present.
func (v Value) Delete(key Value) bool {
	if v.kind != KindMap || v.m == nil {
		return false
	}
	keyText, err := Encode(key)
	if err != nil {
		return false
	}
	_, ok := v.m.Delete(keyText)
	return ok
}

// Keys returns a map Value's keys in insertion order.
func (v Value) Keys() []Value {
	if v.kind != KindMap || v.m == nil {
		return nil
	}
	keys := make([]Value, 0, v.m.Len())
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Value.Key)
	}
	return keys
}

// Equal reports whether v and other encode to the same canonical text.
// Map key/value order is part of equality, matching Encode's own ordering.
func Equal(v, other Value) bool {
	a, errA := Encode(v)
	b, errB := Encode(other)
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}
