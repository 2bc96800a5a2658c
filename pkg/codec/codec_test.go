package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	text, err := Encode(v)
	require.NoError(t, err)
	got, err := Decode(text)
	require.NoError(t, err)
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(-42),
		Int(9223372036854775807),
		Float(3.5),
		Float(-0.125),
		Text(""),
		Text("hello, \"world\"\n"),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		require.True(t, Equal(v, got), "round trip mismatch for %+v -> %+v", v, got)
	}
}

func TestRoundTripIntegerValuedFloats(t *testing.T) {
	cases := []Value{
		Float(1.0),
		Float(0.0),
		Float(-5.0),
		Float(100.0),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		require.Equal(t, KindFloat, got.Kind(), "Float(%v) must decode back to KindFloat, not KindInt", v)
		require.True(t, Equal(v, got), "round trip mismatch for %+v -> %+v", v, got)
	}
}

func TestRoundTripListVsTuple(t *testing.T) {
	list := List(Int(1), Int(2), Int(3))
	tuple := Tuple(Int(1), Int(2), Int(3))

	gotList := roundTrip(t, list)
	gotTuple := roundTrip(t, tuple)

	require.Equal(t, KindList, gotList.Kind())
	require.Equal(t, KindTuple, gotTuple.Kind())
	require.False(t, Equal(gotList, gotTuple), "list and tuple of equal contents must not be equal")

	items, ok := gotList.AsList()
	require.True(t, ok)
	require.Len(t, items, 3)
}

func TestRoundTripNestedStructures(t *testing.T) {
	inner := NewMap()
	require.NoError(t, inner.Set(Text("a"), Int(1)))
	require.NoError(t, inner.Set(Text("b"), List(Tuple(Int(1), Int(2)), Null())))

	outer := List(inner, Tuple(Text("x"), Int(9)))

	got := roundTrip(t, outer)
	require.True(t, Equal(outer, got))
}

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set(Text("z"), Int(1)))
	require.NoError(t, m.Set(Text("a"), Int(2)))
	require.NoError(t, m.Set(Text("m"), Int(3)))

	keys := m.Keys()
	require.Len(t, keys, 3)
	k0, _ := keys[0].AsText()
	k1, _ := keys[1].AsText()
	k2, _ := keys[2].AsText()
	require.Equal(t, []string{"z", "a", "m"}, []string{k0, k1, k2})

	got := roundTrip(t, m)
	gotKeys := got.Keys()
	require.Len(t, gotKeys, 3)
	g0, _ := gotKeys[0].AsText()
	g1, _ := gotKeys[1].AsText()
	g2, _ := gotKeys[2].AsText()
	require.Equal(t, []string{"z", "a", "m"}, []string{g0, g1, g2})
}

func TestMapWithTupleKeys(t *testing.T) {
	m := NewMap()
	key := Tuple(Int(3), Int(4))
	require.NoError(t, m.Set(key, Text("point")))

	val, ok := m.Get(Tuple(Int(3), Int(4)))
	require.True(t, ok)
	text, _ := val.AsText()
	require.Equal(t, "point", text)

	got := roundTrip(t, m)
	val2, ok := got.Get(Tuple(Int(3), Int(4)))
	require.True(t, ok)
	text2, _ := val2.AsText()
	require.Equal(t, "point", text2)
}

func TestMapDeleteAndContains(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set(Text("k"), Int(1)))
	require.Equal(t, 1, m.Len())

	require.True(t, m.Delete(Text("k")))
	require.Equal(t, 0, m.Len())
	require.False(t, m.Delete(Text("k")))

	_, ok := m.Get(Text("k"))
	require.False(t, ok)
}

func TestDecodeRejectsUntaggedArray(t *testing.T) {
	_, err := Decode(`[1,2,3]`)
	require.Error(t, err)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestDecodeRejectsEmptyArray(t *testing.T) {
	_, err := Decode(`[]`)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode(`["set",1,2]`)
	require.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(`{not valid`)
	require.Error(t, err)
}

func TestEncodeNullIsJSONNull(t *testing.T) {
	text, err := Encode(Null())
	require.NoError(t, err)
	require.Equal(t, "null", text)
}

func TestEncodeListAndTupleTags(t *testing.T) {
	listText, err := Encode(List(Int(1)))
	require.NoError(t, err)
	require.Equal(t, `["list",1]`, listText)

	tupleText, err := Encode(Tuple(Int(1)))
	require.NoError(t, err)
	require.Equal(t, `["tuple",1]`, tupleText)
}
