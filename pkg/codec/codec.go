package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EncodingError reports a malformed encoded value seen by Decode.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("codec: encoding error: %s", e.Reason)
}

// Encode renders v as its canonical JSON text: null/bool/int/float/text map
// onto the corresponding JSON literal, lists encode as ["list", ...],
// tuples as ["tuple", ...], and maps as JSON objects whose keys are
// themselves the encoded text of the (possibly non-text) key value.
func Encode(v Value) (string, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		buf.WriteString(formatFloat(v.f))
	case KindText:
		writeJSONString(buf, v.s)
	case KindList, KindTuple:
		tag := "list"
		if v.kind == KindTuple {
			tag = "tuple"
		}
		buf.WriteByte('[')
		writeJSONString(buf, tag)
		for _, elem := range v.seq {
			buf.WriteByte(',')
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		if v.m != nil {
			first := true
			for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
				if !first {
					buf.WriteByte(',')
				}
				first = false
				writeJSONString(buf, pair.Key)
				buf.WriteByte(':')
				if err := writeValue(buf, pair.Value.Val); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return &EncodingError{Reason: fmt.Sprintf("unknown value kind %d", v.kind)}
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// formatFloat renders f so Decode can always tell it apart from an int
// token. strconv.FormatFloat with 'g' drops the decimal point for
// integer-valued floats (1.0 -> "1"), which Decode's json.Number.Int64
// would then happily parse as an Int, losing the Float kind on round
// trip. Append ".0" whenever the result has no '.' or exponent marker.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Decode parses text previously produced by Encode (or an equivalent
// producer following the same tagging rules) back into a Value. Decoding
// walks the JSON token stream directly rather than through a generic
// map[string]any, so that a map Value's key order survives the round trip —
// Go's own JSON decoder does not preserve object key order otherwise.
func Decode(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, &EncodingError{Reason: err.Error()}
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, &EncodingError{Reason: "malformed number: " + t.String()}
		}
		return Float(f), nil
	case string:
		return Text(t), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		default:
			return Value{}, &EncodingError{Reason: fmt.Sprintf("unexpected delimiter %q", t)}
		}
	default:
		return Value{}, &EncodingError{Reason: fmt.Sprintf("unsupported token %T", tok)}
	}
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var tag string
	haveTag := false
	items := make([]Value, 0)

	for dec.More() {
		elem, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		if !haveTag {
			text, ok := elem.AsText()
			if !ok {
				return Value{}, &EncodingError{Reason: "array's first element is not a tag"}
			}
			tag = text
			haveTag = true
			continue
		}
		items = append(items, elem)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return Value{}, &EncodingError{Reason: err.Error()}
	}
	if !haveTag {
		return Value{}, &EncodingError{Reason: "array has no list/tuple tag"}
	}
	switch tag {
	case "list":
		return ListOf(items), nil
	case "tuple":
		return TupleOf(items), nil
	default:
		return Value{}, &EncodingError{Reason: fmt.Sprintf("unrecognized array tag %q", tag)}
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	out := NewMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, &EncodingError{Reason: err.Error()}
		}
		keyText, ok := keyTok.(string)
		if !ok {
			return Value{}, &EncodingError{Reason: "object key is not a string"}
		}
		key, err := Decode(keyText)
		if err != nil {
			return Value{}, err
		}
		val, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		if err := out.Set(key, val); err != nil {
			return Value{}, err
		}
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return Value{}, &EncodingError{Reason: err.Error()}
	}
	return out, nil
}
