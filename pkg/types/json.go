package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FromJSON converts a decoded JSON value (as produced by encoding/json with
// json.Number enabled) into a Value, choosing Int over Dec whenever the
// numeric literal has no fractional part and no exponent-induced fraction.
func FromJSON(raw interface{}) (*Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(v), nil
	case json.Number:
		return numberFromJSON(v)
	case string:
		return Str(v), nil
	case []interface{}:
		out := make([]*Value, len(v))
		for i, e := range v {
			cv, err := FromJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return Arr(out), nil
	case map[string]interface{}:
		return objectFromJSONMap(v)
	case *OrderedRawObject:
		obj := NewObject()
		for _, k := range v.Keys {
			cv, err := FromJSON(v.Values[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, cv)
		}
		return Obj(obj), nil
	default:
		return nil, fmt.Errorf("types: unsupported JSON value %T", raw)
	}
}

// objectFromJSONMap is used only when the caller decoded with a plain
// map[string]interface{} and insertion order is not recoverable; callers
// that care about order should decode via DecodeOrdered instead.
func objectFromJSONMap(m map[string]interface{}) (*Value, error) {
	obj := NewObject()
	for k, raw := range m {
		cv, err := FromJSON(raw)
		if err != nil {
			return nil, err
		}
		obj.Set(k, cv)
	}
	return Obj(obj), nil
}

func numberFromJSON(n json.Number) (*Value, error) {
	s := string(n)
	if isIntLiteral(s) {
		bi := new(big.Int)
		if _, ok := bi.SetString(s, 10); ok {
			return IntFromBig(bi), nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("types: invalid JSON number %q: %w", s, err)
	}
	return Dec(d), nil
}

// isIntLiteral reports whether s (a json.Number's textual form) has no
// fractional part and no exponent, e.g. "42" or "-7" but not "4.0" or "4e2".
func isIntLiteral(s string) bool {
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

// ToJSON converts a Value into a plain interface{} tree suitable for
// encoding/json, collapsing Int/Dec into a single numeric representation
// (json.Number, so arbitrary precision survives the round trip) and
// rendering objects as *OrderedRawObject to preserve key order.
func ToJSON(v *Value) interface{} {
	if v == nil || v.Kind == KindNull {
		return nil
	}
	switch v.Kind {
	case KindBool:
		return v.B
	case KindInt:
		return json.Number(v.I.String())
	case KindDec:
		return json.Number(v.D.String())
	case KindStr:
		return v.S
	case KindArr:
		out := make([]interface{}, len(v.A))
		for i, e := range v.A {
			out[i] = ToJSON(e)
		}
		return out
	case KindObj:
		ro := &OrderedRawObject{Keys: append([]string(nil), v.O.Keys()...), Values: make(map[string]interface{}, v.O.Len())}
		for _, k := range ro.Keys {
			cv, _ := v.O.Get(k)
			ro.Values[k] = ToJSON(cv)
		}
		return ro
	default:
		return nil
	}
}

// OrderedRawObject mirrors a JSON object while preserving key order,
// both for decoding (see DecodeOrdered) and for MarshalJSON on the way out.
type OrderedRawObject struct {
	Keys   []string
	Values map[string]interface{}
}

func (o *OrderedRawObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeOrdered parses JSON text into an interface{} tree that preserves
// object key order (via *OrderedRawObject) and numeric precision (via
// json.Number), ready for FromJSON.
func DecodeOrdered(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tok interface{}
	if err := decodeValue(dec, &tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func decodeValue(dec *json.Decoder, out *interface{}) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			obj := &OrderedRawObject{Values: make(map[string]interface{})}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				var val interface{}
				if err := decodeValue(dec, &val); err != nil {
					return err
				}
				obj.Keys = append(obj.Keys, key)
				obj.Values[key] = val
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return err
			}
			*out = obj
			return nil
		}
		// '['
		var arr []interface{}
		for dec.More() {
			var val interface{}
			if err := decodeValue(dec, &val); err != nil {
				return err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return err
		}
		if arr == nil {
			arr = []interface{}{}
		}
		*out = arr
		return nil
	default:
		*out = tok
		return nil
	}
}
