// Package types holds the value model, AST node shapes, and error types
// shared by the lexer, parser, and evaluator.
package types

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDec
	KindStr
	KindArr
	KindObj
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt, KindDec:
		return "number"
	case KindStr:
		return "string"
	case KindArr:
		return "array"
	case KindObj:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the evaluator's native representation: JSON plus a split
// between exact integers and arbitrary-precision decimals.
type Value struct {
	Kind Kind
	B    bool
	I    *big.Int
	D    decimal.Decimal
	S    string
	A    []*Value
	O    *Object
}

// Null is the singleton null value. Callers must not mutate it.
var Null = &Value{Kind: KindNull}

// True and False are the singleton booleans.
var (
	True  = &Value{Kind: KindBool, B: true}
	False = &Value{Kind: KindBool, B: false}
)

func Bool(b bool) *Value {
	if b {
		return True
	}
	return False
}

func Int(i int64) *Value {
	return &Value{Kind: KindInt, I: big.NewInt(i)}
}

func IntFromBig(i *big.Int) *Value {
	return &Value{Kind: KindInt, I: i}
}

func Dec(d decimal.Decimal) *Value {
	return &Value{Kind: KindDec, D: d}
}

func Str(s string) *Value {
	return &Value{Kind: KindStr, S: s}
}

func Arr(vs []*Value) *Value {
	if vs == nil {
		vs = []*Value{}
	}
	return &Value{Kind: KindArr, A: vs}
}

func Obj(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{Kind: KindObj, O: o}
}

func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

func (v *Value) IsNumeric() bool { return v.Kind == KindInt || v.Kind == KindDec }

// AsDecimal returns the value's numeric content promoted to decimal.Decimal.
// Panics if v is not numeric; callers must check IsNumeric first.
func (v *Value) AsDecimal() decimal.Decimal {
	switch v.Kind {
	case KindInt:
		return decimal.NewFromBigInt(v.I, 0)
	case KindDec:
		return v.D
	default:
		panic("types: AsDecimal on non-numeric value")
	}
}

// Truthy implements the language's truthiness rule: Null and Bool(false)
// are false; everything else -- including 0, 0.0, "", [], {} -- is true.
func (v *Value) Truthy() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

// Exists implements the three-class emptiness predicate used by the `?`
// accessor and the Existence AccessorOp: false for missing/null/empty
// array/empty string, true otherwise.
func (v *Value) Exists() bool {
	if v == nil || v.Kind == KindNull {
		return false
	}
	switch v.Kind {
	case KindArr:
		return len(v.A) > 0
	case KindStr:
		return len(v.S) > 0
	default:
		return true
	}
}

// TypeName returns the language-level type name used by the type() method.
func (v *Value) TypeName() string { return v.Kind.String() }

// Object is a string-keyed map preserving insertion order, used for both
// AST object literals and evaluated values.
type Object struct {
	keys   []string
	values map[string]*Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

func (o *Object) Len() int { return len(o.keys) }

func (o *Object) Get(key string) (*Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set inserts or overwrites key, preserving the original insertion position
// on overwrite.
func (o *Object) Set(key string, v *Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key if present, returning whether it was present.
func (o *Object) Delete(key string) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns keys in insertion order. Callers must not mutate the slice.
func (o *Object) Keys() []string { return o.keys }

// Clone returns a shallow copy: same *Value pointers, independent key order.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]*Value, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

// Equal implements structural equality used by ==, !=, and .unique().
func Equal(a, b *Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.IsNumeric() && b.IsNumeric() {
		return a.AsDecimal().Equal(b.AsDecimal())
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.B == b.B
	case KindStr:
		return a.S == b.S
	case KindArr:
		if len(a.A) != len(b.A) {
			return false
		}
		for i := range a.A {
			if !Equal(a.A[i], b.A[i]) {
				return false
			}
		}
		return true
	case KindObj:
		if a.O.Len() != b.O.Len() {
			return false
		}
		for _, k := range a.O.Keys() {
			av, _ := a.O.Get(k)
			bv, ok := b.O.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare defines order comparisons for < > <= >=: numbers by decimal
// value, strings lexicographically on Unicode scalar values. Returns an
// error for incompatible types.
func Compare(a, b *Value) (int, error) {
	if a.IsNumeric() && b.IsNumeric() {
		return a.AsDecimal().Cmp(b.AsDecimal()), nil
	}
	if a.Kind == KindStr && b.Kind == KindStr {
		return strings.Compare(a.S, b.S), nil
	}
	return 0, fmt.Errorf("cannot compare %s and %s", a.TypeName(), b.TypeName())
}

// SortKeyLess implements the numeric-then-string total order used by
// sort()/sort_desc(): all numbers sort before every non-number, strings
// compare by byte order, and any other pair is incomparable and sorts as
// equal (stable).
func SortKeyLess(a, b *Value) bool {
	aNum, bNum := a.IsNumeric(), b.IsNumeric()
	if aNum && bNum {
		return a.AsDecimal().Cmp(b.AsDecimal()) < 0
	}
	if aNum != bNum {
		return aNum
	}
	if a.Kind == KindStr && b.Kind == KindStr {
		return a.S < b.S
	}
	return false
}

// StringifyKey converts a value used as a computed object key into its
// string-key form: strings pass through; numbers render via their decimal
// text form; other kinds are rejected by the caller before reaching here.
func StringifyKey(v *Value) string {
	switch v.Kind {
	case KindStr:
		return v.S
	case KindInt:
		return v.I.String()
	case KindDec:
		return v.D.String()
	default:
		return ""
	}
}

// NormalizedIndex resolves a (possibly negative) array index against a
// length, JSONata/Python-style: negative counts from the end. The second
// return is false when the resolved index is out of range.
func NormalizedIndex(i int64, length int) (int, bool) {
	n := i
	if n < 0 {
		n += int64(length)
	}
	if n < 0 || n >= int64(length) {
		return 0, false
	}
	return int(n), true
}

// QuoteString renders s as a Clove/JSON double-quoted string literal,
// for debug printing.
func QuoteString(s string) string { return strconv.Quote(s) }
