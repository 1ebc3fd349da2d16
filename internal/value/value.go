package value

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a node of parsed response data. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *object
}

type object struct {
	keys   []string
	fields map[string]Value
}

// Field is a single key/value pair used to build objects in order.
type Field struct {
	Key   string
	Value Value
}

// Dataset is the ordered row sequence produced by one fetch.
type Dataset []Value

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Int(n int64) Value { return Value{kind: KindNumber, n: float64(n)} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// Object builds an object preserving field order. Later duplicates replace
// earlier values but keep the first position.
func Object(fields ...Field) Value {
	o := &object{keys: make([]string, 0, len(fields)), fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, dup := o.fields[f.Key]; !dup {
			o.keys = append(o.keys, f.Key)
		}
		o.fields[f.Key] = f.Value
	}
	return Value{kind: KindObject, obj: o}
}

// ObjectFromMap builds an object with keys in sorted order.
func ObjectFromMap(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := make(map[string]Value, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Value{kind: KindObject, obj: &object{keys: keys, fields: fields}}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsScalar() bool { return v.kind != KindArray && v.kind != KindObject }

// AsBool returns the boolean payload, false for any other kind.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsNumber returns the numeric payload, 0 for any other kind.
func (v Value) AsNumber() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// AsString returns the string payload, "" for any other kind.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Len reports the element count of arrays and objects, and the byte length of
// strings.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj.keys)
	case KindString:
		return len(v.s)
	default:
		return 0
	}
}

// Items returns the elements of an array, nil otherwise.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Keys returns object keys in insertion order, nil otherwise.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.obj.keys
}

// Get returns an object field.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj.fields[key]
	return f, ok
}

// Index returns an array element; negative indices count from the end.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray {
		return Value{}, false
	}
	if i < 0 {
		i += len(v.arr)
	}
	if i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Truthy follows template conventions: null, false, 0, "" and empty
// containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return len(v.obj.keys) > 0
	default:
		return false
	}
}

// String renders the value for display. Null is empty, containers are
// compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return v.s
	default:
		return v.JSON()
	}
}

// JSON encodes the value with sorted object keys.
func (v Value) JSON() string {
	return oj.JSON(v.ToAny(), &oj.Options{Sort: true})
}

// Pretty encodes the value as indented JSON.
func (v Value) Pretty() string {
	return oj.JSON(v.ToAny(), &oj.Options{Sort: true, Indent: 2})
}

// FormatNumber prints integral values without a fraction.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// Walk calls fn for every scalar leaf in document order.
func (v Value) Walk(fn func(Value)) {
	switch v.kind {
	case KindArray:
		for _, item := range v.arr {
			item.Walk(fn)
		}
	case KindObject:
		for _, k := range v.obj.keys {
			v.obj.fields[k].Walk(fn)
		}
	default:
		fn(v)
	}
}

// Equal reports deep equality. Object key order is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindArray:
		return slices.EqualFunc(v.arr, o.arr, Value.Equal)
	default:
		if len(v.obj.keys) != len(o.obj.keys) {
			return false
		}
		for k, fv := range v.obj.fields {
			ov, ok := o.obj.fields[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	}
}

// Compare orders two values for sorting. Values of different kinds order by
// kind: null, booleans, numbers, strings, arrays, then objects. Scalars
// compare natively within their kind; arrays and objects by their JSON form.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindNumber:
		return cmp.Compare(a.n, b.n)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(a.String(), b.String())
}

// ToAny converts to plain Go types (nil, bool, float64, string, []any,
// map[string]any).
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e15 {
			return int64(v.n)
		}
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj.keys))
		for k, f := range v.obj.fields {
			out[k] = f.ToAny()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoder output (ojg, yaml.v3, encoding/json) into a Value.
// Unknown types are rendered with fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case time.Time:
		return String(t.Format(time.RFC3339))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Array(items...)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return ObjectFromMap(fields)
	case map[any]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[fmt.Sprint(k)] = FromAny(item)
		}
		return ObjectFromMap(fields)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Array(items...)
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, s := range t {
			fields[k] = String(s)
		}
		return ObjectFromMap(fields)
	default:
		return String(fmt.Sprint(t))
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.JSON()), nil
}

// Parse decodes a JSON document.
func Parse(data []byte) (Value, error) {
	x, err := oj.Parse(data)
	if err != nil {
		return Value{}, err
	}
	return FromAny(x), nil
}
