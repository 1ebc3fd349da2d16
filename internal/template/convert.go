package template

import (
	"math"

	"github.com/zclconf/go-cty/cty"

	"github.com/five82/termstack/internal/value"
)

func toCty(v value.Value) cty.Value {
	switch v.Kind() {
	case value.KindBool:
		return cty.BoolVal(v.AsBool())
	case value.KindNumber:
		n := v.AsNumber()
		if math.IsNaN(n) {
			return cty.NullVal(cty.Number)
		}
		return cty.NumberFloatVal(n)
	case value.KindString:
		return cty.StringVal(v.AsString())
	case value.KindArray:
		items := v.Items()
		if len(items) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, len(items))
		for i, item := range items {
			vals[i] = toCty(item)
		}
		return cty.TupleVal(vals)
	case value.KindObject:
		keys := v.Keys()
		if len(keys) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(keys))
		for _, k := range keys {
			f, _ := v.Get(k)
			attrs[k] = toCty(f)
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

func fromCty(v cty.Value) value.Value {
	v, _ = v.Unmark()
	if v.IsNull() || !v.IsKnown() {
		return value.Null()
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return value.String(v.AsString())
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return value.Number(f)
	case ty == cty.Bool:
		return value.Bool(v.True())
	case ty.IsTupleType(), ty.IsListType(), ty.IsSetType():
		items := make([]value.Value, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			items = append(items, fromCty(ev))
		}
		return value.Array(items...)
	case ty.IsObjectType(), ty.IsMapType():
		fields := make(map[string]value.Value, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			fields[k.AsString()] = fromCty(ev)
		}
		return value.ObjectFromMap(fields)
	}
	return value.Null()
}

// display is the string form a cty value takes inside rendered text.
func display(v cty.Value) string {
	return fromCty(v).String()
}
