package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/five82/termstack/internal/value"
)

func builtins(now func() time.Time) map[string]function.Function {
	return map[string]function.Function{
		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"trim":      stdlib.TrimSpaceFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"title":     stdlib.TitleFunc,
		"replace":   stdlib.ReplaceFunc,
		"substr":    stdlib.SubstrFunc,
		"format":    stdlib.FormatFunc,
		"abs":       stdlib.AbsoluteFunc,
		"floor":     stdlib.FloorFunc,
		"ceil":      stdlib.CeilFunc,
		"min":       stdlib.MinFunc,
		"max":       stdlib.MaxFunc,
		"coalesce":  stdlib.CoalesceFunc,
		"regex":     stdlib.RegexFunc,

		"default":        defaultFunc,
		"length":         lengthFunc,
		"join":           joinFunc,
		"split":          splitFunc,
		"contains":       containsFunc,
		"truncate":       truncateFunc,
		"first":          firstFunc,
		"last":           lastFunc,
		"json":           jsonFunc,
		"json_encode":    jsonFunc,
		"filesizeformat": filesizeFunc,
		"comma":          commaFunc,
		"status_color":   statusColorFunc,
		"timeago":        timeagoFunc(now),
		"timesince":      timesinceFunc(now),
	}
}

var dynamicReturn = func([]cty.Value) (cty.Type, error) { return cty.DynamicPseudoType, nil }

func anyParam(name string) function.Parameter {
	return function.Parameter{Name: name, Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true}
}

// stringOf renders a function argument the way it would appear in output.
func stringOf(v cty.Value) string {
	return fromCty(v).String()
}

var defaultFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value"), anyParam("fallback")},
	Type:   dynamicReturn,
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if args[0].IsNull() || !args[0].IsKnown() {
			return args[1], nil
		}
		return args[0], nil
	},
})

var lengthFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		v := fromCty(args[0])
		switch v.Kind() {
		case value.KindString:
			return cty.NumberIntVal(int64(utf8.RuneCountInString(v.AsString()))), nil
		default:
			return cty.NumberIntVal(int64(v.Len())), nil
		}
	},
})

var joinFunc = function.New(&function.Spec{
	Params:   []function.Parameter{anyParam("list")},
	VarParam: &function.Parameter{Name: "sep", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		sep := ", "
		if len(args) > 1 {
			sep = args[1].AsString()
		}
		v := fromCty(args[0])
		if v.Kind() != value.KindArray {
			return cty.StringVal(v.String()), nil
		}
		parts := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			parts[i] = item.String()
		}
		return cty.StringVal(strings.Join(parts, sep)), nil
	},
})

var splitFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value"), {Name: "sep", Type: cty.String}},
	Type:   function.StaticReturnType(cty.List(cty.String)),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		parts := strings.Split(stringOf(args[0]), args[1].AsString())
		vals := make([]cty.Value, len(parts))
		for i, p := range parts {
			vals[i] = cty.StringVal(p)
		}
		return cty.ListVal(vals), nil
	},
})

var containsFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("haystack"), anyParam("needle")},
	Type:   function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		hay, needle := fromCty(args[0]), fromCty(args[1])
		switch hay.Kind() {
		case value.KindArray:
			for _, item := range hay.Items() {
				if item.Equal(needle) {
					return cty.True, nil
				}
			}
			return cty.False, nil
		case value.KindObject:
			_, ok := hay.Get(needle.String())
			return cty.BoolVal(ok), nil
		default:
			return cty.BoolVal(strings.Contains(hay.String(), needle.String())), nil
		}
	},
})

var truncateFunc = function.New(&function.Spec{
	Params:   []function.Parameter{anyParam("value")},
	VarParam: &function.Parameter{Name: "length", Type: cty.Number},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		s := stringOf(args[0])
		limit := 255
		if len(args) > 1 {
			n, _ := args[1].AsBigFloat().Int64()
			limit = int(n)
		}
		r := []rune(s)
		if limit < 0 || len(r) <= limit {
			return cty.StringVal(s), nil
		}
		return cty.StringVal(string(r[:limit]) + "…"), nil
	},
})

func elementFunc(pick func(items []value.Value) value.Value) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{anyParam("list")},
		Type:   dynamicReturn,
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			items := fromCty(args[0]).Items()
			if len(items) == 0 {
				return cty.NullVal(cty.DynamicPseudoType), nil
			}
			return toCty(pick(items)), nil
		},
	})
}

var (
	firstFunc = elementFunc(func(items []value.Value) value.Value { return items[0] })
	lastFunc  = elementFunc(func(items []value.Value) value.Value { return items[len(items)-1] })
)

var jsonFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(fromCty(args[0]).JSON()), nil
	},
})

// numberArg accepts numbers and numeric strings.
func numberArg(v cty.Value) (float64, error) {
	val := fromCty(v)
	switch val.Kind() {
	case value.KindNumber:
		return val.AsNumber(), nil
	case value.KindString:
		return strconv.ParseFloat(strings.TrimSpace(val.AsString()), 64)
	default:
		return 0, fmt.Errorf("expected a number, got %s", val.Kind())
	}
}

var filesizeFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("bytes")},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		n, err := numberArg(args[0])
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		if n < 0 {
			n = 0
		}
		return cty.StringVal(humanize.IBytes(uint64(n))), nil
	},
})

var commaFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		n, err := numberArg(args[0])
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		return cty.StringVal(humanize.Commaf(n)), nil
	},
})

var statusColorFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("status")},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(StatusColor(stringOf(args[0]))), nil
	},
})

// StatusColor maps common status words to a color name.
func StatusColor(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "running", "active", "ready", "true", "succeeded", "healthy", "ok":
		return "green"
	case "pending", "starting", "waiting", "unknown":
		return "yellow"
	case "failed", "error", "unhealthy", "false", "terminated", "crashloopbackoff":
		return "red"
	case "completed":
		return "blue"
	default:
		return "white"
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseTimestamp accepts RFC 3339 strings, naive UTC timestamps and unix
// seconds.
func parseTimestamp(v cty.Value) (time.Time, error) {
	val := fromCty(v)
	if val.Kind() == value.KindNumber {
		return time.Unix(int64(val.AsNumber()), 0), nil
	}
	s := strings.TrimSpace(val.String())
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Age formats d as a compact age such as "42s", "5m", "3h" or "2d".
func Age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func timeagoFunc(now func() time.Time) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{anyParam("timestamp")},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			t, err := parseTimestamp(args[0])
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			return cty.StringVal(Age(now().Sub(t))), nil
		},
	})
}

func timesinceFunc(now func() time.Time) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{anyParam("timestamp")},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			t, err := parseTimestamp(args[0])
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			return cty.StringVal(humanize.RelTime(t, now(), "ago", "from now")), nil
		},
	})
}
