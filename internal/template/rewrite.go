package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	filterName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	keywordArg = regexp.MustCompile(`(?s)^[A-Za-z_][A-Za-z0-9_]*\s*=([^=].*)$`)
)

var wordOps = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
}

// rewrite turns pipe-style expressions into HCL: single-quoted strings become
// double-quoted, and/or/not become operators and "x | f(a)" becomes "f(x, a)".
func rewrite(src string) (string, error) {
	norm, err := normalize(src)
	if err != nil {
		return "", err
	}
	parts := splitTopLevel(norm, '|')
	out := strings.TrimSpace(parts[0])
	if out == "" && len(parts) > 1 {
		return "", fmt.Errorf("pipe without input")
	}
	for _, part := range parts[1:] {
		name, args, err := parseFilter(strings.TrimSpace(part))
		if err != nil {
			return "", err
		}
		if args == "" {
			out = name + "(" + out + ")"
		} else {
			out = name + "(" + out + ", " + args + ")"
		}
	}
	return out, nil
}

func parseFilter(f string) (string, string, error) {
	name, args := f, ""
	if open := strings.IndexByte(f, '('); open >= 0 {
		if !strings.HasSuffix(f, ")") {
			return "", "", fmt.Errorf("malformed filter %q", f)
		}
		name = strings.TrimSpace(f[:open])
		args = f[open+1 : len(f)-1]
	}
	if !filterName.MatchString(name) {
		return "", "", fmt.Errorf("malformed filter %q", f)
	}
	if strings.TrimSpace(args) == "" {
		return name, "", nil
	}
	list := splitTopLevel(args, ',')
	for i, a := range list {
		a = strings.TrimSpace(a)
		if m := keywordArg.FindStringSubmatch(a); m != nil {
			a = strings.TrimSpace(m[1])
		}
		list[i] = a
	}
	return name, strings.Join(list, ", "), nil
}

func normalize(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src) + 8)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end, err := scanString(src, i)
			if err != nil {
				return "", err
			}
			writeString(&b, src[i+1:end-1], c)
			i = end
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if op, ok := wordOps[word]; ok && (i == 0 || src[i-1] != '.') {
				word = op
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// scanString returns the index just past the closing quote of the string
// starting at src[start].
func scanString(src string, start int) (int, error) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string in %q", src)
}

// writeString emits body as an HCL double-quoted literal with template
// sequences escaped.
func writeString(b *strings.Builder, body string, quote byte) {
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			if quote == '\'' && body[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(body[i+1])
			}
			i++
		case c == '"' && quote == '\'':
			b.WriteString(`\"`)
		case (c == '$' || c == '%') && i+1 < len(body) && body[i+1] == '{':
			b.WriteByte(c)
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

// splitTopLevel splits on sep outside strings and brackets. A doubled '|'
// is the or operator and never splits.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			end, err := scanString(s, i)
			if err != nil {
				return append(parts, s[last:])
			}
			i = end - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '|':
			if sep == '|' && i+1 < len(s) && s[i+1] == '|' {
				i++
				continue
			}
			fallthrough
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}
