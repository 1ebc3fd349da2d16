package provider

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/extract"
	"github.com/five82/termstack/internal/value"
)

const maxParseDetail = 200

// Parse converts raw output according to format. Auto tries JSON, then YAML
// mappings and sequences; bare scalars that only YAML accepts are rejected
// so plain text output is reported rather than silently wrapped.
func Parse(raw []byte, format config.Format) (value.Value, error) {
	switch format {
	case config.FormatText:
		return value.String(strings.TrimRight(string(raw), "\r\n")), nil
	case config.FormatLines:
		return lines(raw), nil
	case config.FormatJSON:
		v, err := value.Parse(raw)
		if err != nil {
			return value.Value{}, parseError("json", raw, err)
		}
		return v, nil
	case config.FormatYAML:
		v, err := parseYAML(raw)
		if err != nil {
			return value.Value{}, parseError("yaml", raw, err)
		}
		return v, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return value.Array(), nil
	}
	if v, err := value.Parse(trimmed); err == nil {
		return v, nil
	}
	v, err := parseYAML(trimmed)
	if err == nil && (v.Kind() == value.KindObject || v.Kind() == value.KindArray) {
		return v, nil
	}
	if err == nil {
		err = errNotStructured
	}
	return value.Value{}, parseError("structured data", raw, err)
}

var errNotStructured = errors.New("output is a bare scalar")

func parseError(what string, raw []byte, err error) error {
	return &FetchError{
		Kind:   KindParseFailed,
		Detail: "expected " + what + ", got " + quoteExcerpt(raw),
		Err:    err,
	}
}

func quoteExcerpt(raw []byte) string {
	s := excerpt(raw, maxParseDetail)
	if s == "" {
		return "empty output"
	}
	return "\"" + s + "\""
}

func parseYAML(raw []byte) (value.Value, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return value.Value{}, err
	}
	return value.FromAny(doc), nil
}

func lines(raw []byte) value.Value {
	var out []value.Value
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			out = append(out, value.String(line))
		}
	}
	return value.Array(out...)
}

// Items applies the items path. Without a path an array document yields its
// elements, null yields nothing and any other document is a single row.
func Items(doc value.Value, path string) (value.Dataset, error) {
	if strings.TrimSpace(path) == "" {
		switch doc.Kind() {
		case value.KindArray:
			return value.Dataset(doc.Items()), nil
		case value.KindNull:
			return value.Dataset{}, nil
		default:
			return value.Dataset{doc}, nil
		}
	}
	p, err := extract.Compile(path)
	if err != nil {
		return nil, &FetchError{Kind: KindExtraction, Source: path, Err: err}
	}
	rows := p.Rows(doc)
	if rows == nil {
		rows = value.Dataset{}
	}
	return rows, nil
}
