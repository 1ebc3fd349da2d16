package projection

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/five82/termstack/internal/value"
)

// RegexMarker prefixes a query that is a regular expression.
const RegexMarker = "!"

const regexCacheSize = 64

// Column is a searchable column: its display name and how its cell is shown.
type Column struct {
	Name string
	Text func(row value.Value) string
}

// Query is a search request.
type Query struct {
	Text          string
	CaseSensitive bool
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool {
	t := strings.TrimSpace(q.Text)
	return t == "" || t == RegexMarker
}

// Searcher matches rows against queries. It keeps compiled regular
// expressions across calls and is not safe for concurrent use.
type Searcher struct {
	columns []Column
	regexes *lru.Cache[string, *regexp.Regexp]
}

// NewSearcher returns a Searcher over the given columns. Without columns the
// searchable text of a row is every scalar it contains.
func NewSearcher(columns ...Column) *Searcher {
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &Searcher{columns: columns, regexes: cache}
}

// Columns returns the searchable columns.
func (s *Searcher) Columns() []Column { return s.columns }

// Search keeps the positions in idx whose row matches q, preserving order.
// An invalid regular expression leaves idx unchanged and is returned as the
// error.
func (s *Searcher) Search(rows value.Dataset, idx []int, q Query) ([]int, error) {
	if q.Empty() {
		return idx, nil
	}
	col, term := s.target(q.Text)
	match, err := s.matcher(term, q.CaseSensitive)
	if err != nil {
		return idx, err
	}
	out := make([]int, 0, len(idx))
	for _, n := range idx {
		var hay string
		if col != nil {
			hay = col.Text(rows[n])
		} else {
			hay = s.Haystack(rows[n])
		}
		if match(hay) {
			out = append(out, n)
		}
	}
	return out, nil
}

// target splits "%Column% term" into the named column and the term. An
// unknown column or a malformed prefix searches the whole query across the
// row.
func (s *Searcher) target(text string) (*Column, string) {
	if !strings.HasPrefix(text, "%") {
		return nil, text
	}
	end := strings.Index(text[1:], "%")
	if end < 0 {
		return nil, text
	}
	name := strings.TrimSpace(text[1 : 1+end])
	rest := text[2+end:]
	if !strings.HasPrefix(rest, " ") {
		return nil, text
	}
	term := strings.TrimSpace(rest)
	if term == "" {
		return nil, text
	}
	for i := range s.columns {
		if strings.EqualFold(s.columns[i].Name, name) {
			return &s.columns[i], term
		}
	}
	return nil, text
}

func (s *Searcher) matcher(term string, caseSensitive bool) (func(string) bool, error) {
	if pattern, ok := strings.CutPrefix(term, RegexMarker); ok {
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, ok := s.regexes.Get(pattern)
		if !ok {
			var err error
			re, err = regexp.Compile(pattern)
			if err != nil {
				return nil, err
			}
			s.regexes.Add(pattern, re)
		}
		return re.MatchString, nil
	}
	if caseSensitive {
		return func(h string) bool { return strings.Contains(h, term) }, nil
	}
	needle := strings.ToLower(term)
	return func(h string) bool { return strings.Contains(strings.ToLower(h), needle) }, nil
}

// Haystack returns the searchable text of a row: displayed column values
// joined by spaces, or every scalar in the row when there are no columns.
func (s *Searcher) Haystack(row value.Value) string {
	var b strings.Builder
	if len(s.columns) > 0 {
		for i, c := range s.columns {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(c.Text(row))
		}
		return b.String()
	}
	row.Walk(func(v value.Value) {
		if v.IsNull() {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v.String())
	})
	return b.String()
}
