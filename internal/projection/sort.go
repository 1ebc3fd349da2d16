package projection

import (
	"slices"

	"github.com/five82/termstack/internal/extract"
	"github.com/five82/termstack/internal/value"
)

// Key extracts the value a row is sorted by.
type Key func(row value.Value) value.Value

// PathKey sorts by the first match of a path. Rows without a match sort as
// null, which comes first.
func PathKey(p *extract.Path) Key {
	return func(row value.Value) value.Value {
		v, _ := p.First(row)
		return v
	}
}

type keyed struct {
	idx int
	key value.Value
}

// Sort orders idx in place by key and returns it. Keys are extracted once
// per row. Equal keys keep their input order in both directions.
func Sort(rows value.Dataset, idx []int, key Key, desc bool) []int {
	if key == nil || len(idx) < 2 {
		return idx
	}
	pairs := make([]keyed, len(idx))
	for i, n := range idx {
		pairs[i] = keyed{idx: n, key: key(rows[n])}
	}
	slices.SortStableFunc(pairs, func(a, b keyed) int {
		c := value.Compare(a.key, b.key)
		if desc {
			return -c
		}
		return c
	})
	for i, p := range pairs {
		idx[i] = p.idx
	}
	return idx
}
