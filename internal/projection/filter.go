package projection

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

// Predicate reports whether a row is kept.
type Predicate func(row value.Value) (bool, error)

// Condition builds a Predicate that evaluates a boolean template expression
// with "value" and "row" bound to each row.
func Condition(engine *template.Engine, view *scope.View, expr string) Predicate {
	return func(row value.Value) (bool, error) {
		return engine.Evaluate(expr, view.With(row))
	}
}

// FilterSet returns the set of positions whose row satisfies pred. A row
// whose predicate fails is excluded; the first failure is returned along
// with the set.
func FilterSet(rows value.Dataset, pred Predicate) (*roaring.Bitmap, error) {
	set := roaring.New()
	var firstErr error
	for i, row := range rows {
		ok, err := pred(row)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("filter row %d: %w", i, err)
			}
			continue
		}
		if ok {
			set.Add(uint32(i))
		}
	}
	return set, firstErr
}

// Filter returns the positions of rows satisfying pred in dataset order.
func Filter(rows value.Dataset, pred Predicate) ([]int, error) {
	set, err := FilterSet(rows, pred)
	return Indices(set), err
}

// Complement returns the positions in [0, n) that are not in set.
func Complement(n int, set *roaring.Bitmap) *roaring.Bitmap {
	out := set.Clone()
	out.Flip(0, uint64(n))
	return out
}

// Indices converts a set to ascending positions.
func Indices(set *roaring.Bitmap) []int {
	out := make([]int, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// All returns every position of a dataset of length n.
func All(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
