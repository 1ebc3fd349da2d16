package projection

import (
	"errors"

	"github.com/five82/termstack/internal/value"
)

// Projection holds the inputs of one page's view and the index sequence
// they produce. The filter stage is kept separately from sort and search so
// typing a query does not re-evaluate the filter.
type Projection struct {
	rows     value.Dataset
	filter   Predicate
	sortKey  Key
	desc     bool
	searcher *Searcher
	query    Query

	filtered  []int
	filterErr error
	visible   []int
	searchErr error
	stale     bool
}

// New returns an empty Projection that searches with searcher. A nil
// searcher searches every scalar of a row.
func New(searcher *Searcher) *Projection {
	if searcher == nil {
		searcher = NewSearcher()
	}
	return &Projection{searcher: searcher}
}

// SetRows replaces the dataset.
func (p *Projection) SetRows(rows value.Dataset) {
	p.rows = rows
	p.filtered = nil
	p.stale = true
}

// SetFilter replaces the filter. A nil predicate keeps every row.
func (p *Projection) SetFilter(pred Predicate) {
	p.filter = pred
	p.filtered = nil
	p.stale = true
}

// SetSort replaces the sort key. A nil key keeps filter order.
func (p *Projection) SetSort(key Key, desc bool) {
	p.sortKey = key
	p.desc = desc
	p.stale = true
}

// SetQuery replaces the search query.
func (p *Projection) SetQuery(q Query) {
	if q == p.query {
		return
	}
	p.query = q
	p.stale = true
}

func (p *Projection) Query() Query        { return p.query }
func (p *Projection) Rows() value.Dataset { return p.rows }
func (p *Projection) Searcher() *Searcher { return p.searcher }

// Indices returns the visible positions, recomputing stale stages. The
// error joins filter and search failures; the indices are still usable.
func (p *Projection) Indices() ([]int, error) {
	if p.stale || p.visible == nil {
		p.compute()
	}
	return p.visible, errors.Join(p.filterErr, p.searchErr)
}

// Len returns the number of visible rows.
func (p *Projection) Len() int {
	idx, _ := p.Indices()
	return len(idx)
}

// Row returns the row shown at a visible position.
func (p *Projection) Row(pos int) (value.Value, bool) {
	idx, _ := p.Indices()
	if pos < 0 || pos >= len(idx) {
		return value.Value{}, false
	}
	return p.rows[idx[pos]], true
}

func (p *Projection) compute() {
	if p.filtered == nil {
		if p.filter == nil {
			p.filtered, p.filterErr = All(len(p.rows)), nil
		} else {
			p.filtered, p.filterErr = Filter(p.rows, p.filter)
		}
	}
	idx := Sort(p.rows, append([]int(nil), p.filtered...), p.sortKey, p.desc)
	idx, p.searchErr = p.searcher.Search(p.rows, idx, p.query)
	if idx == nil {
		idx = []int{}
	}
	p.visible = idx
	p.stale = false
}
