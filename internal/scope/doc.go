// Package scope resolves the variables visible to templates and conditions.
//
// Names are looked up through layers, highest precedence first:
//
//	value, row       the row (and cell) currently being rendered
//	bindings         named extractions from next.context / actions[].context
//	page results     the row selected on an ancestor page, keyed by page id
//	globals          the globals section of the configuration
//	env              process environment, as an object under "env"
//	row fields       fields of the current row, addressable bare
//
// The mutable layers are copy-on-write. Freeze returns an immutable View that
// fetch goroutines can read while the UI keeps binding.
package scope
