// Package value defines the row model every other termstack package works on.
//
// A Value is a closed variant over six kinds (null, bool, number, string,
// array, object). Provider output is parsed into this tree once; path
// extraction, context binding, projection and rendering all read it without
// converting back to host types on the hot path.
//
// Values are immutable after construction. Accessors such as Items and Keys
// hand out the backing slices, so callers must treat them as read-only.
package value
