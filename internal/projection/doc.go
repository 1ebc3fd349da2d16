// Package projection computes the visible rows of a dataset as a sequence
// of indices. Rows are never copied; every stage consumes and produces
// []int positions into the dataset.
//
// Stages run in a fixed order: filter, then sort, then search. Filter keeps
// dataset order and is backed by a roaring bitmap so its complement is
// cheap. Sort is stable. Search matches a query against the displayed text
// of each row, optionally restricted to one column with "%Column% term",
// or as a regular expression when the query starts with "!".
package projection
