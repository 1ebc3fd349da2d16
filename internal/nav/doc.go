// Package nav implements page routing and the bounded navigation history.
//
// A Router picks the next page from a page's navigation rules. A Stack keeps
// one Frame per forward navigation, evicting the oldest once full. A
// Navigator ties both to the scope.Resolver: moving forward extracts the
// target's context, pushes the current page with its view state and a
// snapshot of the resolver, binds the selected row under the current page
// id, then switches pages. Back pops the frame and restores both the view
// state and the resolver snapshot exactly.
package nav
