// Package ui renders a dashboard configuration as a Bubble Tea program.
//
// Each page of the configuration becomes a table, logs or text view. The
// Model owns one pageView per visited page, holding its projection (filter,
// search and sort over the fetched rows), cursor and viewport. Fetches run as
// tea.Cmds through the provider pipeline and report back with fetchedMsg;
// results are applied through state.Store tickets so that an answer for a
// page the user already left is dropped.
//
// # Layout
//
//   - Header: app name, breadcrumb of the navigation stack, data freshness
//   - Command bar: key hints for the active view and page actions
//   - Page box: the table, log lines or text document
//   - Status line: row counts, search and sort state, notifications
//
// # Navigation
//
// enter follows the page's routing rule for the selected row and esc returns.
// Going back shows the rows the page had when it was left and refreshes them
// in the background, so the previous view appears instantly.
//
// # Refresh
//
// Pages with a refresh interval re-fetch on a timer. Consecutive failures
// double the delay up to maxBackoff. Timers carry the page epoch and are
// ignored once the page has been refetched or left.
package ui
