package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the header shows only
	// the current page instead of the breadcrumb.
	LayoutCompactWidth = 100

	// MinColumnWidth is the narrowest a table column is squeezed to.
	MinColumnWidth = 4
)

// Chrome rows around the content area: header, command bar and status line.
const chromeHeight = 3

// Timing constants.
const (
	// NoticeDuration is how long a notification stays visible.
	NoticeDuration = 4 * time.Second

	// DiagnosticsLines is how many log file lines the diagnostics overlay
	// shows.
	DiagnosticsLines = 200
)
