// Package logtail keeps the tail of line-oriented output.
//
// Buffer is a fixed-size ring used by streaming pages: new lines push out
// the oldest ones once the configured buffer size is reached, so a page that
// follows a chatty command holds bounded memory. Read uses the same ring to
// return the last lines of a file in one pass, which is how the diagnostics
// overlay shows the application's own log.
//
// DetectLevel classifies a line by the first severity word it contains so
// the UI can color ERROR, WARN, INFO and DEBUG lines differently.
package logtail
