// Package app is the composition root of termstack.
//
// Run loads the configuration document, opens the log file, builds the
// template engine, context resolver, cache and provider pipeline, starts the
// cache janitor and hands everything to the ui package. It blocks until the
// user quits or the context is cancelled.
//
// # Logging
//
// The terminal belongs to the UI, so the slog logger writes to a file
// (DefaultLogPath unless overridden). Only warnings and errors are written
// unless Options.Verbose is set. The diagnostics overlay (D) shows the tail of
// the same file.
//
// # Validate mode
//
// With Options.Validate, Run stops after loading the configuration: graph
// errors are returned and warnings are printed.
//
// # Cache janitor
//
// Lookups ignore expired cache entries but leave them in place. A background
// janitor purges them every minute, or every cache TTL when that is shorter (but
// never more often than every 5 seconds).
package app
