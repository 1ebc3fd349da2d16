// Package provider turns a page's data descriptor into rows.
//
// A fetch runs in fixed steps:
//
//  1. Render every templated field of the descriptor against the caller's
//     scope (Resolve).
//  2. Hash the rendered descriptor into a signature (Signature).
//  3. Return the cached dataset for (page, signature) if it is still live.
//  4. Otherwise join or start the single in-flight execution for that key,
//     so concurrent callers share one process spawn or HTTP request.
//  5. Execute: a process with a hard timeout, an HTTP request with a hard
//     timeout, or a composite of named sources fetched in parallel.
//  6. Parse the output (JSON, YAML, text or lines) into a value tree.
//  7. Apply the items path. Zero matches is an empty dataset.
//  8. Cache successes only.
//
// Failures are *FetchError values classified as timeout, source failure,
// parse failure or invalid extraction path. Use errors.Is with ErrTimeout,
// ErrSourceFailed, ErrParseFailed and ErrExtraction to branch on them.
//
// Stream sources are not fetched; Stream starts them and delivers lines on
// a channel until the context is cancelled.
package provider
