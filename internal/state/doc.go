// Package state tracks the runtime data of each page.
//
// Fetches run in their own goroutines and report back to the UI goroutine.
// Before starting one, the UI asks the Store for a Ticket with Begin. When
// the result arrives it is handed to Apply, which drops it unless the ticket
// is still the newest one issued for the page and the page is still active.
// Manual refreshes and scheduled ticks go through the same path, so the last
// request always wins.
//
// Begin cancels the previous in-flight fetch of the same page, and SetActive
// cancels the fetches of every other page, so leaving a page never leaves a
// process or request running for it.
//
// On failure the previous rows are kept and the error recorded, with a
// consecutive failure count used for refresh backoff.
package state
