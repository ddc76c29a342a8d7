// Package poller runs the fetch → interpret → notify → advance → sleep cycle.
//
// The loop is strictly sequential: one request in flight, no overlapping
// cycles. Component errors are caught once, at the cycle boundary, and
// reported to the chat as "system failure: ..." messages. Delivery failures
// are only logged. The pause after a cycle is deferred, so it runs on every
// path, including panics.
//
// An empty homework list is an idle tick: nothing is sent, the cursor still
// moves to the server's current_date, and the loop keeps polling.
package poller
