// Package notifier delivers chat messages for the polling loop.
//
// Delivery is synchronous: one message at a time, paced by a token-bucket
// limiter so bursts of failure reports stay under Telegram's flood limits.
// Every failure comes back as a homework.Error of kind DeliveryFailure; the
// caller decides whether to log it or not.
//
// # Dedup
//
// With a positive DedupWindow, a text identical to one delivered within the
// window is suppressed. This keeps a failing endpoint from posting the same
// failure report every cycle.
//
// # History
//
// The service keeps a small in-memory history of delivered messages.
package notifier
