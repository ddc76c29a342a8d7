// Package homework interprets review-status payloads: it validates the
// decoded response, picks the most recent homework record, and maps its
// status to the display text sent to the chat.
//
// All failures are reported as *Error with a Kind, so the polling loop can
// catch them in one place.
package homework
