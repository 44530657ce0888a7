// Package sse provides an incremental Server-Sent Events frame parser and a
// chunk-based tee reader for use in the devlens gateway and its stream client.
//
// The parser is resumable: a byte stream may be fed in arbitrarily split
// chunks (including splits in the middle of a "\n\n" delimiter) and yields the
// same frames as a single call with the concatenated input.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Frame is a single named event extracted from a stream, delimited by a blank
// line in the upstream byte stream.
type Frame struct {
	// Event is the value of the last "event:" field of the record.
	Event string

	// Data is the contents of all "data:" lines of the record, in order,
	// joined with "\n".
	Data string

	// ID is the last "id:" field of the record, if any.
	ID string
}
