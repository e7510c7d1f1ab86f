// Package rpc implements the framed, bidirectional message transport to
// the text engine child process.
//
// Framing is newline-delimited JSON: one object per line. Requests carry
// {method, params, id?}; responses carry {id, result} or {id, error}; an
// absent id marks a notification. Three call shapes are exposed:
// fire-and-forget Notify, callback-based RequestAsync, and blocking Call.
//
// One goroutine drains the engine's output stream. Incoming chunks are
// reassembled into frames with no alignment assumption; each complete
// frame is dispatched fully, in arrival order, before the next is parsed.
// Responses are routed by correlation id to their pending callback; all
// other frames go to the generic inbound handler. Call must never be
// invoked from that handler or any code running on the receive goroutine:
// the response it waits for could only be delivered by the goroutine that
// is blocked waiting.
package rpc
