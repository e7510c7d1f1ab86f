// Package view coordinates per-view render state between the engine and
// the presentation layer.
//
// A View owns one line cache and the visible window the renderer is
// painting. It applies inbound update deltas, answers line queries, and
// turns missing-range queries into fire-and-forget fetch notifications.
// The Manager routes inbound engine messages to views by id and signals
// the presentation layer through a coalescing redraw channel, so frame
// dispatch on the receive goroutine never waits for painting.
package view
