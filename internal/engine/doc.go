// Package engine owns the text-engine child process: its lifecycle, its
// transport, and the typed command surface the rest of the frontend uses
// to talk to it.
//
// The engine process holds the real document model; this package never
// interprets document content. It launches the process, runs the rpc
// transport over its standard streams, and serializes commands. Process
// exit is terminal for the session: there is no automatic restart; the
// exit surfaces on ExitChannel and the transport's Done channel.
package engine
