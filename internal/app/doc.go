// Package app wires the pieces of linebridge together: configuration,
// the engine process, the view manager, and the terminal frontend.
package app
