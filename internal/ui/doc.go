// Package ui is the tcell terminal frontend: it paints cached lines,
// translates key and mouse input into engine commands, and repaints on
// manager redraw signals.
package ui
