// Package linecache holds a sparse, partially valid mirror of the lines
// the engine has rendered for one view.
//
// The cache is a run-length triple: a count of unknown lines before the
// concrete region, the concrete region itself (with possible interior
// gaps), and a count of unknown lines after it. It is rebuilt by applying
// engine update deltas and answers point and missing-range queries. The
// package performs no I/O and holds no reference to the transport; it is
// driven entirely by data handed to it.
package linecache
