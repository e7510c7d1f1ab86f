// Package protocol defines the wire types exchanged with the text engine.
//
// Everything the engine sends arrives as loosely typed JSON. This package
// is the one place where that JSON is parsed into closed Go types; nothing
// downstream of it handles raw maps or json.RawMessage payloads. Update
// deltas in particular are decoded into a tagged operation union before
// they reach the line cache.
package protocol
