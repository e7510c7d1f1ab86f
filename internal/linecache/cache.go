package linecache

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/linebridge/internal/protocol"
)

// Line is one rendered line as last reported by the engine. A Line value
// is immutable once stored; slices are shared and must be treated as
// read-only by callers.
type Line struct {
	// Text is the line content, without a trailing newline.
	Text string

	// Cursors are byte offsets of cursors on this line.
	Cursors []int

	// Styles are the decoded style runs for this line.
	Styles []protocol.StyleSpan
}

// LineFromFragment builds a Line from a full (insert) fragment. Absent
// cursor or style fields decode to empty.
func LineFromFragment(frag protocol.Fragment) Line {
	l := Line{Text: frag.Text}
	if frag.Cursor != nil {
		l.Cursors = append([]int(nil), (*frag.Cursor)...)
	}
	if frag.Styles != nil {
		l.Styles = protocol.DecodeSpans(*frag.Styles)
	}
	return l
}

// mergeFragment merges an update fragment into a prior line. Text is
// always retained; cursor and styles are replaced only when the fragment
// carries them.
func mergeFragment(old Line, frag protocol.Fragment) Line {
	out := old
	if frag.Cursor != nil {
		out.Cursors = append([]int(nil), (*frag.Cursor)...)
	}
	if frag.Styles != nil {
		out.Styles = protocol.DecodeSpans(*frag.Styles)
	}
	return out
}

// Range is a half-open [Start, End) line index interval.
type Range struct {
	Start int
	End   int
}

// Config configures cache bounds.
type Config struct {
	// MaxLines bounds the number of concrete line slots held in memory.
	// Zero means unbounded. On overflow the entire cache resets to gaps:
	// a deliberate simplicity/performance tradeoff that accepts one full
	// re-fetch instead of fine-grained eviction, which would fragment
	// the run-length representation.
	MaxLines int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{MaxLines: 10000}
}

// Cache is the run-length triple of rendered lines for one view:
// (invalidBefore, lines-with-gaps, invalidAfter). A nil entry in lines
// is an interior gap. The triple is only ever replaced wholesale by
// ApplyUpdate; readers never observe a partial application.
type Cache struct {
	mu            sync.RWMutex
	invalidBefore int
	lines         []*Line
	invalidAfter  int

	maxLines int

	applies atomic.Uint64
	resets  atomic.Uint64
}

// New creates an empty cache.
func New(config Config) *Cache {
	return &Cache{maxLines: config.MaxLines}
}

// Height returns the total line count the engine has reported, valid or
// not. Height changes only through ApplyUpdate.
func (c *Cache) Height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heightLocked()
}

func (c *Cache) heightLocked() int {
	return c.invalidBefore + len(c.lines) + c.invalidAfter
}

// lineAtLocked returns the line at a global index, or nil for a gap or
// out-of-range index. Caller holds c.mu.
func (c *Cache) lineAtLocked(ix int) *Line {
	if ix < c.invalidBefore {
		return nil
	}
	if ix < c.invalidBefore+len(c.lines) {
		return c.lines[ix-c.invalidBefore]
	}
	return nil
}

// Get returns the line at a global index. The second return is false
// when the line is unknown; that is the expected outcome for a line that
// must be (re)requested, not an error.
func (c *Cache) Get(ix int) (Line, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l := c.lineAtLocked(ix)
	if l == nil {
		return Line{}, false
	}
	return *l, true
}

// builder accumulates the next triple while a delta is consumed.
type builder struct {
	invalidBefore int
	lines         []*Line
	invalidAfter  int
}

// pushGap appends n unknown slots: to the leading count while no
// concrete line has been written, otherwise to the trailing count.
func (b *builder) pushGap(n int) {
	if len(b.lines) == 0 {
		b.invalidBefore += n
	} else {
		b.invalidAfter += n
	}
}

// pushLine appends a concrete line, first flushing any pending trailing
// gap run into the concrete region as explicit holes.
func (b *builder) pushLine(l *Line) {
	for ; b.invalidAfter > 0; b.invalidAfter-- {
		b.lines = append(b.lines, nil)
	}
	b.lines = append(b.lines, l)
}

// ApplyUpdate rebuilds the triple from an engine delta. Operations are
// consumed left to right against a read cursor into the previous state;
// the new triple replaces the old one atomically.
func (c *Cache) ApplyUpdate(ops []protocol.Op) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b builder
	oldIx := 0

	for _, op := range ops {
		switch op.Kind {
		case protocol.OpInvalidate:
			b.pushGap(op.N)

		case protocol.OpInsert:
			n := op.N
			if n > len(op.Lines) {
				n = len(op.Lines)
			}
			for i := 0; i < n; i++ {
				l := LineFromFragment(op.Lines[i])
				b.pushLine(&l)
			}
			// A short lines array is a protocol defect; the uncovered
			// remainder becomes gaps so the height still adds up.
			if op.N > len(op.Lines) {
				b.pushGap(op.N - len(op.Lines))
			}

		case protocol.OpCopy, protocol.OpUpdate:
			for i := 0; i < op.N; i++ {
				old := c.lineAtLocked(oldIx)
				oldIx++
				if old == nil {
					// The pulled span straddles an unknown region; the
					// slot stays a gap. An update fragment cannot be
					// merged into text we do not have.
					b.pushGap(1)
					continue
				}
				if op.Kind == protocol.OpUpdate && i < len(op.Lines) {
					merged := mergeFragment(*old, op.Lines[i])
					b.pushLine(&merged)
				} else {
					cp := *old
					b.pushLine(&cp)
				}
			}

		case protocol.OpSkip:
			oldIx += op.N
		}
	}

	c.invalidBefore = b.invalidBefore
	c.lines = b.lines
	c.invalidAfter = b.invalidAfter
	c.applies.Add(1)

	if c.maxLines > 0 && len(c.lines) > c.maxLines {
		h := c.heightLocked()
		c.invalidBefore = h
		c.lines = nil
		c.invalidAfter = 0
		c.resets.Add(1)
	}
}

// MissingRanges returns the minimal, index-increasing, adjacency-merged
// set of unknown ranges within [first, min(last, Height())). Pure query.
func (c *Cache) MissingRanges(first, last int) []Range {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if first < 0 {
		first = 0
	}
	if h := c.heightLocked(); last > h {
		last = h
	}

	var out []Range
	for ix := first; ix < last; ix++ {
		if c.lineAtLocked(ix) != nil {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End == ix {
			out[n-1].End = ix + 1
		} else {
			out = append(out, Range{Start: ix, End: ix + 1})
		}
	}
	return out
}

// ValidCount returns the number of concrete lines currently held.
func (c *Cache) ValidCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, l := range c.lines {
		if l != nil {
			n++
		}
	}
	return n
}

// Stats reports cache counters.
type Stats struct {
	Height  int
	Valid   int
	Applies uint64
	Resets  uint64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Height:  c.Height(),
		Valid:   c.ValidCount(),
		Applies: c.applies.Load(),
		Resets:  c.resets.Load(),
	}
}
