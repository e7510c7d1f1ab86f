package view

import (
	"sync"

	"github.com/dshills/linebridge/internal/linecache"
	"github.com/dshills/linebridge/internal/protocol"
)

// Fetcher issues line-range fetch notifications toward the engine.
// Fetches are fire-and-forget: the answer arrives later as an ordinary
// update, never as a direct response.
type Fetcher interface {
	RequestLines(viewID string, first, last int)
}

// Config configures view behavior.
type Config struct {
	// FetchChunk is the granularity fetch requests are widened to, to
	// amortize round trips under scrolling. Zero uses DefaultFetchChunk.
	FetchChunk int

	// CacheMaxLines bounds the line cache; see linecache.Config.
	CacheMaxLines int
}

// DefaultFetchChunk is the default fetch widening granularity.
const DefaultFetchChunk = 64

// View is the render-side state of one engine view: a line cache plus
// the visible window the renderer currently paints.
type View struct {
	id      string
	fetcher Fetcher
	cache   *linecache.Cache

	mu          sync.Mutex
	chunk       int
	first, last int
	scrollLine  int
	scrollCol   int

	// lastFetch remembers the spans of the previous FetchMissing so an
	// unchanged paint does not repeat identical requests. Cleared on
	// every applied update.
	lastFetch []linecache.Range
}

// New creates a view for the given engine-assigned id.
func New(id string, fetcher Fetcher, config Config) *View {
	chunk := config.FetchChunk
	if chunk <= 0 {
		chunk = DefaultFetchChunk
	}
	return &View{
		id:      id,
		fetcher: fetcher,
		cache:   linecache.New(linecache.Config{MaxLines: config.CacheMaxLines}),
		chunk:   chunk,
	}
}

// ID returns the engine-assigned view id.
func (v *View) ID() string {
	return v.id
}

// Line returns the cached line at a global index, if known.
func (v *View) Line(ix int) (linecache.Line, bool) {
	return v.cache.Get(ix)
}

// Height returns the engine-reported document height in lines.
func (v *View) Height() int {
	return v.cache.Height()
}

// Stats returns the underlying cache counters.
func (v *View) Stats() linecache.Stats {
	return v.cache.Stats()
}

// ApplyUpdate applies a delta-form update to the cache.
func (v *View) ApplyUpdate(u protocol.Update) {
	v.cache.ApplyUpdate(u.Ops)

	v.mu.Lock()
	v.lastFetch = nil
	v.mu.Unlock()
}

// ApplySnapshot applies a snapshot-form update by converting it to an
// equivalent delta: everything outside the carried window is unknown.
func (v *View) ApplySnapshot(n protocol.SetLinesNotification) {
	ops := make([]protocol.Op, 0, 3)
	if n.FirstLine > 0 {
		ops = append(ops, protocol.Op{Kind: protocol.OpInvalidate, N: n.FirstLine})
	}
	if len(n.Lines) > 0 {
		ops = append(ops, protocol.Op{Kind: protocol.OpInsert, N: len(n.Lines), Lines: n.Lines})
	}
	if trailing := n.Height - n.FirstLine - len(n.Lines); trailing > 0 {
		ops = append(ops, protocol.Op{Kind: protocol.OpInvalidate, N: trailing})
	}
	v.cache.ApplyUpdate(ops)

	v.mu.Lock()
	v.lastFetch = nil
	if n.ScrollTo != nil {
		v.scrollLine = n.ScrollTo[0]
		v.scrollCol = n.ScrollTo[1]
	}
	v.mu.Unlock()
}

// SetWindow records the visible window [first, last). The window is a
// renderer-owned cursor; the cache neither stores nor validates it.
func (v *View) SetWindow(first, last int) {
	if first < 0 {
		first = 0
	}
	if last < first {
		last = first
	}
	v.mu.Lock()
	v.first, v.last = first, last
	v.mu.Unlock()
}

// Window returns the current visible window.
func (v *View) Window() (first, last int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.first, v.last
}

// ScrollTo records the engine's scroll hint.
func (v *View) ScrollTo(line, col int) {
	v.mu.Lock()
	v.scrollLine, v.scrollCol = line, col
	v.mu.Unlock()
}

// ScrollHint returns the last engine scroll hint.
func (v *View) ScrollHint() (line, col int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollLine, v.scrollCol
}

// SetFetchChunk changes the fetch widening granularity. Takes effect on
// the next FetchMissing; the fetch-dedup memory is cleared since spans
// widened under the old chunk no longer compare.
func (v *View) SetFetchChunk(chunk int) {
	if chunk <= 0 {
		chunk = DefaultFetchChunk
	}
	v.mu.Lock()
	v.chunk = chunk
	v.lastFetch = nil
	v.mu.Unlock()
}

// FetchMissing requests every unknown range inside the visible window,
// widened to chunk granularity. It never blocks; painting proceeds with
// whatever is valid and the next update fills the gaps.
func (v *View) FetchMissing() {
	v.mu.Lock()
	first, last := v.first, v.last
	chunk := v.chunk
	prev := v.lastFetch
	v.mu.Unlock()

	missing := v.cache.MissingRanges(first, last)
	if len(missing) == 0 {
		return
	}

	spans := v.widen(missing, chunk)
	if equalRanges(spans, prev) {
		return
	}

	for _, r := range spans {
		v.fetcher.RequestLines(v.id, r.Start, r.End)
	}

	v.mu.Lock()
	v.lastFetch = spans
	v.mu.Unlock()
}

// widen rounds ranges out to chunk boundaries, clamps to the document
// height, and merges ranges that touch after widening.
func (v *View) widen(ranges []linecache.Range, chunk int) []linecache.Range {
	height := v.cache.Height()

	out := make([]linecache.Range, 0, len(ranges))
	for _, r := range ranges {
		start := (r.Start / chunk) * chunk
		end := ((r.End + chunk - 1) / chunk) * chunk
		if end > height {
			end = height
		}
		if start >= end {
			continue
		}
		if n := len(out); n > 0 && start <= out[n-1].End {
			if end > out[n-1].End {
				out[n-1].End = end
			}
			continue
		}
		out = append(out, linecache.Range{Start: start, End: end})
	}
	return out
}

func equalRanges(a, b []linecache.Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
