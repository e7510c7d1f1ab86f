package linecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/linebridge/internal/protocol"
)

func frag(text string) protocol.Fragment {
	return protocol.Fragment{Text: text}
}

func insOp(texts ...string) protocol.Op {
	lines := make([]protocol.Fragment, len(texts))
	for i, t := range texts {
		lines[i] = frag(t)
	}
	return protocol.Op{Kind: protocol.OpInsert, N: len(texts), Lines: lines}
}

func op(kind protocol.OpKind, n int) protocol.Op {
	return protocol.Op{Kind: kind, N: n}
}

// fullCache builds a cache where every line is concrete.
func fullCache(t *testing.T, texts ...string) *Cache {
	t.Helper()
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{insOp(texts...)})
	if c.Height() != len(texts) {
		t.Fatalf("setup height = %d, want %d", c.Height(), len(texts))
	}
	return c
}

func TestHeightInvariant(t *testing.T) {
	c := New(Config{})
	if c.Height() != 0 {
		t.Fatalf("empty height = %d, want 0", c.Height())
	}

	deltas := [][]protocol.Op{
		{op(protocol.OpInvalidate, 7)},
		{op(protocol.OpInvalidate, 2), insOp("a", "b"), op(protocol.OpInvalidate, 3)},
		{op(protocol.OpCopy, 7)},
		{op(protocol.OpSkip, 3), op(protocol.OpCopy, 4)},
	}
	wantHeights := []int{7, 7, 7, 4}

	for i, ops := range deltas {
		c.ApplyUpdate(ops)
		if c.Height() != wantHeights[i] {
			t.Errorf("after delta %d: height = %d, want %d", i, c.Height(), wantHeights[i])
		}
		// Height must equal the sum of valid and unknown slots.
		unknown := 0
		for _, r := range c.MissingRanges(0, c.Height()) {
			unknown += r.End - r.Start
		}
		if got := c.ValidCount() + unknown; got != c.Height() {
			t.Errorf("after delta %d: valid+unknown = %d, height = %d", i, got, c.Height())
		}
	}
}

func TestGetUnknownIsNotAnError(t *testing.T) {
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{op(protocol.OpInvalidate, 3)})

	if _, ok := c.Get(1); ok {
		t.Error("Get(1) valid, want unknown")
	}
	if _, ok := c.Get(-1); ok {
		t.Error("Get(-1) valid, want unknown")
	}
	if _, ok := c.Get(99); ok {
		t.Error("Get beyond height valid, want unknown")
	}
}

func TestCopyRoundTrip(t *testing.T) {
	texts := []string{"alpha", "beta", "gamma", "delta"}
	c := fullCache(t, texts...)

	c.ApplyUpdate([]protocol.Op{op(protocol.OpCopy, len(texts))})

	if c.Height() != len(texts) {
		t.Fatalf("height = %d, want %d", c.Height(), len(texts))
	}
	for i, want := range texts {
		got, ok := c.Get(i)
		if !ok {
			t.Fatalf("line %d unknown after copy", i)
		}
		if got.Text != want {
			t.Errorf("line %d = %q, want %q", i, got.Text, want)
		}
	}
}

func TestCopyStraddlesGapRegions(t *testing.T) {
	// Old state: 2 leading gaps, "a" and "b" concrete, 1 trailing gap.
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{
		op(protocol.OpInvalidate, 2),
		insOp("a", "b"),
		op(protocol.OpInvalidate, 1),
	})

	// A whole-cache copy pulls every sub-run through unchanged.
	c.ApplyUpdate([]protocol.Op{op(protocol.OpCopy, 5)})

	if c.Height() != 5 {
		t.Fatalf("height = %d, want 5", c.Height())
	}
	for _, ix := range []int{0, 1, 4} {
		if _, ok := c.Get(ix); ok {
			t.Errorf("line %d valid, want gap", ix)
		}
	}
	for ix, want := range map[int]string{2: "a", 3: "b"} {
		got, ok := c.Get(ix)
		if !ok || got.Text != want {
			t.Errorf("line %d = %q ok=%v, want %q", ix, got.Text, ok, want)
		}
	}
}

func TestIdempotentReapply(t *testing.T) {
	t.Run("insert-only delta", func(t *testing.T) {
		delta := []protocol.Op{insOp("x", "y", "z")}
		c := New(Config{})
		c.ApplyUpdate(delta)
		c.ApplyUpdate(delta)

		if c.Height() != 3 {
			t.Fatalf("height = %d, want 3", c.Height())
		}
		for i, want := range []string{"x", "y", "z"} {
			got, ok := c.Get(i)
			if !ok || got.Text != want {
				t.Errorf("line %d = %q ok=%v, want %q", i, got.Text, ok, want)
			}
		}
	})

	t.Run("whole-cache copy", func(t *testing.T) {
		c := fullCache(t, "x", "y", "z")
		delta := []protocol.Op{op(protocol.OpCopy, 3)}
		c.ApplyUpdate(delta)
		c.ApplyUpdate(delta)

		if c.Height() != 3 {
			t.Fatalf("height = %d, want 3", c.Height())
		}
		for i, want := range []string{"x", "y", "z"} {
			got, ok := c.Get(i)
			if !ok || got.Text != want {
				t.Errorf("line %d = %q ok=%v, want %q", i, got.Text, ok, want)
			}
		}
	})
}

func TestDeltaReplay(t *testing.T) {
	// Start from height 5 with all five lines valid.
	c := fullCache(t, "l0", "l1", "l2", "l3", "l4")

	// skip(2) advances the read cursor past l0 and l1; invalidate(1)
	// emits one gap without consuming; copy(2) then pulls l2 and l3.
	c.ApplyUpdate([]protocol.Op{
		op(protocol.OpSkip, 2),
		op(protocol.OpInvalidate, 1),
		op(protocol.OpCopy, 2),
	})

	if c.Height() != 3 {
		t.Fatalf("height = %d, want 3", c.Height())
	}
	if _, ok := c.Get(0); ok {
		t.Error("line 0 valid, want gap")
	}
	for ix, want := range map[int]string{1: "l2", 2: "l3"} {
		got, ok := c.Get(ix)
		if !ok || got.Text != want {
			t.Errorf("line %d = %q ok=%v, want %q", ix, got.Text, ok, want)
		}
	}
	// Exact triple: one leading gap, two concrete lines, nothing after.
	missing := c.MissingRanges(0, 3)
	if len(missing) != 1 || missing[0] != (Range{Start: 0, End: 1}) {
		t.Errorf("missing = %+v, want [{0 1}]", missing)
	}
}

func TestUpdateMergeSemantics(t *testing.T) {
	cursor1 := []int{1}
	styles := []int{0, 3, 2}
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{{
		Kind: protocol.OpInsert,
		N:    1,
		Lines: []protocol.Fragment{{
			Text:   "abc",
			Cursor: &cursor1,
			Styles: &styles,
		}},
	}})

	old, ok := c.Get(0)
	if !ok || old.Text != "abc" || len(old.Cursors) != 1 || old.Cursors[0] != 1 {
		t.Fatalf("setup line = %+v ok=%v", old, ok)
	}

	// Update supplying only a cursor: text and styles retained.
	cursor2 := []int{2}
	c.ApplyUpdate([]protocol.Op{{
		Kind:  protocol.OpUpdate,
		N:     1,
		Lines: []protocol.Fragment{{Cursor: &cursor2}},
	}})

	got, ok := c.Get(0)
	if !ok {
		t.Fatal("line 0 unknown after update")
	}
	if got.Text != "abc" {
		t.Errorf("text = %q, want %q (updates never replace text)", got.Text, "abc")
	}
	if len(got.Cursors) != 1 || got.Cursors[0] != 2 {
		t.Errorf("cursors = %v, want [2]", got.Cursors)
	}
	if len(got.Styles) != 1 || got.Styles[0] != (protocol.StyleSpan{Start: 0, Length: 3, StyleID: 2}) {
		t.Errorf("styles = %+v, want unchanged", got.Styles)
	}

	// Update with an entirely empty fragment keeps every field.
	c.ApplyUpdate([]protocol.Op{{
		Kind:  protocol.OpUpdate,
		N:     1,
		Lines: []protocol.Fragment{{}},
	}})
	got, _ = c.Get(0)
	if got.Text != "abc" || len(got.Cursors) != 1 || got.Cursors[0] != 2 || len(got.Styles) != 1 {
		t.Errorf("after empty update fragment: %+v", got)
	}
}

func TestGapCoalescing(t *testing.T) {
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{op(protocol.OpInvalidate, 100)})

	missing := c.MissingRanges(0, 100)
	if len(missing) != 1 {
		t.Fatalf("missing = %+v, want one coalesced range", missing)
	}
	if missing[0] != (Range{Start: 0, End: 100}) {
		t.Errorf("missing[0] = %+v, want {0 100}", missing[0])
	}
}

func TestMissingRanges(t *testing.T) {
	// Layout: gap gap "a" gap "b" gap gap  (height 7)
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{
		op(protocol.OpInvalidate, 2),
		insOp("a"),
		op(protocol.OpInvalidate, 1),
		insOp("b"),
		op(protocol.OpInvalidate, 2),
	})

	tests := []struct {
		name        string
		first, last int
		want        []Range
	}{
		{"whole cache", 0, 7, []Range{{0, 2}, {3, 4}, {5, 7}}},
		{"interior window", 2, 5, []Range{{3, 4}}},
		{"all valid window", 2, 3, nil},
		{"last clamped to height", 5, 50, []Range{{5, 7}}},
		{"empty window", 4, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.MissingRanges(tt.first, tt.last)
			if len(got) != len(tt.want) {
				t.Fatalf("ranges = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBoundedCacheResetsOnOverflow(t *testing.T) {
	c := New(Config{MaxLines: 4})
	c.ApplyUpdate([]protocol.Op{insOp("a", "b", "c", "d", "e")})

	if c.Height() != 5 {
		t.Fatalf("height = %d, want 5 (reset keeps height)", c.Height())
	}
	if c.ValidCount() != 0 {
		t.Errorf("valid = %d, want 0 after reset", c.ValidCount())
	}
	missing := c.MissingRanges(0, 5)
	if len(missing) != 1 || missing[0] != (Range{Start: 0, End: 5}) {
		t.Errorf("missing = %+v, want all-gaps", missing)
	}
	if got := c.Stats().Resets; got != 1 {
		t.Errorf("resets = %d, want 1", got)
	}
}

func TestInsertFlushesPendingGapRun(t *testing.T) {
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{
		insOp("a"),
		op(protocol.OpInvalidate, 2),
		insOp("b"),
	})

	if c.Height() != 4 {
		t.Fatalf("height = %d, want 4", c.Height())
	}
	for ix, want := range map[int]string{0: "a", 3: "b"} {
		got, ok := c.Get(ix)
		if !ok || got.Text != want {
			t.Errorf("line %d = %q ok=%v, want %q", ix, got.Text, ok, want)
		}
	}
	missing := c.MissingRanges(0, 4)
	if len(missing) != 1 || missing[0] != (Range{Start: 1, End: 3}) {
		t.Errorf("missing = %+v, want [{1 3}]", missing)
	}
}

func TestShortInsertTolerated(t *testing.T) {
	// N larger than the supplied lines array: remainder becomes gaps so
	// the height still adds up.
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{{
		Kind:  protocol.OpInsert,
		N:     3,
		Lines: []protocol.Fragment{frag("only")},
	}})

	if c.Height() != 3 {
		t.Fatalf("height = %d, want 3", c.Height())
	}
	if got, ok := c.Get(0); !ok || got.Text != "only" {
		t.Errorf("line 0 = %q ok=%v", got.Text, ok)
	}
	if c.ValidCount() != 1 {
		t.Errorf("valid = %d, want 1", c.ValidCount())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := fullCache(t, "a", "b", "c", "d", "e")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.ApplyUpdate([]protocol.Op{op(protocol.OpCopy, 5)})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				for ix := 0; ix < 5; ix++ {
					c.Get(ix)
				}
				c.MissingRanges(0, 5)
			}
		}()
	}
	wg.Wait()

	if c.Height() != 5 || c.ValidCount() != 5 {
		t.Errorf("height = %d valid = %d, want 5/5", c.Height(), c.ValidCount())
	}
}

func BenchmarkApplyUpdateCopy(b *testing.B) {
	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = fmt.Sprintf("line %d", i)
	}
	c := New(Config{})
	c.ApplyUpdate([]protocol.Op{insOp(texts...)})

	delta := []protocol.Op{op(protocol.OpCopy, 1000)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.ApplyUpdate(delta)
	}
}
