package protocol

import "encoding/json"

// OpKind tags one update operation.
type OpKind int

const (
	// OpInvalidate marks n lines as unknown.
	OpInvalidate OpKind = iota

	// OpInsert introduces n new lines that did not exist before.
	OpInsert

	// OpCopy carries n lines over from the previous state unchanged.
	OpCopy

	// OpUpdate merges n fragments into the corresponding previous lines.
	OpUpdate

	// OpSkip consumes n previous lines without producing output.
	OpSkip
)

// String returns the wire name of the operation.
func (k OpKind) String() string {
	switch k {
	case OpInvalidate:
		return "invalidate"
	case OpInsert:
		return "ins"
	case OpCopy:
		return "copy"
	case OpUpdate:
		return "update"
	case OpSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Op is one operation of an update delta.
type Op struct {
	Kind  OpKind
	N     int
	Lines []Fragment
}

// Fragment is one line as supplied by the engine. Cursor and Styles are
// pointers so an absent field (keep the previous value on update) is
// distinguishable from a present-but-empty one.
type Fragment struct {
	Text   string `json:"text"`
	Cursor *[]int `json:"cursor,omitempty"`
	Styles *[]int `json:"styles,omitempty"`
}

// StyleSpan is one decoded style run within a line.
type StyleSpan struct {
	Start   int
	Length  int
	StyleID int
}

// DecodeSpans expands the engine's flat style triples into spans.
// Triples are [rel_start, length, style_id]; rel_start is relative to
// the end of the previous span. Short trailing groups are dropped.
func DecodeSpans(flat []int) []StyleSpan {
	if len(flat) < 3 {
		return nil
	}
	spans := make([]StyleSpan, 0, len(flat)/3)
	pos := 0
	for i := 0; i+2 < len(flat); i += 3 {
		start := pos + flat[i]
		length := flat[i+1]
		if length < 0 {
			continue
		}
		spans = append(spans, StyleSpan{
			Start:   start,
			Length:  length,
			StyleID: flat[i+2],
		})
		pos = start + length
	}
	return spans
}

// Update is a decoded delta: an ordered operation sequence that fully
// replaces the previous cache state when applied.
type Update struct {
	Ops []Op

	// Pristine reports whether the document matches its on-disk state.
	Pristine bool

	// Skipped counts wire operations dropped during decode (unknown op
	// tag, negative count). The caller logs them; the delta still
	// applies with the remaining operations, accepting possible drift
	// until the next full update.
	Skipped int
}

// wireOp mirrors the JSON shape of one operation.
type wireOp struct {
	Op    string     `json:"op"`
	N     int        `json:"n"`
	Lines []Fragment `json:"lines,omitempty"`
}

// wireUpdate mirrors the JSON shape of the update payload.
type wireUpdate struct {
	Ops      []wireOp `json:"ops"`
	Pristine bool     `json:"pristine"`
}

// UnmarshalJSON decodes the wire form, translating op tags into the
// closed union and dropping operations it cannot interpret.
func (u *Update) UnmarshalJSON(data []byte) error {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	u.Ops = make([]Op, 0, len(w.Ops))
	u.Pristine = w.Pristine
	u.Skipped = 0

	for _, op := range w.Ops {
		kind, ok := opKind(op.Op)
		if !ok || op.N < 0 {
			u.Skipped++
			continue
		}
		u.Ops = append(u.Ops, Op{Kind: kind, N: op.N, Lines: op.Lines})
	}
	return nil
}

// MarshalJSON emits the wire form. Used by tests and kept symmetric with
// UnmarshalJSON.
func (u Update) MarshalJSON() ([]byte, error) {
	w := wireUpdate{Pristine: u.Pristine, Ops: make([]wireOp, len(u.Ops))}
	for i, op := range u.Ops {
		w.Ops[i] = wireOp{Op: op.Kind.String(), N: op.N, Lines: op.Lines}
	}
	return json.Marshal(w)
}

func opKind(tag string) (OpKind, bool) {
	switch tag {
	case "invalidate":
		return OpInvalidate, true
	case "ins":
		return OpInsert, true
	case "copy":
		return OpCopy, true
	case "update":
		return OpUpdate, true
	case "skip":
		return OpSkip, true
	default:
		return 0, false
	}
}
