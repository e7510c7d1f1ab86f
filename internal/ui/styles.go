package ui

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/linebridge/internal/protocol"
)

// Reserved style ids assigned by the engine.
const (
	styleSelection = 0
	styleFind      = 1
)

// StyleTable maps engine style ids to tcell styles. Definitions arrive
// as def_style notifications before the first span that uses them.
type StyleTable struct {
	mu     sync.RWMutex
	styles map[int]tcell.Style
	base   tcell.Style
}

// NewStyleTable creates a style table with built-in selection and find
// styles. The engine may redefine them.
func NewStyleTable(base tcell.Style) *StyleTable {
	return &StyleTable{
		styles: map[int]tcell.Style{
			styleSelection: base.Reverse(true),
			styleFind:      base.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
		},
		base: base,
	}
}

// Define installs or replaces a style definition.
func (t *StyleTable) Define(def protocol.StyleDef) {
	style := t.base
	if def.FgColor != nil {
		style = style.Foreground(argbColor(*def.FgColor))
	}
	if def.BgColor != nil {
		style = style.Background(argbColor(*def.BgColor))
	}
	if def.Weight != nil && *def.Weight >= 700 {
		style = style.Bold(true)
	}
	if def.Italic {
		style = style.Italic(true)
	}
	if def.Underline {
		style = style.Underline(true)
	}

	t.mu.Lock()
	t.styles[def.ID] = style
	t.mu.Unlock()
}

// Get returns the style for an id, or the base style for unknown ids.
func (t *StyleTable) Get(id int) tcell.Style {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if style, ok := t.styles[id]; ok {
		return style
	}
	return t.base
}

// Base returns the default text style.
func (t *StyleTable) Base() tcell.Style {
	return t.base
}

// argbColor converts the engine's 32-bit ARGB color to a tcell color.
// The alpha byte is dropped; terminals do not blend.
func argbColor(argb uint32) tcell.Color {
	return tcell.NewRGBColor(
		int32((argb>>16)&0xff),
		int32((argb>>8)&0xff),
		int32(argb&0xff),
	)
}
