package ui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"pkt.systems/pslog"

	"github.com/dshills/linebridge/internal/view"
)

// wheelLines is how far one wheel tick scrolls.
const wheelLines = 3

// UI runs the terminal frontend for a single view.
type UI struct {
	screen tcell.Screen
	mgr    *view.Manager
	cmds   Commands
	styles *StyleTable
	log    pslog.Logger

	active   *view.View
	filePath string

	top       int
	lastFirst int
	lastLast  int
	dragging  bool
}

// New creates a frontend painting the given view onto screen. The
// screen must not be initialized yet; Run owns its lifecycle. The style
// table is shared with whoever receives def_style notifications.
func New(ctx context.Context, screen tcell.Screen, mgr *view.Manager, cmds Commands, v *view.View, filePath string, styles *StyleTable) *UI {
	if styles == nil {
		styles = NewStyleTable(tcell.StyleDefault)
	}
	return &UI{
		screen:    screen,
		mgr:       mgr,
		cmds:      cmds,
		styles:    styles,
		log:       pslog.Ctx(ctx),
		active:    v,
		filePath:  filePath,
		lastFirst: -1,
		lastLast:  -1,
	}
}

// Run paints and processes input until the context is canceled, the
// engine exits, or the user quits. A user quit returns nil; an engine
// exit returns ErrEngineExited.
func (u *UI) Run(ctx context.Context, engineDone <-chan struct{}, mouse bool) error {
	if err := u.screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer u.screen.Fini()

	if mouse {
		u.screen.EnableMouse()
	}
	u.screen.EnablePaste()

	events := make(chan tcell.Event)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	u.draw()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-engineDone:
			u.log.Error("engine exited, shutting down frontend")
			return ErrEngineExited
		case <-u.mgr.Redraw():
			u.followScroll()
			u.draw()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !u.handleEvent(ev) {
				return nil
			}
		}
	}
}

func (u *UI) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		u.draw()
	case *tcell.EventKey:
		if !handleKey(u.cmds, u.active.ID(), ev) {
			return false
		}
	case *tcell.EventMouse:
		u.handleMouse(ev)
	}
	return true
}

func (u *UI) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	line := u.top + y
	mods := modMask(ev.Modifiers())

	switch {
	case ev.Buttons()&tcell.WheelUp != 0:
		u.scrollBy(-wheelLines)
	case ev.Buttons()&tcell.WheelDown != 0:
		u.scrollBy(wheelLines)
	case ev.Buttons()&tcell.Button1 != 0:
		if u.dragging {
			u.cmds.Drag(u.active.ID(), line, x, mods)
		} else {
			u.dragging = true
			u.cmds.Click(u.active.ID(), line, x, mods, 1)
		}
	default:
		u.dragging = false
	}
}

// scrollBy moves the window and repaints; the engine learns about the
// new window from the scroll notification inside draw.
func (u *UI) scrollBy(delta int) {
	_, h := u.screen.Size()
	max := u.active.Height() - u.viewRows(h)
	if max < 0 {
		max = 0
	}
	u.top += delta
	if u.top > max {
		u.top = max
	}
	if u.top < 0 {
		u.top = 0
	}
	u.draw()
}

// followScroll keeps the engine's scroll hint inside the window.
func (u *UI) followScroll() {
	line, _ := u.active.ScrollHint()
	_, h := u.screen.Size()
	rows := u.viewRows(h)
	if line < u.top {
		u.top = line
	} else if rows > 0 && line >= u.top+rows {
		u.top = line - rows + 1
	}
}

// viewRows is the document area height: everything above the status row.
func (u *UI) viewRows(screenRows int) int {
	if screenRows <= 1 {
		return 0
	}
	return screenRows - 1
}

func (u *UI) draw() {
	w, h := u.screen.Size()
	rows := u.viewRows(h)
	first, last := u.top, u.top+rows

	u.active.SetWindow(first, last)
	u.screen.Clear()
	u.screen.HideCursor()

	for row := 0; row < rows; row++ {
		u.drawLine(row, first+row, w)
	}
	u.drawStatus(w, h-1)
	u.screen.Show()

	// Fetch after paint so a slow engine never blocks a frame; the
	// answer triggers the next redraw.
	u.active.FetchMissing()

	if first != u.lastFirst || last != u.lastLast {
		u.lastFirst, u.lastLast = first, last
		u.cmds.Scroll(u.active.ID(), first, last)
	}
}

func (u *UI) drawLine(row, ix, width int) {
	line, ok := u.active.Line(ix)
	if !ok {
		if ix < u.active.Height() {
			u.screen.SetContent(0, row, '~', nil, u.styles.Base().Dim(true))
		}
		return
	}

	col := 0
	byteIx := 0
	span := 0
	for _, r := range line.Text {
		if col >= width {
			break
		}
		style := u.styles.Base()
		for span < len(line.Styles) && byteIx >= line.Styles[span].Start+line.Styles[span].Length {
			span++
		}
		if span < len(line.Styles) {
			s := line.Styles[span]
			if byteIx >= s.Start && byteIx < s.Start+s.Length {
				style = u.styles.Get(s.StyleID)
			}
		}
		if r == '\n' {
			break
		}
		u.screen.SetContent(col, row, r, nil, style)
		col++
		byteIx += len(string(r))
	}

	for _, cur := range line.Cursors {
		if cur <= len(line.Text) {
			u.screen.ShowCursor(byteToCol(line.Text, cur), row)
		}
	}
}

func (u *UI) drawStatus(width, row int) {
	if row < 0 {
		return
	}
	name := u.filePath
	if name == "" {
		name = "[untitled]"
	}
	hint, _ := u.active.ScrollHint()
	text := fmt.Sprintf(" %s  L%d/%d ", name, hint+1, u.active.Height())

	style := u.styles.Base().Reverse(true)
	col := 0
	for _, r := range text {
		if col >= width {
			break
		}
		u.screen.SetContent(col, row, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		u.screen.SetContent(col, row, ' ', nil, style)
	}
}

// byteToCol converts a byte offset in text to a screen column.
func byteToCol(text string, offset int) int {
	col := 0
	for ix := range text {
		if ix >= offset {
			break
		}
		col++
	}
	return col
}
