package engine

import (
	"context"

	"github.com/dshills/linebridge/internal/protocol"
)

// NewView asks the engine to create a view, optionally opening a file,
// and blocks for the assigned view id. File reading happens inside the
// engine; only the path crosses the boundary.
func (e *Engine) NewView(ctx context.Context, filePath string) (string, error) {
	if e.Status() != StatusRunning {
		return "", ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	var viewID string
	params := protocol.NewViewParams{FilePath: filePath}
	if err := e.transport.Call(ctx, protocol.MethodNewView, params, &viewID); err != nil {
		return "", err
	}
	return viewID, nil
}

// SetTheme asks the engine to switch color themes. The engine responds
// with def_style notifications redefining the style table.
func (e *Engine) SetTheme(theme string) {
	e.notify(protocol.MethodSetTheme, protocol.SetThemeParams{ThemeName: theme})
}

// CloseView releases a view.
func (e *Engine) CloseView(viewID string) {
	e.notify(protocol.MethodCloseView, protocol.CloseViewParams{ViewID: viewID})
}

// RequestLines asks for a contiguous line span [first, last). The answer
// arrives later as an ordinary update notification.
func (e *Engine) RequestLines(viewID string, first, last int) {
	e.notify(protocol.MethodRequestLines, protocol.RequestLinesParams{
		ViewID: viewID,
		First:  first,
		Last:   last,
	})
}

// Edit sends one view-scoped edit command. Edit commands are
// notifications: failures are logged and the frontend relies on the next
// update to reconverge.
func (e *Engine) Edit(viewID, method string, params any) {
	e.notify(protocol.MethodEdit, protocol.EditParams{
		ViewID: viewID,
		Method: method,
		Params: params,
	})
}

// Insert inserts text at the cursor(s).
func (e *Engine) Insert(viewID, chars string) {
	e.Edit(viewID, protocol.EditInsert, protocol.InsertParams{Chars: chars})
}

// InsertNewline breaks the line at the cursor(s).
func (e *Engine) InsertNewline(viewID string) {
	e.Edit(viewID, protocol.EditInsertNewline, nil)
}

// DeleteBackward deletes before the cursor(s).
func (e *Engine) DeleteBackward(viewID string) {
	e.Edit(viewID, protocol.EditDeleteBack, nil)
}

// DeleteForward deletes after the cursor(s).
func (e *Engine) DeleteForward(viewID string) {
	e.Edit(viewID, protocol.EditDeleteForward, nil)
}

// Move sends a cursor movement command (one of the protocol.EditMove*
// constants, or page up/down).
func (e *Engine) Move(viewID, method string) {
	e.Edit(viewID, method, nil)
}

// Scroll reports the visible line window after a scroll.
func (e *Engine) Scroll(viewID string, first, last int) {
	e.Edit(viewID, protocol.EditScroll, protocol.ScrollParams{First: first, Last: last})
}

// Click reports a mouse press.
func (e *Engine) Click(viewID string, line, col, mods, count int) {
	e.Edit(viewID, protocol.EditClick, protocol.ClickParams{
		Line: line, Col: col, Mods: mods, Count: count,
	})
}

// Drag reports a mouse drag to a new position.
func (e *Engine) Drag(viewID string, line, col, mods int) {
	e.Edit(viewID, protocol.EditDrag, protocol.ClickParams{Line: line, Col: col, Mods: mods})
}

// Undo reverts the last edit group.
func (e *Engine) Undo(viewID string) {
	e.Edit(viewID, protocol.EditUndo, nil)
}

// Redo reapplies the last undone edit group.
func (e *Engine) Redo(viewID string) {
	e.Edit(viewID, protocol.EditRedo, nil)
}

// GotoLine moves the cursor to a line.
func (e *Engine) GotoLine(viewID string, line int) {
	e.Edit(viewID, protocol.EditGotoLine, protocol.PositionParams{Line: line})
}

// Save writes a view's contents to a path. The write happens inside the
// engine.
func (e *Engine) Save(viewID, filePath string) {
	e.Edit(viewID, protocol.EditSave, protocol.SaveParams{FilePath: filePath})
}

// notify sends a notification, logging failures. Notifications fail
// silently by contract; the log entry is their only trace.
func (e *Engine) notify(method string, params any) {
	if e.Status() != StatusRunning {
		e.log.Warn("dropping notification, engine not running", "method", method)
		return
	}
	if err := e.transport.Notify(method, params); err != nil {
		e.log.Warn("notification failed", "method", method, "err", err)
	}
}
