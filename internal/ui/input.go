package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/linebridge/internal/protocol"
)

// Commands is the engine command surface the frontend drives. It is the
// notification side only: nothing here blocks on the engine.
type Commands interface {
	Insert(viewID, chars string)
	Edit(viewID, method string, params any)
	Scroll(viewID string, first, last int)
	Click(viewID string, line, col, mods, count int)
	Drag(viewID string, line, col, mods int)
	Save(viewID, filePath string)
}

// handleKey translates one key event into an engine edit. It returns
// false when the event requests quitting the frontend.
func handleKey(cmds Commands, viewID string, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyRune:
		cmds.Insert(viewID, string(ev.Rune()))
	case tcell.KeyEnter:
		cmds.Edit(viewID, protocol.EditInsertNewline, nil)
	case tcell.KeyTab:
		cmds.Insert(viewID, "\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		cmds.Edit(viewID, protocol.EditDeleteBack, nil)
	case tcell.KeyDelete:
		cmds.Edit(viewID, protocol.EditDeleteForward, nil)
	case tcell.KeyUp:
		cmds.Edit(viewID, protocol.EditMoveUp, nil)
	case tcell.KeyDown:
		cmds.Edit(viewID, protocol.EditMoveDown, nil)
	case tcell.KeyLeft:
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			cmds.Edit(viewID, protocol.EditMoveWordLeft, nil)
		} else {
			cmds.Edit(viewID, protocol.EditMoveLeft, nil)
		}
	case tcell.KeyRight:
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			cmds.Edit(viewID, protocol.EditMoveWordRight, nil)
		} else {
			cmds.Edit(viewID, protocol.EditMoveRight, nil)
		}
	case tcell.KeyPgUp:
		cmds.Edit(viewID, protocol.EditPageUp, nil)
	case tcell.KeyPgDn:
		cmds.Edit(viewID, protocol.EditPageDown, nil)
	case tcell.KeyCtrlZ:
		cmds.Edit(viewID, protocol.EditUndo, nil)
	case tcell.KeyCtrlY:
		cmds.Edit(viewID, protocol.EditRedo, nil)
	case tcell.KeyCtrlS:
		cmds.Save(viewID, "")
	case tcell.KeyCtrlQ, tcell.KeyEscape:
		return false
	}
	return true
}

// modMask converts tcell modifier flags to the engine's wire encoding.
func modMask(mods tcell.ModMask) int {
	var out int
	if mods&tcell.ModShift != 0 {
		out |= 1
	}
	if mods&tcell.ModCtrl != 0 {
		out |= 2
	}
	if mods&tcell.ModAlt != 0 {
		out |= 4
	}
	return out
}
