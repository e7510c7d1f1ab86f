package protocol

import "encoding/json"

// Method names sent to the engine.
const (
	MethodClientStarted = "client_started"
	MethodNewView       = "new_view"
	MethodCloseView     = "close_view"
	MethodEdit          = "edit"
	MethodRequestLines  = "request_lines"
	MethodSetTheme      = "set_theme"
)

// Method names received from the engine.
const (
	MethodUpdate          = "update"
	MethodSetLines        = "set_lines"
	MethodScrollTo        = "scroll_to"
	MethodDefStyle        = "def_style"
	MethodAlert           = "alert"
	MethodConfigChanged   = "config_changed"
	MethodAvailableThemes = "available_themes"
)

// Edit sub-methods carried inside an "edit" notification.
const (
	EditInsert        = "insert"
	EditInsertNewline = "insert_newline"
	EditDeleteBack    = "delete_backward"
	EditDeleteForward = "delete_forward"
	EditMoveUp        = "move_up"
	EditMoveDown      = "move_down"
	EditMoveLeft      = "move_left"
	EditMoveRight     = "move_right"
	EditMoveWordLeft  = "move_word_left"
	EditMoveWordRight = "move_word_right"
	EditPageUp        = "page_up"
	EditPageDown      = "page_down"
	EditScroll        = "scroll"
	EditClick         = "click"
	EditDrag          = "drag"
	EditUndo          = "undo"
	EditRedo          = "redo"
	EditGotoLine      = "goto_line"
	EditSave          = "save"
)

// ClientStartedParams is the one-time handshake sent after launch.
type ClientStartedParams struct {
	ClientID  string `json:"client_id"`
	ConfigDir string `json:"config_dir,omitempty"`
}

// NewViewParams requests a new view, optionally backed by a file.
type NewViewParams struct {
	FilePath string `json:"file_path,omitempty"`
}

// CloseViewParams releases a view.
type CloseViewParams struct {
	ViewID string `json:"view_id"`
}

// EditParams wraps a view-scoped edit command.
type EditParams struct {
	ViewID string `json:"view_id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// InsertParams carries inserted text.
type InsertParams struct {
	Chars string `json:"chars"`
}

// PositionParams carries a line/column pair.
type PositionParams struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// ClickParams carries a mouse gesture position.
type ClickParams struct {
	Line  int `json:"line"`
	Col   int `json:"col"`
	Mods  int `json:"mods"`
	Count int `json:"count"`
}

// ScrollParams reports the visible line window after a scroll.
type ScrollParams struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// SaveParams saves a view's contents by path. All file I/O is the
// engine's; the frontend only names the destination.
type SaveParams struct {
	FilePath string `json:"file_path"`
}

// SetThemeParams selects the engine-side color theme. The engine
// answers with a fresh def_style table.
type SetThemeParams struct {
	ThemeName string `json:"theme_name"`
}

// RequestLinesParams asks the engine to (re)send a contiguous line span.
// The answer arrives later as an ordinary update notification, never as
// a direct response.
type RequestLinesParams struct {
	ViewID string `json:"view_id"`
	First  int    `json:"first"`
	Last   int    `json:"last"`
}

// UpdateNotification is the delta-form render update for one view.
type UpdateNotification struct {
	ViewID string `json:"view_id"`
	Update Update `json:"update"`
}

// SetLinesNotification is the snapshot-form update used by older engine
// generations: a full window of lines at a known total height.
type SetLinesNotification struct {
	ViewID    string     `json:"view_id"`
	FirstLine int        `json:"first_line"`
	Height    int        `json:"height"`
	Lines     []Fragment `json:"lines"`
	ScrollTo  *[2]int    `json:"scrollto,omitempty"`
}

// ScrollToNotification asks the frontend to bring a position into view.
type ScrollToNotification struct {
	ViewID string `json:"view_id"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
}

// StyleDef defines one entry of the engine's style table. Fields are
// pointers where absence means "unset" rather than zero.
type StyleDef struct {
	ID        int     `json:"id"`
	FgColor   *uint32 `json:"fg_color,omitempty"`
	BgColor   *uint32 `json:"bg_color,omitempty"`
	Weight    *int    `json:"weight,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Underline bool    `json:"underline,omitempty"`
}

// AlertNotification carries a user-visible message from the engine.
type AlertNotification struct {
	Msg string `json:"msg"`
}

// DecodeParams unmarshals notification params into a typed struct.
func DecodeParams(params json.RawMessage, v any) error {
	return json.Unmarshal(params, v)
}
