package application

import "strings"

// Intent is the editor action a key event maps to.
type Intent string

const (
	IntentNone Intent = ""
	IntentUndo Intent = "undo"
	IntentRedo Intent = "redo"
)

// KeyEvent is a key press forwarded by a client.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
}

// IntentForKey maps Ctrl/Cmd+Z to undo and Ctrl/Cmd+Shift+Z or Ctrl/Cmd+Y to redo.
// Keys are matched case-insensitively since browsers report "Z" when shift is held.
func IntentForKey(ev KeyEvent) Intent {
	if !ev.Ctrl && !ev.Meta {
		return IntentNone
	}

	switch strings.ToLower(ev.Key) {
	case "z":
		if ev.Shift {
			return IntentRedo
		}
		return IntentUndo
	case "y":
		return IntentRedo
	}

	return IntentNone
}
