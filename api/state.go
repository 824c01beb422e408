package api

type Snapshot struct {
	SourceID  string `json:"source_id,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Preview   string `json:"preview,omitempty"`
	Result    string `json:"result,omitempty"`
	Failure   string `json:"failure,omitempty"`
	View      string `json:"view"`
	CreatedAt string `json:"created_at,omitempty"`
}

type State struct {
	Snapshot Snapshot `json:"snapshot"`
	Cursor   int      `json:"cursor"`
	Length   int      `json:"length"`
	CanUndo  bool     `json:"can_undo"`
	CanRedo  bool     `json:"can_redo"`
	Busy     bool     `json:"busy"`
	Phase    string   `json:"phase"`
	Intent   string   `json:"intent,omitempty"`
}

type KeyEvent struct {
	Key   string `json:"key" binding:"required"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

type Error struct {
	Error string `json:"error"`
}
