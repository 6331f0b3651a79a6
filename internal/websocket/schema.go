package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionNavigate Action = "navigate"
	ActionStage    Action = "stage"
	ActionCommit   Action = "commit"
	ActionMark     Action = "mark"
	ActionClear    Action = "clear"
	ActionZoom     Action = "zoom"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is a client intent. Only the field matching Action is read.
type Request struct {
	Action Action `json:"action"`
	Index  *int   `json:"index,omitempty"`  // navigate
	Option string `json:"option,omitempty"` // stage
	Level  int    `json:"level,omitempty"`  // zoom
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventExpired   Event = "expired"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// Message is the envelope of every server frame.
type Message struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

// ErrorData accompanies EventError.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeRequest parses a raw client frame.
func DecodeRequest(raw []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(raw, &req)
	return req, err
}
