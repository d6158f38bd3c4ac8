package websocket

import "github.com/stemsi/exstem-quiz/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
	ActionSync Action = "sync"
)

// RequestEnvelope is the only client message shape; neither action carries a payload.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSession Event = "session"
	EventPong    Event = "pong"
)

// SessionEvent carries a full session snapshot. It is sent once on connect,
// on every server-side change and in reply to a sync action.
type SessionEvent struct {
	Event   Event              `json:"event"`
	Session *model.QuizSession `json:"session"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
