package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients (the terminal runner) send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionStreamHandler pushes session snapshots to connected quiz takers.
type SessionStreamHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewSessionStreamHandler creates a new SessionStreamHandler.
func NewSessionStreamHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *SessionStreamHandler {
	return &SessionStreamHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_stream").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/quizzes/:slug/attempts/:attempt_id/session/stream?token=...
// Sends the current snapshot, then every change published for the attempt.
// The stream ends after a snapshot that is no longer active.
func (h *SessionStreamHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, err := parseAttemptID(c)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	slug := c.Param("slug")

	// Subscribe before the first read so no change can fall between them.
	sub, err := h.sessionService.Subscribe(c.Request.Context(), attemptID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	defer sub.Close()

	session, err := h.sessionService.Get(c.Request.Context(), slug, attemptID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID).
		Int64("attempt_id", attemptID).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	if err := ws.WriteTyped(conn, ws.SessionEvent{Event: ws.EventSession, Session: session}); err != nil {
		return
	}
	if session.Status != model.SessionStatusActive {
		closeNormal(conn)
		return
	}

	actions := make(chan ws.Action, 4)
	done := make(chan struct{})
	go readActions(conn, wsLog, actions, done)

	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	updates := sub.Channel()
	for {
		select {
		case <-done:
			return

		case <-c.Request.Context().Done():
			return

		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}

		case action := <-actions:
			switch action {
			case ws.ActionPing:
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			case ws.ActionSync:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				fresh, err := h.sessionService.Get(ctx, slug, attemptID, claims.UserID)
				cancel()
				if err != nil {
					wsLog.Warn().Err(err).Msg("Sync failed")
					ws.WriteError(conn, "sync failed")
					continue
				}
				if !h.forward(conn, fresh) {
					return
				}
			default:
				ws.WriteError(conn, "unknown action: "+string(action))
			}

		case msg, ok := <-updates:
			if !ok {
				return
			}
			var snapshot model.QuizSession
			if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed session snapshot")
				continue
			}
			if !h.forward(conn, &snapshot) {
				return
			}
		}
	}
}

// forward writes a snapshot and reports whether the stream should stay open.
func (h *SessionStreamHandler) forward(conn *websocket.Conn, session *model.QuizSession) bool {
	if err := ws.WriteTyped(conn, ws.SessionEvent{Event: ws.EventSession, Session: session}); err != nil {
		return false
	}
	if session.Status != model.SessionStatusActive {
		closeNormal(conn)
		return false
	}
	return true
}

func readActions(conn *websocket.Conn, log zerolog.Logger, actions chan<- ws.Action, done chan<- struct{}) {
	defer close(done)
	ws.KeepAlive(conn)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}
		select {
		case actions <- msg.Action:
		default:
			// Writer is busy; a dropped ping or sync is harmless.
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		time.Now().Add(ws.WriteWait))
}
