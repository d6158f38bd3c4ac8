package quizclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-quiz/internal/model"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// StreamSession subscribes to pushed session snapshots for an attempt. The
// returned channel is closed when ctx is cancelled, the server ends the
// stream (after a non-active snapshot) or the connection drops.
func (c *Client) StreamSession(ctx context.Context, slug string, attemptID int64) (<-chan *model.QuizSession, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("%s/ws/v1/quizzes/%s/attempts/%d/session/stream", c.baseURL.Path, slug, attemptID)
	u.RawPath = ""
	q := url.Values{}
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial session stream: %w", err)
	}

	out := make(chan *model.QuizSession, 8)

	// Closing the connection is the only way to unblock ReadJSON.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})

	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		for {
			var ev struct {
				Event   ws.Event           `json:"event"`
				Session *model.QuizSession `json:"session"`
				Error   string             `json:"error"`
			}
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Session stream dropped")
				}
				return
			}

			switch ev.Event {
			case ws.EventSession:
				if ev.Session == nil {
					continue
				}
				select {
				case out <- ev.Session:
				case <-ctx.Done():
					return
				}
			case ws.EventError:
				c.log.Warn().Str("error", ev.Error).Msg("Session stream error event")
			}
		}
	}()

	return out, nil
}
