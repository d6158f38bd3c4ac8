package attempt

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"golang.org/x/sync/singleflight"
)

// ErrIndexRegression is returned for an index write behind the last known
// server position. The write is never sent.
var ErrIndexRegression = errors.New("attempt: question index may not move backward")

// SessionAPI is the slice of the quiz API that manages sessions.
type SessionAPI interface {
	StartSession(ctx context.Context, slug string, attemptID int64) (*model.QuizSession, error)
	GetSession(ctx context.Context, slug string, attemptID int64) (*model.QuizSession, error)
	UpdateSession(ctx context.Context, slug string, attemptID int64, req model.UpdateSessionRequest) (*model.QuizSession, error)
}

// SessionHook caches the last session snapshot seen for a quiz and derives
// timing from it. It is safe for concurrent use.
type SessionHook struct {
	api  SessionAPI
	slug string
	now  func() time.Time

	flight singleflight.Group

	mu        sync.RWMutex
	snapshot  *model.QuizSession
	fetchedAt time.Time
}

// HookOption configures a SessionHook.
type HookOption func(*SessionHook)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HookOption {
	return func(h *SessionHook) { h.now = now }
}

func NewSessionHook(api SessionAPI, slug string, opts ...HookOption) *SessionHook {
	h := &SessionHook{api: api, slug: slug, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StartSession opens the session of an attempt.
func (h *SessionHook) StartSession(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	s, err := h.api.StartSession(ctx, h.slug, attemptID)
	if err != nil {
		return nil, err
	}
	h.store(s, true)
	return clone(s), nil
}

// GetSession fetches a fresh snapshot. Concurrent calls for the same attempt
// share one request.
func (h *SessionHook) GetSession(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	v, err, _ := h.flight.Do(strconv.FormatInt(attemptID, 10), func() (interface{}, error) {
		s, err := h.api.GetSession(ctx, h.slug, attemptID)
		if err != nil {
			return nil, err
		}
		h.store(s, false)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(*model.QuizSession)), nil
}

// UpdateSession writes the question pointer forward. The server clamps the
// value; the returned snapshot is what it kept.
func (h *SessionHook) UpdateSession(ctx context.Context, attemptID int64, index int) (*model.QuizSession, error) {
	req := model.UpdateSessionRequest{CurrentQuestionIndex: &index}

	h.mu.RLock()
	if s := h.snapshot; s != nil && s.AttemptID == attemptID {
		if index < s.CurrentQuestionIndex {
			h.mu.RUnlock()
			return nil, ErrIndexRegression
		}
		req.SessionToken = s.PublicID
	}
	h.mu.RUnlock()

	s, err := h.api.UpdateSession(ctx, h.slug, attemptID, req)
	if err != nil {
		return nil, err
	}
	h.store(s, true)
	return clone(s), nil
}

// Heartbeat reports activity without moving the question pointer. The
// server adds the elapsed time to the session's time spent.
func (h *SessionHook) Heartbeat(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	var req model.UpdateSessionRequest
	h.mu.RLock()
	if s := h.snapshot; s != nil && s.AttemptID == attemptID {
		req.SessionToken = s.PublicID
	}
	h.mu.RUnlock()

	s, err := h.api.UpdateSession(ctx, h.slug, attemptID, req)
	if err != nil {
		return nil, err
	}
	h.store(s, false)
	return clone(s), nil
}

// Apply records a snapshot obtained elsewhere (a pushed update). It returns
// false if the snapshot is older than the one already held.
func (h *SessionHook) Apply(s *model.QuizSession) bool {
	if s == nil {
		return false
	}
	return h.store(s, false)
}

// Snapshot returns a copy of the last snapshot, or nil.
func (h *SessionHook) Snapshot() *model.QuizSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return clone(h.snapshot)
}

// RemainingTime is the snapshot's remaining time minus the time elapsed
// since it was fetched, clamped at zero. timed is false for untimed quizzes
// and before any snapshot has been seen.
func (h *SessionHook) RemainingTime(now time.Time) (remaining time.Duration, timed bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.snapshot
	if s == nil || s.RemainingSeconds == nil {
		return 0, false
	}
	remaining = time.Duration(*s.RemainingSeconds)*time.Second - now.Sub(h.fetchedAt)
	return max(remaining, 0), true
}

// IsExpired is true once the server marked the session expired or the local
// countdown has run out. A completed session is never expired.
func (h *SessionHook) IsExpired(now time.Time) bool {
	h.mu.RLock()
	s := h.snapshot
	h.mu.RUnlock()

	if s == nil {
		return false
	}
	switch s.Status {
	case model.SessionStatusExpired:
		return true
	case model.SessionStatusCompleted:
		return false
	}
	if s.IsExpired {
		return true
	}
	remaining, timed := h.RemainingTime(now)
	return timed && remaining <= 0
}

// Reset forgets the cached snapshot.
func (h *SessionHook) Reset() {
	h.mu.Lock()
	h.snapshot = nil
	h.fetchedAt = time.Time{}
	h.mu.Unlock()
}

// store keeps s unless it is older than the held snapshot of the same
// attempt. Responses to our own writes always win.
func (h *SessionHook) store(s *model.QuizSession, force bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur := h.snapshot; !force && cur != nil && cur.AttemptID == s.AttemptID &&
		!s.ServerTime.IsZero() && s.ServerTime.Before(cur.ServerTime) {
		return false
	}
	h.snapshot = clone(s)
	h.fetchedAt = h.now()
	return true
}

func clone(s *model.QuizSession) *model.QuizSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.RemainingSeconds != nil {
		v := *s.RemainingSeconds
		c.RemainingSeconds = &v
	}
	if s.ExpiresAt != nil {
		v := *s.ExpiresAt
		c.ExpiresAt = &v
	}
	if s.TimeLimitMinutes != nil {
		v := *s.TimeLimitMinutes
		c.TimeLimitMinutes = &v
	}
	return &c
}
