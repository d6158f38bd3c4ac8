package model

import "time"

// SessionStatus enumerates quiz session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusExpired   SessionStatus = "expired"
)

// QuizSession is the live, resumable state of an in-progress attempt.
// The server owns it; clients cache the last snapshot they saw.
type QuizSession struct {
	ID                   int64         `json:"id"`
	PublicID             string        `json:"public_id"`
	AttemptID            int64         `json:"attempt_id"`
	QuizID               int64         `json:"quiz_id"`
	UserID               string        `json:"-"`
	Status               SessionStatus `json:"status"`
	TimeLimitMinutes     *int          `json:"time_limit_minutes"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	TotalQuestions       int           `json:"total_questions"`
	TimeSpentSeconds     int           `json:"time_spent_seconds"`
	StartedAt            time.Time     `json:"started_at"`
	ExpiresAt            *time.Time    `json:"expires_at,omitempty"`
	LastActivityAt       time.Time     `json:"last_activity_at"`

	// Computed on every read against the server clock.
	RemainingSeconds *int      `json:"remaining_seconds"`
	IsExpired        bool      `json:"is_expired"`
	ServerTime       time.Time `json:"server_time"`
}

// Deadline returns the moment the session runs out of time, or nil if untimed.
func (s *QuizSession) Deadline() *time.Time {
	if s.ExpiresAt != nil {
		return s.ExpiresAt
	}
	if s.TimeLimitMinutes == nil || *s.TimeLimitMinutes <= 0 {
		return nil
	}
	d := s.StartedAt.Add(time.Duration(*s.TimeLimitMinutes) * time.Minute)
	return &d
}

// Stamp fills the computed timing fields relative to now.
func (s *QuizSession) Stamp(now time.Time) {
	s.ServerTime = now
	deadline := s.Deadline()
	if deadline == nil {
		s.RemainingSeconds = nil
		s.IsExpired = s.Status == SessionStatusExpired
		return
	}
	remaining := int(deadline.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	s.RemainingSeconds = &remaining
	switch s.Status {
	case SessionStatusCompleted:
		s.IsExpired = false
	case SessionStatusExpired:
		s.IsExpired = true
	default:
		s.IsExpired = remaining == 0
	}
}

// UpdateSessionRequest is the payload for advancing a session, or a bare
// heartbeat when CurrentQuestionIndex is nil. DeltaSpentSeconds reports time
// spent since the previous update; without it the server measures the gap.
type UpdateSessionRequest struct {
	SessionToken         string `json:"session_token" binding:"omitempty,uuid"`
	CurrentQuestionIndex *int   `json:"current_question_index" binding:"omitempty,min=0"`
	DeltaSpentSeconds    *int   `json:"delta_spent_seconds,omitempty" binding:"omitempty,min=0"`
}

// ResolvedSession maps a public session token to its attempt.
type ResolvedSession struct {
	AttemptID int64        `json:"attempt_id"`
	Session   *QuizSession `json:"session"`
}
