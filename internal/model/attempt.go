package model

import "time"

// AttemptStatus enumerates quiz attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// Attempt is one user's instance of taking a quiz.
type Attempt struct {
	ID          int64         `json:"id"`
	QuizID      int64         `json:"quiz_id"`
	QuizSlug    string        `json:"quiz_slug"`
	UserID      string        `json:"user_id"`
	Status      AttemptStatus `json:"status"`
	Correct     *int          `json:"correct,omitempty"`
	Total       *int          `json:"total,omitempty"`
	Score       *float64      `json:"score,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AttemptAnswer is a persisted answer for one question of an attempt.
type AttemptAnswer struct {
	AttemptID        int64     `json:"attempt_id"`
	QuestionID       int64     `json:"-"`
	QuestionPublicID string    `json:"question_id"`
	UserAnswer       []string  `json:"user_answer"`
	IsCorrect        bool      `json:"is_correct"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// AnswerSubmission is the write-only payload for one question of an attempt.
type AnswerSubmission struct {
	QuestionID string   `json:"question_id" binding:"required,uuid"`
	UserAnswer []string `json:"user_answer" binding:"required,min=1,max=32,dive,notblank,max=2000"`
}

// AttemptResult is what the results view shows once an attempt is finalized.
type AttemptResult struct {
	AttemptID   int64         `json:"attempt_id"`
	QuizSlug    string        `json:"quiz_slug"`
	Status      AttemptStatus `json:"status"`
	Correct     int           `json:"correct"`
	Total       int           `json:"total"`
	Score       float64       `json:"score"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	TimeSpentSeconds int `json:"time_spent_seconds"`
}

// AttemptSummary is one row of a user's attempt history. Number counts the
// user's attempts on the quiz from 1 in creation order.
type AttemptSummary struct {
	ID               int64         `json:"id"`
	Number           int           `json:"attempt_number"`
	Status           AttemptStatus `json:"status"`
	Correct          *int          `json:"correct,omitempty"`
	Total            *int          `json:"total,omitempty"`
	Score            *float64      `json:"score,omitempty"`
	TimeSpentSeconds int           `json:"time_spent_seconds"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// AttemptHistory lists the caller's attempts on a quiz, newest first.
// MaxAttempts and RemainingAttempts are null for quizzes without a limit.
type AttemptHistory struct {
	QuizSlug          string           `json:"quiz_slug"`
	Attempts          []AttemptSummary `json:"attempts"`
	AttemptCount      int              `json:"attempt_count"`
	MaxAttempts       *int             `json:"max_attempts"`
	RemainingAttempts *int             `json:"remaining_attempts"`
}

// CurrentAttempt answers "is there an in-progress attempt for this quiz?".
type CurrentAttempt struct {
	HasCurrentAttempt bool         `json:"hasCurrentAttempt"`
	Attempt           *Attempt     `json:"currentAttempt,omitempty"`
	Session           *QuizSession `json:"session,omitempty"`
}
