package service

import (
	"context"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// The repository package satisfies these; services depend on the narrow
// method sets so they can be exercised without PostgreSQL.

type QuizStore interface {
	GetBySlug(ctx context.Context, slug string) (*model.Quiz, error)
}

type QuestionStore interface {
	ListByQuiz(ctx context.Context, quizID int64) ([]model.Question, error)
}

type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetForUser(ctx context.Context, attemptID int64, userID string) (*model.Attempt, error)
	GetByID(ctx context.Context, attemptID int64) (*model.Attempt, error)
	GetInProgress(ctx context.Context, quizID int64, userID string) (*model.Attempt, error)
	CountByUser(ctx context.Context, quizID int64, userID string) (int, error)
	ListByUser(ctx context.Context, quizID int64, userID string) ([]model.AttemptSummary, error)
	Complete(ctx context.Context, attemptID int64, correct, total int, score float64, at time.Time) (bool, error)
}

type AnswerStore interface {
	Upsert(ctx context.Context, a *model.AttemptAnswer) error
	ListByAttempt(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error)
	CountByAttempt(ctx context.Context, attemptID int64) (int, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *model.QuizSession) error
	GetByAttempt(ctx context.Context, attemptID int64) (*model.QuizSession, error)
	GetByPublicID(ctx context.Context, publicID string) (*model.QuizSession, error)
	Touch(ctx context.Context, sessionID int64, index *int, spent int, now time.Time) (*model.QuizSession, error)
	Transition(ctx context.Context, attemptID int64, from, to model.SessionStatus, now time.Time) (bool, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]int64, error)
}
