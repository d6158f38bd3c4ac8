package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
)

var ErrAttemptAlreadyCompleted = errors.New("attempt already completed")

// Finalizer scores an attempt and marks it completed. Both the explicit
// "complete" call and session expiry end an attempt through here.
type Finalizer struct {
	quizzes  *QuizService
	attempts AttemptStore
	answers  AnswerStore
	now      func() time.Time
}

// NewFinalizer creates a new Finalizer.
func NewFinalizer(quizzes *QuizService, attempts AttemptStore, answers AnswerStore) *Finalizer {
	return &Finalizer{
		quizzes:  quizzes,
		attempts: attempts,
		answers:  answers,
		now:      time.Now,
	}
}

// Finalize grades every question of the quiz (unanswered ones count as wrong)
// and completes the attempt. Returns ErrAttemptAlreadyCompleted if another
// caller got there first.
func (f *Finalizer) Finalize(ctx context.Context, a *model.Attempt) (*model.AttemptResult, error) {
	if a.Status == model.AttemptStatusCompleted {
		return nil, ErrAttemptAlreadyCompleted
	}

	questions, err := f.quizzes.ListQuestions(ctx, a.QuizSlug)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answers, err := f.answers.ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	byQuestion := make(map[int64]model.AttemptAnswer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	correct := 0
	for i := range questions {
		ans, ok := byQuestion[questions[i].ID]
		if ok && IsCorrect(&questions[i], ans.UserAnswer) {
			correct++
		}
	}
	total := len(questions)
	score := Score(correct, total)
	now := f.now()

	done, err := f.attempts.Complete(ctx, a.ID, correct, total, score, now)
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	if !done {
		return nil, ErrAttemptAlreadyCompleted
	}

	return &model.AttemptResult{
		AttemptID:   a.ID,
		QuizSlug:    a.QuizSlug,
		Status:      model.AttemptStatusCompleted,
		Correct:     correct,
		Total:       total,
		Score:       score,
		CompletedAt: &now,
	}, nil
}

// SetClock overrides time.Now.
func (f *Finalizer) SetClock(now func() time.Time) { f.now = now }
