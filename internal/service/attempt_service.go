package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Attempt errors.
var (
	ErrMaxAttemptsReached   = errors.New("maximum number of attempts reached")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrQuestionNotFound     = errors.New("question not found in quiz")
	ErrResultNotReady       = errors.New("attempt has not been completed")
)

// AttemptService handles the attempt lifecycle: creation, answers and completion.
type AttemptService struct {
	quizzes   *QuizService
	sessions  *SessionService
	finalizer *Finalizer
	attempts  AttemptStore
	answers   AnswerStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	quizzes *QuizService,
	sessions *SessionService,
	finalizer *Finalizer,
	attempts AttemptStore,
	answers AnswerStore,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		quizzes:   quizzes,
		sessions:  sessions,
		finalizer: finalizer,
		attempts:  attempts,
		answers:   answers,
		log:       log.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
	}
}

// loadAttempt fetches an attempt owned by userID and checks that it belongs
// to the quiz named by slug.
func loadAttempt(ctx context.Context, store AttemptStore, slug string, attemptID int64, userID string) (*model.Attempt, error) {
	a, err := store.GetForUser(ctx, attemptID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.QuizSlug != slug {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// CreateAttempt opens a new attempt, or returns the user's in-progress one.
func (s *AttemptService) CreateAttempt(ctx context.Context, slug, userID string) (*model.Attempt, error) {
	quiz, err := s.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	questions, err := s.quizzes.ListQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	existing, err := s.attempts.GetInProgress(ctx, quiz.ID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get in-progress attempt: %w", err)
	}

	if quiz.MaxAttempts != nil {
		count, err := s.attempts.CountByUser(ctx, quiz.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if count >= *quiz.MaxAttempts {
			return nil, ErrMaxAttemptsReached
		}
	}

	a := &model.Attempt{
		QuizID:   quiz.ID,
		QuizSlug: quiz.Slug,
		UserID:   userID,
		Status:   model.AttemptStatusInProgress,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Another request created the in-progress attempt first.
			existing, getErr := s.attempts.GetInProgress(ctx, quiz.ID, userID)
			if getErr != nil {
				return nil, fmt.Errorf("get raced attempt: %w", getErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Int64("attempt_id", a.ID).
		Str("quiz", slug).
		Str("user_id", userID).
		Msg("Attempt created")

	return a, nil
}

// Current reports the user's in-progress attempt for a quiz, if any, with
// its session.
func (s *AttemptService) Current(ctx context.Context, slug, userID string) (*model.CurrentAttempt, error) {
	quiz, err := s.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	a, err := s.attempts.GetInProgress(ctx, quiz.ID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.CurrentAttempt{}, nil
		}
		return nil, fmt.Errorf("get in-progress attempt: %w", err)
	}

	session, err := s.sessions.ForAttempt(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	return &model.CurrentAttempt{HasCurrentAttempt: true, Attempt: a, Session: session}, nil
}

// History lists the user's own attempts on a quiz with the attempts left
// under the quiz's limit.
func (s *AttemptService) History(ctx context.Context, slug, userID string) (*model.AttemptHistory, error) {
	quiz, err := s.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByUser(ctx, quiz.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}

	h := &model.AttemptHistory{
		QuizSlug:     quiz.Slug,
		Attempts:     attempts,
		AttemptCount: len(attempts),
		MaxAttempts:  quiz.MaxAttempts,
	}
	if quiz.MaxAttempts != nil {
		remaining := max(*quiz.MaxAttempts-len(attempts), 0)
		h.RemainingAttempts = &remaining
	}
	return h, nil
}

// SubmitAnswer grades and stores (or replaces) the answer to one question.
func (s *AttemptService) SubmitAnswer(ctx context.Context, slug string, attemptID int64, userID string, sub *model.AnswerSubmission) (*model.AttemptAnswer, error) {
	a, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotInProgress
	}
	if err := s.sessions.EnsureLive(ctx, attemptID); err != nil {
		return nil, err
	}

	questions, err := s.quizzes.ListQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	var question *model.Question
	for i := range questions {
		if questions[i].PublicID == sub.QuestionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrQuestionNotFound
	}

	if err := ValidateAnswer(question, sub.UserAnswer); err != nil {
		return nil, err
	}

	answer := &model.AttemptAnswer{
		AttemptID:        attemptID,
		QuestionID:       question.ID,
		QuestionPublicID: question.PublicID,
		UserAnswer:       sub.UserAnswer,
		IsCorrect:        IsCorrect(question, sub.UserAnswer),
		AnsweredAt:       s.now(),
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	return answer, nil
}

// Complete finishes the attempt and closes its session.
func (s *AttemptService) Complete(ctx context.Context, slug string, attemptID int64, userID string) (*model.AttemptResult, error) {
	a, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.finalizer.Finalize(ctx, a)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Close(ctx, attemptID); err != nil {
		// The attempt is already scored; a stale session is swept later.
		s.log.Error().Err(err).Int64("attempt_id", attemptID).Msg("Failed to close session")
	}
	result.TimeSpentSeconds = s.timeSpent(ctx, attemptID)

	s.log.Info().
		Int64("attempt_id", attemptID).
		Int("correct", result.Correct).
		Int("total", result.Total).
		Float64("score", result.Score).
		Msg("Attempt completed")

	return result, nil
}

// Result returns the score of a completed attempt.
func (s *AttemptService) Result(ctx context.Context, slug string, attemptID int64, userID string) (*model.AttemptResult, error) {
	a, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusCompleted || a.Correct == nil || a.Total == nil {
		return nil, ErrResultNotReady
	}

	var score float64
	if a.Score != nil {
		score = *a.Score
	}
	return &model.AttemptResult{
		AttemptID:        a.ID,
		QuizSlug:         a.QuizSlug,
		Status:           a.Status,
		Correct:          *a.Correct,
		Total:            *a.Total,
		Score:            score,
		CompletedAt:      a.CompletedAt,
		TimeSpentSeconds: s.timeSpent(ctx, a.ID),
	}, nil
}

// timeSpent reads the accumulated time of the attempt's session. Attempts
// without a session report zero.
func (s *AttemptService) timeSpent(ctx context.Context, attemptID int64) int {
	session, err := s.sessions.ForAttempt(ctx, attemptID)
	if err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to read time spent")
		return 0
	}
	if session == nil {
		return 0
	}
	return session.TimeSpentSeconds
}

// SetClock overrides time.Now.
func (s *AttemptService) SetClock(now func() time.Time) { s.now = now }
