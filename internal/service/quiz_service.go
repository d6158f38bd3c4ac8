package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Domain Errors
var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrNoQuestions  = errors.New("quiz has no questions")
)

// QuizService serves quizzes and their question sequences, keeping the
// question list hot in Redis.
type QuizService struct {
	quizRepo     QuizStore
	questionRepo QuestionStore
	rdb          *redis.Client
	ttl          time.Duration
	log          zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo QuizStore,
	questionRepo QuestionStore,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		ttl:          ttl,
		log:          log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetBySlug retrieves a quiz, mapping a missing row to ErrQuizNotFound.
func (s *QuizService) GetBySlug(ctx context.Context, slug string) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// ListQuestions returns the ordered question sequence of a quiz.
// An empty slice (never nil) means the quiz has no questions.
func (s *QuizService) ListQuestions(ctx context.Context, slug string) ([]model.Question, error) {
	key := config.CacheKey.QuizQuestionsKey(slug)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []cachedQuestion
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return fromCache(cached), nil
		}
		s.log.Warn().Str("quiz", slug).Msg("Corrupt question cache, reloading")
	case errors.Is(err, redis.Nil):
		// Cold cache; fall through to PostgreSQL.
	default:
		// Redis trouble must not take the quiz down with it.
		s.log.Warn().Err(err).Str("quiz", slug).Msg("Question cache read failed")
	}

	quiz, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}

	payload, err := json.Marshal(toCache(questions))
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz", slug).Msg("Question cache write failed")
	}

	return questions, nil
}

// InvalidateQuestions drops the cached question list so the next read hits PostgreSQL.
func (s *QuizService) InvalidateQuestions(ctx context.Context, slug string) error {
	return s.rdb.Del(ctx, config.CacheKey.QuizQuestionsKey(slug)).Err()
}

// cachedQuestion keeps the internal IDs the public JSON shape hides.
type cachedQuestion struct {
	ID     int64 `json:"id"`
	QuizID int64 `json:"quiz_id"`
	model.Question
}

func toCache(questions []model.Question) []cachedQuestion {
	out := make([]cachedQuestion, len(questions))
	for i, q := range questions {
		out[i] = cachedQuestion{ID: q.ID, QuizID: q.QuizID, Question: q}
	}
	return out
}

func fromCache(cached []cachedQuestion) []model.Question {
	out := make([]model.Question, len(cached))
	for i, c := range cached {
		q := c.Question
		q.ID = c.ID
		q.QuizID = c.QuizID
		out[i] = q
	}
	return out
}
