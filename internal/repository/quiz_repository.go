package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetBySlug retrieves a quiz by its URL slug.
func (r *QuizRepository) GetBySlug(ctx context.Context, slug string) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, slug, title, time_limit_minutes, max_attempts, created_at
		 FROM quizzes WHERE slug = $1`, slug,
	).Scan(&q.ID, &q.Slug, &q.Title, &q.TimeLimitMinutes, &q.MaxAttempts, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}
