package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AnswerRepository handles submitted answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert stores the answer for one question, replacing any earlier answer.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.AttemptAnswer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempt_answers (attempt_id, question_id, user_answer, is_correct)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET user_answer = EXCLUDED.user_answer,
		     is_correct = EXCLUDED.is_correct,
		     answered_at = NOW()
		 RETURNING answered_at`,
		a.AttemptID, a.QuestionID, a.UserAnswer, a.IsCorrect,
	).Scan(&a.AnsweredAt)
}

// ListByAttempt retrieves all answers of an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.attempt_id, a.question_id, q.public_id::text, a.user_answer, a.is_correct, a.answered_at
		 FROM quiz_attempt_answers a JOIN quiz_questions q ON q.id = a.question_id
		 WHERE a.attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.QuestionPublicID, &a.UserAnswer, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountByAttempt returns how many questions of an attempt have an answer.
func (r *AnswerRepository) CountByAttempt(ctx context.Context, attemptID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempt_answers WHERE attempt_id = $1`, attemptID,
	).Scan(&n)
	return n, err
}
