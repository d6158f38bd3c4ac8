package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `a.id, a.quiz_id, q.slug, a.user_id, a.status, a.correct, a.total, a.score, a.created_at, a.completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := row.Scan(&a.ID, &a.QuizID, &a.QuizSlug, &a.UserID, &a.Status,
		&a.Correct, &a.Total, &a.Score, &a.CreatedAt, &a.CompletedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new in-progress attempt. Returns pgx.ErrNoRows when the
// user already holds an in-progress attempt for the quiz.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts (quiz_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (quiz_id, user_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id, status, created_at`,
		a.QuizID, a.UserID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.Status, &a.CreatedAt)
}

// GetForUser retrieves an attempt owned by userID.
func (r *AttemptRepository) GetForUser(ctx context.Context, attemptID int64, userID string) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.id = $1 AND a.user_id = $2`, attemptID, userID,
	))
}

// GetByID retrieves an attempt regardless of owner (used by the expiry sweeper).
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.id = $1`, attemptID,
	))
}

// GetInProgress retrieves the user's in-progress attempt for a quiz.
func (r *AttemptRepository) GetInProgress(ctx context.Context, quizID int64, userID string) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.quiz_id = $1 AND a.user_id = $2 AND a.status = 'in_progress'
		 ORDER BY a.created_at DESC
		 LIMIT 1`, quizID, userID,
	))
}

// CountByUser counts every attempt (any status) a user has made on a quiz.
func (r *AttemptRepository) CountByUser(ctx context.Context, quizID int64, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND user_id = $2`,
		quizID, userID,
	).Scan(&n)
	return n, err
}

// ListByUser lists a user's attempts on a quiz, newest first, with the time
// spent in each attempt's session. Numbers count from the oldest attempt.
func (r *AttemptRepository) ListByUser(ctx context.Context, quizID int64, userID string) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id,
		        ROW_NUMBER() OVER (ORDER BY a.created_at, a.id),
		        a.status, a.correct, a.total, a.score,
		        COALESCE(s.time_spent_seconds, 0),
		        a.created_at, a.completed_at
		 FROM quiz_attempts a
		 LEFT JOIN quiz_attempt_sessions s ON s.attempt_id = a.id
		 WHERE a.quiz_id = $1 AND a.user_id = $2
		 ORDER BY a.created_at DESC, a.id DESC`, quizID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(&a.ID, &a.Number, &a.Status, &a.Correct, &a.Total, &a.Score,
			&a.TimeSpentSeconds, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Complete finalizes an in-progress attempt. Returns false if the attempt was
// already completed.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID int64, correct, total int, score float64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $1, correct = $2, total = $3, score = $4, completed_at = $5
		 WHERE id = $6 AND status = 'in_progress'`,
		model.AttemptStatusCompleted, correct, total, score, at, attemptID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
