package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuizSessionRepository handles attempt session rows.
type QuizSessionRepository struct {
	pool *pgxpool.Pool
}

// NewQuizSessionRepository creates a new QuizSessionRepository.
func NewQuizSessionRepository(pool *pgxpool.Pool) *QuizSessionRepository {
	return &QuizSessionRepository{pool: pool}
}

const sessionColumns = `id, public_id::text, attempt_id, quiz_id, user_id, status, time_limit_minutes,
	current_question_index, total_questions, time_spent_seconds, started_at, expires_at, last_activity_at`

func scanSession(row rowScanner) (*model.QuizSession, error) {
	s := &model.QuizSession{}
	if err := row.Scan(&s.ID, &s.PublicID, &s.AttemptID, &s.QuizID, &s.UserID, &s.Status,
		&s.TimeLimitMinutes, &s.CurrentQuestionIndex, &s.TotalQuestions, &s.TimeSpentSeconds,
		&s.StartedAt, &s.ExpiresAt, &s.LastActivityAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a session for an attempt. Returns pgx.ErrNoRows if the
// attempt already has one.
func (r *QuizSessionRepository) Create(ctx context.Context, s *model.QuizSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempt_sessions
		   (public_id, attempt_id, quiz_id, user_id, status, time_limit_minutes,
		    current_question_index, total_questions, started_at, expires_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9)
		 ON CONFLICT (attempt_id) DO NOTHING
		 RETURNING id, last_activity_at`,
		s.PublicID, s.AttemptID, s.QuizID, s.UserID, s.Status, s.TimeLimitMinutes,
		s.CurrentQuestionIndex, s.TotalQuestions, s.StartedAt, s.ExpiresAt,
	).Scan(&s.ID, &s.LastActivityAt)
}

// GetByAttempt retrieves the session of an attempt.
func (r *QuizSessionRepository) GetByAttempt(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_attempt_sessions WHERE attempt_id = $1`, attemptID,
	))
}

// GetByPublicID retrieves a session by its shareable token.
func (r *QuizSessionRepository) GetByPublicID(ctx context.Context, publicID string) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_attempt_sessions WHERE public_id = $1::uuid`, publicID,
	))
}

// Touch records activity, adds spent seconds and, when index is non-nil,
// moves the question pointer forward. The pointer never moves backward and
// never passes the last question. Only active sessions are updated;
// pgx.ErrNoRows otherwise.
func (r *QuizSessionRepository) Touch(ctx context.Context, sessionID int64, index *int, spent int, now time.Time) (*model.QuizSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`UPDATE quiz_attempt_sessions
		 SET current_question_index = CASE
		       WHEN $2::int IS NULL THEN current_question_index
		       ELSE GREATEST(current_question_index, LEAST($2::int, GREATEST(total_questions - 1, 0)))
		     END,
		     time_spent_seconds = time_spent_seconds + $4,
		     last_activity_at = $3,
		     updated_at = $3
		 WHERE id = $1 AND status = 'active'
		 RETURNING `+sessionColumns, sessionID, index, now, spent,
	))
}

// Transition moves a session of an attempt from one status to another.
// Returns false when the session was not in the expected status.
func (r *QuizSessionRepository) Transition(ctx context.Context, attemptID int64, from, to model.SessionStatus, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempt_sessions
		 SET status = $3, updated_at = $4
		 WHERE attempt_id = $1 AND status = $2`,
		attemptID, from, to, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdue returns attempt IDs of active sessions whose deadline has
// passed, plus expired sessions whose attempt was never completed.
func (r *QuizSessionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.attempt_id FROM quiz_attempt_sessions s
		 JOIN quiz_attempts a ON a.id = s.attempt_id
		 WHERE s.expires_at IS NOT NULL AND s.expires_at <= $1
		   AND (s.status = 'active' OR (s.status = 'expired' AND a.status = 'in_progress'))
		 ORDER BY s.expires_at
		 LIMIT $2`, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
