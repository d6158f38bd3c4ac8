package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuestionRepository handles quiz question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByQuiz retrieves all questions for a quiz, ordered by order_num.
func (r *QuestionRepository) ListByQuiz(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, public_id::text, question_text, question_type, options, correct_answers, order_num
		 FROM quiz_questions WHERE quiz_id = $1
		 ORDER BY order_num, id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.PublicID, &q.QuestionText, &q.QuestionType, &q.Options, &q.CorrectAnswers, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CountByQuiz returns the number of questions in a quiz.
func (r *QuestionRepository) CountByQuiz(ctx context.Context, quizID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_questions WHERE quiz_id = $1`, quizID,
	).Scan(&n)
	return n, err
}
