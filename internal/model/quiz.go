package model

import "time"

// Quiz is the parent of a question sequence and the unit attempts are taken against.
type Quiz struct {
	ID               int64     `json:"id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	TimeLimitMinutes *int      `json:"time_limit_minutes,omitempty"`
	MaxAttempts      *int      `json:"max_attempts,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// QuestionType enumerates the supported answer modes.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "single_choice"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeFillInBlank    QuestionType = "fill_in_blank"
)

// Question is read-only reference data fetched once per attempt.
// CorrectAnswers holds option indexes (as strings) for choice types and
// accepted spellings for fill-in-blank.
type Question struct {
	ID             int64        `json:"-"`
	QuizID         int64        `json:"-"`
	PublicID       string       `json:"public_id"`
	QuestionText   string       `json:"question_text"`
	QuestionType   QuestionType `json:"question_type"`
	Options        []string     `json:"options"`
	CorrectAnswers []string     `json:"correct_answers"`
	OrderNum       int          `json:"order_num"`
}

// IsChoice reports whether the question is answered by picking options.
func (q *Question) IsChoice() bool {
	return q.QuestionType == QuestionTypeSingleChoice || q.QuestionType == QuestionTypeMultipleChoice
}

// PublicQuestion is the shape sent to quiz takers; answers stay server-side.
type PublicQuestion struct {
	ID           string       `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options"`
	OrderNum     int          `json:"order_num"`
}

// Public strips the answer key from q.
func (q *Question) Public() PublicQuestion {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	return PublicQuestion{
		ID:           q.PublicID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      opts,
		OrderNum:     q.OrderNum,
	}
}
