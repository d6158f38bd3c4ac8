package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
)

var ErrInvalidAnswer = errors.New("answer does not fit the question type")

// ValidateAnswer checks that an answer has the shape its question type expects.
// Choice answers are option indexes encoded as decimal strings.
func ValidateAnswer(q *model.Question, answer []string) error {
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		if len(answer) != 1 {
			return fmt.Errorf("%w: single choice takes exactly one option", ErrInvalidAnswer)
		}
		return validateOptions(q, answer)
	case model.QuestionTypeMultipleChoice:
		if len(answer) == 0 || len(answer) > len(q.Options) {
			return fmt.Errorf("%w: multiple choice takes 1..%d options", ErrInvalidAnswer, len(q.Options))
		}
		return validateOptions(q, answer)
	case model.QuestionTypeFillInBlank:
		if len(answer) != 1 || strings.TrimSpace(answer[0]) == "" {
			return fmt.Errorf("%w: fill in blank takes one non-empty text", ErrInvalidAnswer)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswer, q.QuestionType)
	}
}

func validateOptions(q *model.Question, answer []string) error {
	seen := make(map[int]struct{}, len(answer))
	for _, a := range answer {
		idx, err := strconv.Atoi(a)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return fmt.Errorf("%w: option %q out of range", ErrInvalidAnswer, a)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: option %d selected twice", ErrInvalidAnswer, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// IsCorrect grades one answer. Multiple choice is order-insensitive and needs
// the exact set of correct options; fill in blank ignores case and
// surrounding whitespace.
func IsCorrect(q *model.Question, answer []string) bool {
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		return len(answer) == 1 && contains(q.CorrectAnswers, answer[0])
	case model.QuestionTypeMultipleChoice:
		if len(answer) != len(q.CorrectAnswers) {
			return false
		}
		for _, a := range answer {
			if !contains(q.CorrectAnswers, a) {
				return false
			}
		}
		return true
	case model.QuestionTypeFillInBlank:
		if len(answer) != 1 {
			return false
		}
		got := strings.TrimSpace(answer[0])
		for _, want := range q.CorrectAnswers {
			if strings.EqualFold(got, strings.TrimSpace(want)) {
				return true
			}
		}
		return false
	}
	return false
}

// Score is the rounded percentage of correct answers over all questions.
func Score(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct) / float64(total) * 100)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
