package service

import (
	"testing"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAnswer(t *testing.T) {
	single := &model.Question{QuestionType: model.QuestionTypeSingleChoice, Options: []string{"a", "b", "c"}}
	multi := &model.Question{QuestionType: model.QuestionTypeMultipleChoice, Options: []string{"a", "b", "c"}}
	fill := &model.Question{QuestionType: model.QuestionTypeFillInBlank}

	tests := []struct {
		name    string
		q       *model.Question
		answer  []string
		wantErr bool
	}{
		{"single ok", single, []string{"2"}, false},
		{"single two options", single, []string{"0", "1"}, true},
		{"single out of range", single, []string{"3"}, true},
		{"single not a number", single, []string{"b"}, true},
		{"multi ok", multi, []string{"2", "0"}, false},
		{"multi duplicate", multi, []string{"1", "1"}, true},
		{"multi too many", multi, []string{"0", "1", "2", "0"}, true},
		{"multi negative", multi, []string{"-1"}, true},
		{"fill ok", fill, []string{" Jakarta "}, false},
		{"fill blank", fill, []string{"   "}, true},
		{"fill two texts", fill, []string{"a", "b"}, true},
		{"unknown type", &model.Question{QuestionType: "essay"}, []string{"x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswer(tt.q, tt.answer)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIsCorrect(t *testing.T) {
	single := &model.Question{QuestionType: model.QuestionTypeSingleChoice, CorrectAnswers: []string{"1"}}
	multi := &model.Question{QuestionType: model.QuestionTypeMultipleChoice, CorrectAnswers: []string{"0", "2"}}
	fill := &model.Question{QuestionType: model.QuestionTypeFillInBlank, CorrectAnswers: []string{"Jakarta", "DKI Jakarta"}}

	assert.True(t, IsCorrect(single, []string{"1"}))
	assert.False(t, IsCorrect(single, []string{"0"}))

	assert.True(t, IsCorrect(multi, []string{"0", "2"}))
	assert.True(t, IsCorrect(multi, []string{"2", "0"}), "selection order does not matter")
	assert.False(t, IsCorrect(multi, []string{"0"}))
	assert.False(t, IsCorrect(multi, []string{"0", "1", "2"}))

	assert.True(t, IsCorrect(fill, []string{"  jakarta "}))
	assert.True(t, IsCorrect(fill, []string{"dki JAKARTA"}))
	assert.False(t, IsCorrect(fill, []string{"Bandung"}))
}

func TestScore(t *testing.T) {
	assert.Equal(t, float64(0), Score(0, 0))
	assert.Equal(t, float64(100), Score(3, 3))
	assert.Equal(t, float64(67), Score(2, 3))
	assert.Equal(t, float64(33), Score(1, 3))
}
