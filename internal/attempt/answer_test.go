package attempt_test

import (
	"testing"

	"github.com/stemsi/exstem-quiz/internal/attempt"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestBuildAnswer(t *testing.T) {
	single := &model.PublicQuestion{QuestionType: model.QuestionTypeSingleChoice}
	multi := &model.PublicQuestion{QuestionType: model.QuestionTypeMultipleChoice}
	fill := &model.PublicQuestion{QuestionType: model.QuestionTypeFillInBlank}
	two := 2

	tests := []struct {
		name   string
		q      *model.PublicQuestion
		sel    attempt.Selection
		want   []string
		wantOK bool
	}{
		{"single selected", single, attempt.Selection{Option: &two}, []string{"2"}, true},
		{"single empty", single, attempt.Selection{}, nil, false},
		{"multi keeps order", multi, attempt.Selection{Options: []int{2, 0}}, []string{"2", "0"}, true},
		{"multi empty", multi, attempt.Selection{Options: []int{}}, nil, false},
		{"fill trimmed", fill, attempt.Selection{Text: "  paris  "}, []string{"paris"}, true},
		{"fill blank", fill, attempt.Selection{Text: " \t "}, nil, false},
		{"unknown type", &model.PublicQuestion{QuestionType: "essay"}, attempt.Selection{Text: "x"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := attempt.BuildAnswer(tt.q, tt.sel)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, tt.sel.Answered(tt.q))
		})
	}
}

func TestRoutes(t *testing.T) {
	assert.Equal(t, "/community/quizzes/aljabar", attempt.OverviewPath("aljabar"))
	assert.Equal(t, "/community/quizzes/aljabar/attempt?session=abc-123", attempt.AttemptPath("aljabar", "abc-123"))
	assert.Equal(t, "/community/quizzes/aljabar/result/9", attempt.ResultsPath("aljabar", 9, attempt.RoleStudent))
	assert.Equal(t, "/tutor/community/quizzes/aljabar/result/9", attempt.ResultsPath("aljabar", 9, attempt.RoleTutor))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "in_progress", attempt.StateInProgress.String())
	assert.Equal(t, "no_questions", attempt.StateNoQuestions.String())
	assert.Equal(t, "unknown", attempt.State(99).String())
}
