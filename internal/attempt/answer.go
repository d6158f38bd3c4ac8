package attempt

import (
	"slices"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// Selection is the per-question input the taker has made so far. It is reset
// every time the page moves to another question.
type Selection struct {
	Option  *int   // single choice
	Options []int  // multiple choice, in the order they were picked
	Text    string // fill in the blank
}

// Answered reports whether sel holds a submittable answer for q.
func (sel Selection) Answered(q *model.PublicQuestion) bool {
	_, ok := BuildAnswer(q, sel)
	return ok
}

// toggle adds opt to the multiple choice selection, or removes it if present.
// Order of first selection is kept.
func (sel *Selection) toggle(opt int) {
	if i := slices.Index(sel.Options, opt); i >= 0 {
		sel.Options = slices.Delete(slices.Clone(sel.Options), i, i+1)
		return
	}
	sel.Options = append(slices.Clone(sel.Options), opt)
}

// BuildAnswer maps a selection to the user_answer wire value. Choice answers
// are option indexes as decimal strings; text is trimmed. ok is false when
// the question is unanswered, in which case nothing is submitted.
func BuildAnswer(q *model.PublicQuestion, sel Selection) (answer []string, ok bool) {
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		if sel.Option == nil {
			return nil, false
		}
		return []string{strconv.Itoa(*sel.Option)}, true
	case model.QuestionTypeMultipleChoice:
		if len(sel.Options) == 0 {
			return nil, false
		}
		answer = make([]string, len(sel.Options))
		for i, opt := range sel.Options {
			answer[i] = strconv.Itoa(opt)
		}
		return answer, true
	case model.QuestionTypeFillInBlank:
		text := strings.TrimSpace(sel.Text)
		if text == "" {
			return nil, false
		}
		return []string{text}, true
	default:
		return nil, false
	}
}
