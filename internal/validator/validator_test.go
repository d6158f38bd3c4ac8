package validator

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
)

func bindBody(body string) map[string]string {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/answers", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var sub model.AnswerSubmission
	return Bind(c, &sub)
}

func TestBind_AnswerSubmission(t *testing.T) {
	Setup()
	const qid = "6f1c2a9e-3d7b-4c1e-9a0f-2b8d5e7c4a11"

	assert.Nil(t, bindBody(`{"question_id":"`+qid+`","user_answer":["0","2"]}`))

	fields := bindBody(`{"question_id":"nope","user_answer":[]}`)
	assert.Contains(t, fields, "question_id")
	assert.Contains(t, fields, "user_answer")

	fields = bindBody(`{"question_id":"` + qid + `","user_answer":["1","   "]}`)
	assert.Equal(t, "user_answer[1] must not be blank", fields["user_answer[1]"])
}

func TestTranslateErrors_NonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	assert.Equal(t, map[string]string{"detail": "unexpected EOF"}, fields)
}
