package quizclient

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-quiz/internal/response"
)

// APIError is a non-2xx reply decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("quiz api: http %d", e.Status)
	}
	return fmt.Sprintf("quiz api: http %d %s: %s", e.Status, e.Code, e.Message)
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code response.ErrCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsMaxAttempts reports a rejected attempt creation due to the attempt limit.
func IsMaxAttempts(err error) bool {
	return HasCode(err, response.ErrMaxAttemptsReached)
}

// IsNotFound reports any 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

// IsAlreadyCompleted reports a completion call on a finished attempt.
func IsAlreadyCompleted(err error) bool {
	return HasCode(err, response.ErrAttemptAlreadyCompleted)
}

// IsNoQuestions reports a quiz without questions.
func IsNoQuestions(err error) bool {
	return HasCode(err, response.ErrNoQuestions)
}

// IsSessionExists reports a start call for an attempt that already has a session.
func IsSessionExists(err error) bool {
	return HasCode(err, response.ErrSessionExists)
}
