package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// QuizAttemptHandler serves the attempt and session endpoints a quiz taker uses.
type QuizAttemptHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewQuizAttemptHandler creates a new QuizAttemptHandler.
func NewQuizAttemptHandler(
	quizService *service.QuizService,
	attemptService *service.AttemptService,
	sessionService *service.SessionService,
	log zerolog.Logger,
) *QuizAttemptHandler {
	return &QuizAttemptHandler{
		quizService:    quizService,
		attemptService: attemptService,
		sessionService: sessionService,
		log:            log.With().Str("component", "quiz_attempt_handler").Logger(),
	}
}

// ListQuestions godoc
// GET /api/v1/quizzes/:slug/questions
// Returns the ordered question sequence without the answer key.
func (h *QuizAttemptHandler) ListQuestions(c *gin.Context) {
	slug := c.Param("slug")

	questions, err := h.quizService.ListQuestions(c.Request.Context(), slug)
	if err != nil {
		h.fail(c, err)
		return
	}

	public := make([]model.PublicQuestion, len(questions))
	for i := range questions {
		public[i] = questions[i].Public()
	}

	response.Success(c, http.StatusOK, gin.H{"questions": public})
}

// CurrentAttempt godoc
// GET /api/v1/quizzes/:slug/current-attempt
func (h *QuizAttemptHandler) CurrentAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	current, err := h.attemptService.Current(c.Request.Context(), c.Param("slug"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, current)
}

// ListAttempts godoc
// GET /api/v1/quizzes/:slug/attempts
// Lists the caller's own attempts with the attempts left.
func (h *QuizAttemptHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	history, err := h.attemptService.History(c.Request.Context(), c.Param("slug"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, history)
}

// CreateAttempt godoc
// POST /api/v1/quizzes/:slug/attempts
// Opens a new attempt, or returns the in-progress one.
func (h *QuizAttemptHandler) CreateAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempt, err := h.attemptService.CreateAttempt(c.Request.Context(), c.Param("slug"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// ResolveSession godoc
// GET /api/v1/quizzes/:slug/attempts/session/:public_id
// Maps a session token from a shared URL to its attempt.
func (h *QuizAttemptHandler) ResolveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	resolved, err := h.sessionService.Resolve(c.Request.Context(), c.Param("slug"), c.Param("public_id"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, resolved)
}

// StartSession godoc
// POST /api/v1/quizzes/:slug/attempts/:attempt_id/session
func (h *QuizAttemptHandler) StartSession(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/quizzes/:slug/attempts/:attempt_id/session
// Returns the authoritative snapshot; overdue sessions are expired on read.
func (h *QuizAttemptHandler) GetSession(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// UpdateSession godoc
// PUT /api/v1/quizzes/:slug/attempts/:attempt_id/session
// Records a heartbeat and optionally moves the question pointer forward.
func (h *QuizAttemptHandler) UpdateSession(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Update(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// SubmitAnswer godoc
// POST /api/v1/quizzes/:slug/attempts/:attempt_id/answers
func (h *QuizAttemptHandler) SubmitAnswer(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req model.AnswerSubmission
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.attemptService.SubmitAnswer(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// CompleteAttempt godoc
// POST /api/v1/quizzes/:slug/attempts/:attempt_id/complete
func (h *QuizAttemptHandler) CompleteAttempt(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Complete(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Result godoc
// GET /api/v1/quizzes/:slug/attempts/:attempt_id/result
func (h *QuizAttemptHandler) Result(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Result(c.Request.Context(), c.Param("slug"), attemptID, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// attemptParams pulls the caller's claims and the :attempt_id path param,
// writing the error response itself when either is missing.
func (h *QuizAttemptHandler) attemptParams(c *gin.Context) (*service.Claims, int64, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, 0, false
	}

	attemptID, err := parseAttemptID(c)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, 0, false
	}
	return claims, attemptID, true
}

func parseAttemptID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("attempt_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid attempt id")
	}
	return id, nil
}

func (h *QuizAttemptHandler) fail(c *gin.Context, err error) {
	failService(c, h.log, err)
}

// failService maps service errors onto the API error taxonomy.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
	case errors.Is(err, service.ErrMaxAttemptsReached):
		response.Fail(c, http.StatusForbidden, response.ErrMaxAttemptsReached)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrAttemptNotInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotInProgress)
	case errors.Is(err, service.ErrAttemptAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadyCompleted)
	case errors.Is(err, service.ErrResultNotReady):
		response.Fail(c, http.StatusConflict, response.ErrResultNotReady)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionExists):
		response.Fail(c, http.StatusConflict, response.ErrSessionExists)
	case errors.Is(err, service.ErrSessionTokenMismatch):
		response.Fail(c, http.StatusForbidden, response.ErrSessionTokenMismatch)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusBadRequest, response.ErrSessionNotActive)
	default:
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Unhandled service error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
