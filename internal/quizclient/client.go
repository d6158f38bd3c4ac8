// Package quizclient is a typed client for the quiz attempt API.
package quizclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// Client talks to one API base URL on behalf of one bearer token.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "quizclient").Logger() }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope mirrors response.Response with the payload left raw.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// ─── Attempts ──────────────────────────────────────────────────────────

// ResolveSession maps a public session token to its attempt.
func (c *Client) ResolveSession(ctx context.Context, slug, publicID string) (*model.ResolvedSession, error) {
	var out model.ResolvedSession
	if err := c.do(ctx, http.MethodGet, quizPath(slug, "attempts", "session", publicID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentAttempt finds the caller's in-progress attempt for a quiz.
func (c *Client) CurrentAttempt(ctx context.Context, slug string) (*model.CurrentAttempt, error) {
	var out model.CurrentAttempt
	if err := c.do(ctx, http.MethodGet, quizPath(slug, "current-attempt"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAttempt starts an attempt, or returns the in-progress one.
func (c *Client) CreateAttempt(ctx context.Context, slug string) (*model.Attempt, error) {
	var out struct {
		Attempt *model.Attempt `json:"attempt"`
	}
	if err := c.do(ctx, http.MethodPost, quizPath(slug, "attempts"), nil, &out); err != nil {
		return nil, err
	}
	if out.Attempt == nil {
		return nil, fmt.Errorf("create attempt: empty response")
	}
	return out.Attempt, nil
}

// Attempts lists the caller's attempts on a quiz with the attempts left.
func (c *Client) Attempts(ctx context.Context, slug string) (*model.AttemptHistory, error) {
	var out model.AttemptHistory
	if err := c.do(ctx, http.MethodGet, quizPath(slug, "attempts"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListQuestions returns the ordered question sequence of a quiz.
func (c *Client) ListQuestions(ctx context.Context, slug string) ([]model.PublicQuestion, error) {
	var out struct {
		Questions []model.PublicQuestion `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, quizPath(slug, "questions"), nil, &out); err != nil {
		return nil, err
	}
	if out.Questions == nil {
		out.Questions = []model.PublicQuestion{}
	}
	return out.Questions, nil
}

// SubmitAnswer stores the answer to one question.
func (c *Client) SubmitAnswer(ctx context.Context, slug string, attemptID int64, sub model.AnswerSubmission) error {
	return c.do(ctx, http.MethodPost, attemptPath(slug, attemptID, "answers"), sub, nil)
}

// CompleteAttempt finalizes and scores an attempt.
func (c *Client) CompleteAttempt(ctx context.Context, slug string, attemptID int64) (*model.AttemptResult, error) {
	var out struct {
		Result *model.AttemptResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, attemptPath(slug, attemptID, "complete"), nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Result fetches the score of a completed attempt.
func (c *Client) Result(ctx context.Context, slug string, attemptID int64) (*model.AttemptResult, error) {
	var out struct {
		Result *model.AttemptResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, attemptPath(slug, attemptID, "result"), nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// ─── Sessions ──────────────────────────────────────────────────────────

// StartSession opens the session of an attempt. It fails with a
// SESSION_EXISTS APIError when one is already open.
func (c *Client) StartSession(ctx context.Context, slug string, attemptID int64) (*model.QuizSession, error) {
	return c.session(ctx, http.MethodPost, slug, attemptID, nil)
}

// GetSession fetches the current session snapshot.
func (c *Client) GetSession(ctx context.Context, slug string, attemptID int64) (*model.QuizSession, error) {
	return c.session(ctx, http.MethodGet, slug, attemptID, nil)
}

// UpdateSession writes the question pointer. A nil index is a bare heartbeat.
func (c *Client) UpdateSession(ctx context.Context, slug string, attemptID int64, req model.UpdateSessionRequest) (*model.QuizSession, error) {
	return c.session(ctx, http.MethodPut, slug, attemptID, req)
}

func (c *Client) session(ctx context.Context, method, slug string, attemptID int64, body any) (*model.QuizSession, error) {
	var out struct {
		Session *model.QuizSession `json:"session"`
	}
	if err := c.do(ctx, method, attemptPath(slug, attemptID, "session"), body, &out); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, fmt.Errorf("%s session: empty response", strings.ToLower(method))
	}
	return out.Session, nil
}

// ─── Transport ─────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", reqID).
		Dur("took", time.Since(start)).
		Msg("API call")

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

func quizPath(slug string, parts ...string) string {
	segs := append([]string{"/api/v1/quizzes", url.PathEscape(slug)}, escapeAll(parts)...)
	return strings.Join(segs, "/")
}

func attemptPath(slug string, attemptID int64, parts ...string) string {
	return quizPath(slug, append([]string{"attempts", strconv.FormatInt(attemptID, 10)}, parts...)...)
}

func escapeAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = url.PathEscape(p)
	}
	return out
}
