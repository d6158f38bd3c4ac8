package attempt_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/stemsi/exstem-quiz/internal/attempt"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quizclient"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const (
	slug      = "biologi-sel"
	attemptID = int64(41)
	sessionID = "3f6c1d2e-5b4a-4c3d-8e9f-0a1b2c3d4e5f"
)

var errNetwork = errors.New("connection reset by peer")

func apiErr(status int, code response.ErrCode) error {
	return &quizclient.APIError{Status: status, Code: code, Message: string(code)}
}

// fakeAPI is a scripted quiz server for a single attempt.
type fakeAPI struct {
	mu sync.Mutex

	questions []model.PublicQuestion
	limit     *int
	clock     time.Time

	hasAttempt bool
	session    *model.QuizSession
	completed  bool

	// Injected failures, consumed in order; a nil entry means success.
	resolveErr  error
	listErr     error
	currentErr  error
	createErr   error
	submitErrs  []error
	updateErrs  []error
	completeErr []error

	// submitGate, when set, blocks SubmitAnswer until closed.
	submitGate chan struct{}
	submitting chan struct{}

	resolves  int
	creates   int
	starts    int
	gets      int
	submits   []model.AnswerSubmission
	updates    []int
	heartbeats []string // session tokens of index-less updates
	completes  int
}

func newFakeAPI(questions ...model.PublicQuestion) *fakeAPI {
	return &fakeAPI{
		questions: questions,
		clock:     time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC),
	}
}

func defaultQuestions() []model.PublicQuestion {
	return []model.PublicQuestion{
		{ID: "q-0", QuestionType: model.QuestionTypeSingleChoice, Options: []string{"a", "b", "c"}, OrderNum: 1},
		{ID: "q-1", QuestionType: model.QuestionTypeMultipleChoice, Options: []string{"a", "b", "c"}, OrderNum: 2},
		{ID: "q-2", QuestionType: model.QuestionTypeFillInBlank, Options: []string{}, OrderNum: 3},
		{ID: "q-3", QuestionType: model.QuestionTypeSingleChoice, Options: []string{"x", "y"}, OrderNum: 4},
	}
}

// openSession gives the fake an in-progress attempt with a session at index.
func (f *fakeAPI) openSession(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasAttempt = true
	f.session = f.newSessionLocked(index)
}

func (f *fakeAPI) newSessionLocked(index int) *model.QuizSession {
	return &model.QuizSession{
		ID:                   7,
		PublicID:             sessionID,
		AttemptID:            attemptID,
		Status:               model.SessionStatusActive,
		TimeLimitMinutes:     f.limit,
		CurrentQuestionIndex: index,
		TotalQuestions:       len(f.questions),
		StartedAt:            f.clock,
	}
}

// snapshotLocked stamps the session with a strictly increasing server time.
func (f *fakeAPI) snapshotLocked() *model.QuizSession {
	f.clock = f.clock.Add(time.Second)
	s := *f.session
	s.ServerTime = f.clock
	if s.TimeLimitMinutes != nil {
		rem := *s.TimeLimitMinutes*60 - int(f.clock.Sub(s.StartedAt)/time.Second)
		rem = max(rem, 0)
		s.RemainingSeconds = &rem
		s.IsExpired = s.Status == model.SessionStatusExpired || (s.Status == model.SessionStatusActive && rem == 0)
	}
	return &s
}

// setServer mutates the server-side session, as another tab would.
func (f *fakeAPI) setServer(fn func(s *model.QuizSession)) *model.QuizSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.session)
	return f.snapshotLocked()
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeAPI) ResolveSession(_ context.Context, _ string, publicID string) (*model.ResolvedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if f.session == nil || f.session.PublicID != publicID {
		return nil, apiErr(http.StatusNotFound, response.ErrSessionNotFound)
	}
	return &model.ResolvedSession{AttemptID: attemptID, Session: f.snapshotLocked()}, nil
}

func (f *fakeAPI) CurrentAttempt(context.Context, string) (*model.CurrentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	if !f.hasAttempt || f.completed {
		return &model.CurrentAttempt{}, nil
	}
	cur := &model.CurrentAttempt{HasCurrentAttempt: true, Attempt: &model.Attempt{ID: attemptID, Status: model.AttemptStatusInProgress}}
	if f.session != nil {
		cur.Session = f.snapshotLocked()
	}
	return cur, nil
}

func (f *fakeAPI) CreateAttempt(context.Context, string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if len(f.questions) == 0 {
		return nil, apiErr(http.StatusUnprocessableEntity, response.ErrNoQuestions)
	}
	f.hasAttempt = true
	return &model.Attempt{ID: attemptID, Status: model.AttemptStatusInProgress}, nil
}

func (f *fakeAPI) ListQuestions(context.Context, string) ([]model.PublicQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.PublicQuestion{}, f.questions...), nil
}

func (f *fakeAPI) StartSession(_ context.Context, _ string, id int64) (*model.QuizSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if !f.hasAttempt || id != attemptID {
		return nil, apiErr(http.StatusNotFound, response.ErrAttemptNotFound)
	}
	if f.session != nil {
		return nil, apiErr(http.StatusConflict, response.ErrSessionExists)
	}
	f.session = f.newSessionLocked(0)
	return f.snapshotLocked(), nil
}

func (f *fakeAPI) GetSession(_ context.Context, _ string, id int64) (*model.QuizSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.session == nil || id != attemptID {
		return nil, apiErr(http.StatusNotFound, response.ErrSessionNotFound)
	}
	return f.snapshotLocked(), nil
}

func (f *fakeAPI) UpdateSession(_ context.Context, _ string, id int64, req model.UpdateSessionRequest) (*model.QuizSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.CurrentQuestionIndex != nil {
		f.updates = append(f.updates, *req.CurrentQuestionIndex)
	} else {
		f.heartbeats = append(f.heartbeats, req.SessionToken)
	}
	if err := pop(&f.updateErrs); err != nil {
		return nil, err
	}
	if f.session == nil || id != attemptID {
		return nil, apiErr(http.StatusNotFound, response.ErrSessionNotFound)
	}
	if req.SessionToken != "" && req.SessionToken != f.session.PublicID {
		return nil, apiErr(http.StatusForbidden, response.ErrSessionTokenMismatch)
	}
	if f.session.Status != model.SessionStatusActive {
		return nil, apiErr(http.StatusBadRequest, response.ErrSessionNotActive)
	}
	if req.CurrentQuestionIndex != nil {
		target := min(*req.CurrentQuestionIndex, max(f.session.TotalQuestions-1, 0))
		f.session.CurrentQuestionIndex = max(f.session.CurrentQuestionIndex, target)
	}
	return f.snapshotLocked(), nil
}

func (f *fakeAPI) SubmitAnswer(ctx context.Context, _ string, _ int64, sub model.AnswerSubmission) error {
	f.mu.Lock()
	gate, started := f.submitGate, f.submitting
	f.submits = append(f.submits, sub)
	err := pop(&f.submitErrs)
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAPI) CompleteAttempt(context.Context, string, int64) (*model.AttemptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	if err := pop(&f.completeErr); err != nil {
		return nil, err
	}
	if f.completed {
		return nil, apiErr(http.StatusConflict, response.ErrAttemptAlreadyCompleted)
	}
	f.completed = true
	if f.session != nil && f.session.Status == model.SessionStatusActive {
		f.session.Status = model.SessionStatusCompleted
	}
	return &model.AttemptResult{AttemptID: attemptID, Status: model.AttemptStatusCompleted}, nil
}

func (f *fakeAPI) counts() (creates, starts, submits, updates, completes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.starts, len(f.submits), len(f.updates), f.completes
}

func (f *fakeAPI) heartbeatTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.heartbeats...)
}

func (f *fakeAPI) submitted() []model.AnswerSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AnswerSubmission(nil), f.submits...)
}

// ─── Navigator ─────────────────────────────────────────────────────────

type resultNav struct {
	slug      string
	attemptID int64
	role      attempt.Role
}

type fakeNav struct {
	mu        sync.Mutex
	replaced  []string
	results   []resultNav
	overviews []string
}

func (n *fakeNav) ReplaceSession(publicID string) {
	n.mu.Lock()
	n.replaced = append(n.replaced, publicID)
	n.mu.Unlock()
}

func (n *fakeNav) Results(slug string, attemptID int64, role attempt.Role) {
	n.mu.Lock()
	n.results = append(n.results, resultNav{slug, attemptID, role})
	n.mu.Unlock()
}

func (n *fakeNav) QuizOverview(_ string, toast string) {
	n.mu.Lock()
	n.overviews = append(n.overviews, toast)
	n.mu.Unlock()
}

func (n *fakeNav) snapshot() (replaced []string, results []resultNav, overviews []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...), append([]resultNav(nil), n.results...), append([]string(nil), n.overviews...)
}
