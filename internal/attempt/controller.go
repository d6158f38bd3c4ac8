// Package attempt drives a quiz attempt from the taker's side: the page
// state machine, the cached server session and the timers that keep the two
// in step.
package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quizclient"
	"github.com/stemsi/exstem-quiz/internal/response"
)

var (
	ErrBusy              = errors.New("attempt: another operation is in progress")
	ErrInvalidState      = errors.New("attempt: operation not allowed in the current state")
	ErrWrongQuestionType = errors.New("attempt: input does not match the question type")
	ErrOptionOutOfRange  = errors.New("attempt: option index out of range")
)

// Notices shown to the taker alongside a state.
const (
	NoticeInvalidSession = "This session link is invalid or has expired. Start or continue the quiz to get a new one."
	NoticeMaxAttempts    = "You have reached the maximum number of attempts for this quiz."
	NoticeSubmitFailed   = "Failed to submit your answer. Please try again."
	NoticeAdvanceFailed  = "Failed to save your progress. Please try again."
	NoticeCompleteFailed = "Failed to complete the quiz. Please try again."
)

// API is the quiz API surface the attempt page consumes.
// *quizclient.Client satisfies it.
type API interface {
	SessionAPI
	ResolveSession(ctx context.Context, slug, publicID string) (*model.ResolvedSession, error)
	CurrentAttempt(ctx context.Context, slug string) (*model.CurrentAttempt, error)
	CreateAttempt(ctx context.Context, slug string) (*model.Attempt, error)
	ListQuestions(ctx context.Context, slug string) ([]model.PublicQuestion, error)
	SubmitAnswer(ctx context.Context, slug string, attemptID int64, sub model.AnswerSubmission) error
	CompleteAttempt(ctx context.Context, slug string, attemptID int64) (*model.AttemptResult, error)
}

// Navigator performs the page's navigation side effects.
type Navigator interface {
	// ReplaceSession rewrites the current location to carry the session token.
	ReplaceSession(publicID string)
	// Results leaves the attempt for its results view.
	Results(slug string, attemptID int64, role Role)
	// QuizOverview leaves the attempt for the quiz page, optionally with a toast.
	QuizOverview(slug, toast string)
}

// View is a consistent copy of the controller's state for rendering.
type View struct {
	State     State
	AttemptID int64
	Index     int
	Total     int
	Question  *model.PublicQuestion
	Selection Selection
	Answered  bool
	Notice    string
	Err       error
	Remaining time.Duration
	Timed     bool
}

// Controller is the attempt page state machine. All methods are safe for
// concurrent use; the busy states act as the re-entrancy latch, so a second
// operation started while one is in flight fails with ErrBusy and performs
// no network calls.
type Controller struct {
	api  API
	hook *SessionHook
	nav  Navigator
	slug string
	role Role
	log  zerolog.Logger
	now  func() time.Time

	mu        sync.Mutex
	state     State
	attemptID int64
	questions []model.PublicQuestion
	index     int
	sel       Selection
	notice    string
	err       error
	expiring  bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "attempt_controller").Logger() }
}

func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(api API, hook *SessionHook, nav Navigator, slug string, role Role, opts ...Option) *Controller {
	c := &Controller{
		api:  api,
		hook: hook,
		nav:  nav,
		slug: slug,
		role: role,
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ─── Lifecycle ─────────────────────────────────────────────────────────

// Mount enters the page. Without a session token the page waits on the
// guard screen; an unresolvable token leads there too. Nothing is created.
func (c *Controller) Mount(ctx context.Context, sessionToken string) error {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if sessionToken == "" {
		c.state = StateAwaitingSessionParam
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	resolved, err := c.api.ResolveSession(ctx, c.slug, sessionToken)
	if err != nil || resolved == nil || resolved.AttemptID == 0 {
		c.log.Warn().Err(err).Msg("Session token did not resolve")
		c.mu.Lock()
		if c.state == StateInitializing {
			c.state = StateAwaitingSessionParam
			c.notice = NoticeInvalidSession
		}
		c.mu.Unlock()
		return nil
	}

	return c.initialize(ctx, resolved.AttemptID, nil)
}

// StartOrContinue is the guard screen's action. It reuses the taker's
// in-progress attempt when there is one and creates an attempt otherwise.
func (c *Controller) StartOrContinue(ctx context.Context) error {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateAwaitingSessionParam {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateInitializing
	c.notice = ""
	c.err = nil
	c.mu.Unlock()

	questions, err := c.api.ListQuestions(ctx, c.slug)
	if err != nil {
		return c.fail(err)
	}
	if len(questions) == 0 {
		return c.settle(StateNoQuestions)
	}

	var (
		attemptID int64
		token     string
	)
	cur, err := c.api.CurrentAttempt(ctx, c.slug)
	if err != nil {
		c.log.Warn().Err(err).Msg("Current attempt lookup failed, treating as none")
	} else if cur.HasCurrentAttempt && cur.Attempt != nil {
		attemptID = cur.Attempt.ID
		if cur.Session != nil {
			token = cur.Session.PublicID
		}
	}

	if attemptID == 0 {
		a, err := c.api.CreateAttempt(ctx, c.slug)
		switch {
		case quizclient.IsMaxAttempts(err):
			c.mu.Lock()
			c.state = StateTerminated
			c.mu.Unlock()
			c.nav.QuizOverview(c.slug, NoticeMaxAttempts)
			return nil
		case quizclient.IsNoQuestions(err):
			return c.settle(StateNoQuestions)
		case err != nil:
			return c.fail(err)
		}
		attemptID = a.ID
	}

	if token == "" {
		s, err := c.hook.StartSession(ctx, attemptID)
		if quizclient.IsSessionExists(err) {
			s, err = c.hook.GetSession(ctx, attemptID)
		}
		if err != nil {
			return c.fail(err)
		}
		token = s.PublicID
	}

	c.nav.ReplaceSession(token)
	return c.initialize(ctx, attemptID, questions)
}

// initialize runs with the Initializing latch held and hydrates the page from
// the server session.
func (c *Controller) initialize(ctx context.Context, attemptID int64, questions []model.PublicQuestion) error {
	c.mu.Lock()
	c.attemptID = attemptID
	c.mu.Unlock()

	if questions == nil {
		qs, err := c.api.ListQuestions(ctx, c.slug)
		if err != nil {
			return c.fail(err)
		}
		questions = qs
	}
	if len(questions) == 0 {
		return c.settle(StateNoQuestions)
	}

	s, err := c.hook.GetSession(ctx, attemptID)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return nil
	}
	c.questions = questions

	switch {
	case s.Status == model.SessionStatusCompleted:
		c.mu.Unlock()
		c.terminate(attemptID)
		return nil
	case s.Status == model.SessionStatusExpired || s.IsExpired:
		c.mu.Unlock()
		return c.expire(ctx)
	}

	c.index = clampIndex(s.CurrentQuestionIndex, len(questions))
	c.sel = Selection{}
	c.state = StateInProgress
	c.mu.Unlock()

	c.log.Debug().
		Int64("attempt_id", attemptID).
		Int("index", s.CurrentQuestionIndex).
		Msg("Attempt hydrated")
	return nil
}

// Retry leaves the error screen for the guard screen. It never creates an
// attempt by itself.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFailed {
		return ErrInvalidState
	}
	c.state = StateAwaitingSessionParam
	c.attemptID = 0
	c.err = nil
	c.notice = ""
	c.expiring = false
	c.hook.Reset()
	return nil
}

// BackToQuiz abandons the page for the quiz overview.
func (c *Controller) BackToQuiz() error {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state == StateTerminated {
		c.mu.Unlock()
		return nil
	}
	c.state = StateTerminated
	c.mu.Unlock()

	c.nav.QuizOverview(c.slug, "")
	return nil
}

// ─── Answer input ──────────────────────────────────────────────────────

// SelectOption picks the answer of a single choice question.
func (c *Controller) SelectOption(opt int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, err := c.currentLocked()
	if err != nil {
		return err
	}
	if q.QuestionType != model.QuestionTypeSingleChoice {
		return ErrWrongQuestionType
	}
	if opt < 0 || opt >= len(q.Options) {
		return ErrOptionOutOfRange
	}
	c.sel.Option = &opt
	return nil
}

// ToggleOption adds or removes an option of a multiple choice question.
func (c *Controller) ToggleOption(opt int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, err := c.currentLocked()
	if err != nil {
		return err
	}
	if q.QuestionType != model.QuestionTypeMultipleChoice {
		return ErrWrongQuestionType
	}
	if opt < 0 || opt >= len(q.Options) {
		return ErrOptionOutOfRange
	}
	c.sel.toggle(opt)
	return nil
}

// SetText sets the answer of a fill in the blank question.
func (c *Controller) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, err := c.currentLocked()
	if err != nil {
		return err
	}
	if q.QuestionType != model.QuestionTypeFillInBlank {
		return ErrWrongQuestionType
	}
	c.sel.Text = text
	return nil
}

func (c *Controller) currentLocked() (*model.PublicQuestion, error) {
	if c.state.busy() {
		return nil, ErrBusy
	}
	if c.state != StateInProgress {
		return nil, ErrInvalidState
	}
	return &c.questions[c.index], nil
}

// ─── Advance ───────────────────────────────────────────────────────────

// Advance submits the current answer (unanswered questions submit nothing)
// and moves on. The server session is written before the local index moves;
// a failed write leaves the page on the same question. On the last question
// the attempt is completed and the page leaves for the results.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateInProgress {
		c.mu.Unlock()
		return ErrInvalidState
	}
	q := c.questions[c.index]
	answer, answered := BuildAnswer(&q, c.sel)
	idx, last, id := c.index, len(c.questions)-1, c.attemptID
	c.state = StateSubmitting
	c.notice = ""
	c.err = nil
	c.mu.Unlock()

	if answered {
		sub := model.AnswerSubmission{QuestionID: q.ID, UserAnswer: answer}
		if err := c.api.SubmitAnswer(ctx, c.slug, id, sub); err != nil {
			return c.advanceFailed(ctx, err, NoticeSubmitFailed)
		}
	}

	if idx < last {
		s, err := c.hook.UpdateSession(ctx, id, idx+1)
		if errors.Is(err, ErrIndexRegression) {
			// The server is already past idx+1; adopt its position.
			s, err = c.hook.Snapshot(), nil
		}
		if err != nil {
			return c.advanceFailed(ctx, err, NoticeAdvanceFailed)
		}

		c.mu.Lock()
		if c.state != StateSubmitting {
			c.mu.Unlock()
			return nil
		}
		c.state = StateInProgress
		c.index = clampIndex(max(idx+1, s.CurrentQuestionIndex), len(c.questions))
		c.sel = Selection{}
		c.mu.Unlock()

		if s.Status != model.SessionStatusActive {
			return c.ApplySnapshot(ctx, s)
		}
		return nil
	}

	c.mu.Lock()
	if c.state != StateSubmitting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateCompleting
	c.mu.Unlock()

	_, err := c.api.CompleteAttempt(ctx, c.slug, id)

	c.mu.Lock()
	if c.state != StateCompleting {
		c.mu.Unlock()
		return nil
	}
	if err != nil && !quizclient.IsAlreadyCompleted(err) && !c.expiring {
		// Stay on the last question; pressing advance again retries.
		c.state = StateInProgress
		c.notice = NoticeCompleteFailed
		c.err = err
		c.mu.Unlock()
		c.log.Warn().Err(err).Int64("attempt_id", id).Msg("Completion failed")
		return err
	}
	c.mu.Unlock()

	c.terminate(id)
	return nil
}

func (c *Controller) advanceFailed(ctx context.Context, err error, notice string) error {
	switch {
	case quizclient.HasCode(err, response.ErrSessionExpired):
		return c.expire(ctx)
	case quizclient.HasCode(err, response.ErrAttemptNotInProgress),
		quizclient.HasCode(err, response.ErrSessionNotActive):
		// Finished elsewhere; the session says how.
		if rerr := c.Resync(ctx); rerr == nil && c.State().terminal() {
			return nil
		}
	}

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.state = StateInProgress
		c.notice = notice
		c.err = err
	}
	c.mu.Unlock()

	c.log.Warn().Err(err).Msg("Advance failed")
	return err
}

// ─── Server signals ────────────────────────────────────────────────────

// OnExpired is the timer's expiry signal. Completion is best effort and the
// page goes to the results whatever the outcome.
func (c *Controller) OnExpired(ctx context.Context) error {
	return c.expire(ctx)
}

func (c *Controller) expire(ctx context.Context) error {
	c.mu.Lock()
	if c.state.terminal() || c.attemptID == 0 || c.expiring {
		c.mu.Unlock()
		return nil
	}
	c.expiring = true
	if c.state == StateCompleting {
		// The running completion redirects whatever it gets back.
		c.mu.Unlock()
		return nil
	}
	c.state = StateCompleting
	id := c.attemptID
	c.mu.Unlock()

	if _, err := c.api.CompleteAttempt(ctx, c.slug, id); err != nil {
		c.log.Warn().Err(err).Int64("attempt_id", id).Msg("Completion after expiry failed")
	}

	c.terminate(id)
	return nil
}

// ApplySnapshot evaluates a session snapshot against the page: completion
// elsewhere leaves for the results, expiry runs the expiry path, and a
// server index ahead of the page moves the page forward.
//
// The server wins a disagreement on the index only forward. The server
// pointer never moves backward, so a server index behind the page is a
// stale read and is ignored rather than adopted.
func (c *Controller) ApplySnapshot(ctx context.Context, s *model.QuizSession) error {
	if s == nil {
		return nil
	}

	c.mu.Lock()
	if c.attemptID == 0 || s.AttemptID != c.attemptID || c.state.terminal() {
		c.mu.Unlock()
		return nil
	}
	if !c.hook.Apply(s) {
		c.mu.Unlock()
		return nil
	}
	id := c.attemptID

	switch {
	case s.Status == model.SessionStatusCompleted:
		c.mu.Unlock()
		c.terminate(id)
		return nil
	case s.Status == model.SessionStatusExpired || s.IsExpired:
		c.mu.Unlock()
		return c.expire(ctx)
	}

	if c.state == StateInProgress && s.CurrentQuestionIndex > c.index {
		c.index = clampIndex(s.CurrentQuestionIndex, len(c.questions))
		c.sel = Selection{}
	}
	c.mu.Unlock()
	return nil
}

// Resync refetches the session and applies it. It does nothing before an
// attempt is known or after the page has been left.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	id, st := c.attemptID, c.state
	c.mu.Unlock()

	if id == 0 || st.terminal() {
		return nil
	}
	s, err := c.hook.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return c.ApplySnapshot(ctx, s)
}

// Heartbeat reports activity and applies the snapshot the server returns.
// A session the server has closed is resolved like a failed advance.
func (c *Controller) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	id, st := c.attemptID, c.state
	c.mu.Unlock()

	if id == 0 || st.terminal() {
		return nil
	}
	s, err := c.hook.Heartbeat(ctx, id)
	switch {
	case err == nil:
		return c.ApplySnapshot(ctx, s)
	case quizclient.HasCode(err, response.ErrSessionExpired):
		return c.expire(ctx)
	case quizclient.HasCode(err, response.ErrSessionNotActive):
		return c.Resync(ctx)
	}
	return err
}

// ─── Accessors ─────────────────────────────────────────────────────────

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether an attempt is being taken on this page.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID != 0 && (c.state == StateInProgress || c.state == StateSubmitting)
}

// View returns a copy of everything needed to render the page.
func (c *Controller) View() View {
	c.mu.Lock()
	v := View{
		State:     c.state,
		AttemptID: c.attemptID,
		Index:     c.index,
		Total:     len(c.questions),
		Selection: Selection{Option: c.sel.Option, Options: append([]int(nil), c.sel.Options...), Text: c.sel.Text},
		Notice:    c.notice,
		Err:       c.err,
	}
	if c.index < len(c.questions) {
		q := c.questions[c.index]
		v.Question = &q
		v.Answered = c.sel.Answered(&q)
	}
	c.mu.Unlock()

	v.Remaining, v.Timed = c.hook.RemainingTime(c.now())
	return v
}

// ─── Helpers ───────────────────────────────────────────────────────────

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	if c.state == StateInitializing {
		c.state = StateFailed
		c.err = err
	}
	c.mu.Unlock()
	c.log.Warn().Err(err).Msg("Attempt initialization failed")
	return err
}

func (c *Controller) settle(st State) error {
	c.mu.Lock()
	if c.state == StateInitializing {
		c.state = st
	}
	c.mu.Unlock()
	return nil
}

// terminate leaves for the results exactly once.
func (c *Controller) terminate(attemptID int64) {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return
	}
	c.state = StateTerminated
	c.mu.Unlock()

	c.nav.Results(c.slug, attemptID, c.role)
}

func clampIndex(i, n int) int {
	if i < 0 || n == 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
