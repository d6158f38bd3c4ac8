package attempt_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/exstem-quiz/internal/attempt"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(api *fakeAPI, role attempt.Role) (*attempt.Controller, *fakeNav) {
	nav := &fakeNav{}
	hook := attempt.NewSessionHook(api, slug)
	return attempt.NewController(api, hook, nav, slug, role), nav
}

// mounted returns a controller already in progress on a session at index.
func mounted(t *testing.T, api *fakeAPI, index int) (*attempt.Controller, *fakeNav) {
	t.Helper()
	api.openSession(index)
	c, nav := newController(api, attempt.RoleStudent)
	require.NoError(t, c.Mount(context.Background(), sessionID))
	require.Equal(t, attempt.StateInProgress, c.State())
	return c, nav
}

func TestMount(t *testing.T) {
	ctx := context.Background()

	t.Run("no token waits on the guard without side effects", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := newController(api, attempt.RoleStudent)

		require.NoError(t, c.Mount(ctx, ""))
		assert.Equal(t, attempt.StateAwaitingSessionParam, c.State())

		creates, starts, submits, updates, completes := api.counts()
		assert.Zero(t, creates+starts+submits+updates+completes)
		replaced, results, overviews := nav.snapshot()
		assert.Empty(t, replaced)
		assert.Empty(t, results)
		assert.Empty(t, overviews)

		assert.ErrorIs(t, c.Mount(ctx, ""), attempt.ErrInvalidState)
	})

	t.Run("unresolvable token falls back to the guard", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := newController(api, attempt.RoleStudent)

		require.NoError(t, c.Mount(ctx, "stale-token"))
		assert.Equal(t, attempt.StateAwaitingSessionParam, c.State())
		assert.Equal(t, attempt.NoticeInvalidSession, c.View().Notice)

		creates, starts, _, _, _ := api.counts()
		assert.Zero(t, creates)
		assert.Zero(t, starts)
	})

	t.Run("network failure on resolve also falls back", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.openSession(0)
		api.resolveErr = errNetwork
		c, _ := newController(api, attempt.RoleStudent)

		require.NoError(t, c.Mount(ctx, sessionID))
		assert.Equal(t, attempt.StateAwaitingSessionParam, c.State())
	})

	t.Run("valid token hydrates at the server index", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 2)

		v := c.View()
		assert.Equal(t, attemptID, v.AttemptID)
		assert.Equal(t, 2, v.Index)
		assert.Equal(t, 4, v.Total)
		require.NotNil(t, v.Question)
		assert.Equal(t, "q-2", v.Question.ID)
		assert.True(t, c.Active())
	})

	t.Run("completed session goes straight to results", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.openSession(1)
		api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusCompleted })
		c, nav := newController(api, attempt.RoleStudent)

		require.NoError(t, c.Mount(ctx, sessionID))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Zero(t, completes)
	})

	t.Run("expired session runs the expiry path", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.openSession(1)
		api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusExpired })
		c, nav := newController(api, attempt.RoleStudent)

		require.NoError(t, c.Mount(ctx, sessionID))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Equal(t, 1, completes)
	})
}

func TestStartOrContinue(t *testing.T) {
	ctx := context.Background()

	t.Run("creates attempt and session", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.StartOrContinue(ctx))
		assert.Equal(t, attempt.StateInProgress, c.State())
		assert.Equal(t, 0, c.View().Index)

		creates, starts, _, _, _ := api.counts()
		assert.Equal(t, 1, creates)
		assert.Equal(t, 1, starts)
		replaced, _, _ := nav.snapshot()
		assert.Equal(t, []string{sessionID}, replaced)
	})

	t.Run("reuses the in-progress attempt", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.openSession(1)
		c, nav := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.StartOrContinue(ctx))
		assert.Equal(t, 1, c.View().Index)

		creates, starts, _, _, _ := api.counts()
		assert.Zero(t, creates)
		assert.Zero(t, starts)
		replaced, _, _ := nav.snapshot()
		assert.Equal(t, []string{sessionID}, replaced)
	})

	t.Run("existing session is fetched when start conflicts", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.openSession(2)
		api.currentErr = errNetwork
		c, nav := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.StartOrContinue(ctx))
		assert.Equal(t, attempt.StateInProgress, c.State())
		assert.Equal(t, 2, c.View().Index)
		replaced, _, _ := nav.snapshot()
		assert.Equal(t, []string{sessionID}, replaced)
	})

	t.Run("max attempts redirects to the overview", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.createErr = apiErr(http.StatusForbidden, response.ErrMaxAttemptsReached)
		c, nav := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.StartOrContinue(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())

		replaced, results, overviews := nav.snapshot()
		assert.Empty(t, replaced)
		assert.Empty(t, results)
		assert.Equal(t, []string{attempt.NoticeMaxAttempts}, overviews)
		_, starts, _, _, _ := api.counts()
		assert.Zero(t, starts)
	})

	t.Run("empty quiz never reaches in progress", func(t *testing.T) {
		api := newFakeAPI()
		c, _ := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.StartOrContinue(ctx))
		assert.Equal(t, attempt.StateNoQuestions, c.State())
		creates, _, _, _, _ := api.counts()
		assert.Zero(t, creates)
		assert.ErrorIs(t, c.Advance(ctx), attempt.ErrInvalidState)
	})

	t.Run("only from the guard screen", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := newController(api, attempt.RoleStudent)
		assert.ErrorIs(t, c.StartOrContinue(ctx), attempt.ErrInvalidState)
	})
}

func TestInitFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(defaultQuestions()...)
	api.listErr = errNetwork
	c, nav := newController(api, attempt.RoleStudent)
	require.NoError(t, c.Mount(ctx, ""))

	err := c.StartOrContinue(ctx)
	require.ErrorIs(t, err, errNetwork)
	assert.Equal(t, attempt.StateFailed, c.State())
	assert.ErrorIs(t, c.View().Err, errNetwork)

	require.NoError(t, c.Retry())
	assert.Equal(t, attempt.StateAwaitingSessionParam, c.State())
	creates, _, _, _, _ := api.counts()
	assert.Zero(t, creates, "retry never creates an attempt by itself")

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()
	require.NoError(t, c.StartOrContinue(ctx))
	assert.Equal(t, attempt.StateInProgress, c.State())

	assert.ErrorIs(t, c.Retry(), attempt.ErrInvalidState)
	require.NoError(t, c.BackToQuiz())
	_, _, overviews := nav.snapshot()
	assert.Equal(t, []string{""}, overviews)
}

func TestAnswerMapping(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(
		model.PublicQuestion{ID: "single", QuestionType: model.QuestionTypeSingleChoice, Options: []string{"a", "b", "c"}},
		model.PublicQuestion{ID: "multi", QuestionType: model.QuestionTypeMultipleChoice, Options: []string{"a", "b", "c"}},
		model.PublicQuestion{ID: "fill", QuestionType: model.QuestionTypeFillInBlank},
		model.PublicQuestion{ID: "blank", QuestionType: model.QuestionTypeFillInBlank},
	)
	c, nav := mounted(t, api, 0)

	require.NoError(t, c.SelectOption(2))
	assert.True(t, c.View().Answered)
	require.NoError(t, c.Advance(ctx))

	require.NoError(t, c.ToggleOption(0))
	require.NoError(t, c.ToggleOption(2))
	require.NoError(t, c.Advance(ctx))

	require.NoError(t, c.SetText("  paris  "))
	require.NoError(t, c.Advance(ctx))

	require.NoError(t, c.SetText("   "))
	assert.False(t, c.View().Answered)
	require.NoError(t, c.Advance(ctx))

	assert.Equal(t, []model.AnswerSubmission{
		{QuestionID: "single", UserAnswer: []string{"2"}},
		{QuestionID: "multi", UserAnswer: []string{"0", "2"}},
		{QuestionID: "fill", UserAnswer: []string{"paris"}},
	}, api.submitted())

	assert.Equal(t, attempt.StateTerminated, c.State())
	_, results, _ := nav.snapshot()
	assert.Equal(t, []resultNav{{slug, attemptID, attempt.RoleStudent}}, results)
}

func TestMultipleChoiceKeepsSelectionOrder(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(defaultQuestions()...)
	c, _ := mounted(t, api, 1)

	require.NoError(t, c.ToggleOption(2))
	require.NoError(t, c.ToggleOption(1))
	require.NoError(t, c.ToggleOption(0))
	require.NoError(t, c.ToggleOption(1))
	assert.Equal(t, []int{2, 0}, c.View().Selection.Options)

	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, []string{"2", "0"}, api.submitted()[0].UserAnswer)
	assert.Empty(t, c.View().Selection.Options, "selection is cleared on advance")
}

func TestInputValidation(t *testing.T) {
	api := newFakeAPI(defaultQuestions()...)
	c, _ := newController(api, attempt.RoleStudent)
	assert.ErrorIs(t, c.SelectOption(0), attempt.ErrInvalidState)

	c, _ = mounted(t, newFakeAPI(defaultQuestions()...), 0)
	assert.ErrorIs(t, c.ToggleOption(0), attempt.ErrWrongQuestionType)
	assert.ErrorIs(t, c.SetText("x"), attempt.ErrWrongQuestionType)
	assert.ErrorIs(t, c.SelectOption(3), attempt.ErrOptionOutOfRange)
	assert.ErrorIs(t, c.SelectOption(-1), attempt.ErrOptionOutOfRange)
	require.NoError(t, c.SelectOption(1))
	require.NoError(t, c.SelectOption(0))
	assert.Equal(t, 0, *c.View().Selection.Option)
}

func TestIndexIsMonotonic(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(defaultQuestions()...)
	c, _ := mounted(t, api, 0)

	last := len(defaultQuestions()) - 1
	prev := c.View().Index
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Advance(ctx))
		idx := c.View().Index
		assert.GreaterOrEqual(t, idx, prev)
		assert.LessOrEqual(t, idx, last)
		prev = idx
	}
	assert.Equal(t, last, prev)

	_, _, _, updates, _ := api.counts()
	assert.Equal(t, 3, updates)
	api.mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, api.updates)
	api.mu.Unlock()
}

func TestServerIndexWins(t *testing.T) {
	ctx := context.Background()

	t.Run("pushed snapshot ahead of the page", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 1)

		s := api.setServer(func(s *model.QuizSession) { s.CurrentQuestionIndex = 3 })
		require.NoError(t, c.ApplySnapshot(ctx, s))
		assert.Equal(t, 3, c.View().Index)
		assert.Equal(t, "q-3", c.View().Question.ID)
	})

	t.Run("resync after refresh", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 1)

		api.setServer(func(s *model.QuizSession) { s.CurrentQuestionIndex = 3 })
		require.NoError(t, c.Resync(ctx))
		assert.Equal(t, 3, c.View().Index)
	})

	t.Run("advance adopts a server position further ahead", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 0)

		api.setServer(func(s *model.QuizSession) { s.CurrentQuestionIndex = 3 })
		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, 3, c.View().Index)
	})

	t.Run("stale snapshot is ignored", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 0)

		stale := api.setServer(func(*model.QuizSession) {})
		require.NoError(t, c.Advance(ctx))
		require.Equal(t, 1, c.View().Index)

		stale.Status = model.SessionStatusCompleted
		require.NoError(t, c.ApplySnapshot(ctx, stale))
		assert.Equal(t, attempt.StateInProgress, c.State())
	})

	t.Run("lower index is never adopted", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 2)

		s := api.setServer(func(*model.QuizSession) {})
		s.CurrentQuestionIndex = 0
		require.NoError(t, c.ApplySnapshot(ctx, s))
		assert.Equal(t, 2, c.View().Index)
	})
}

func TestNoDoubleSubmit(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(defaultQuestions()...)
	c, _ := mounted(t, api, 0)

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	api.mu.Lock()
	api.submitGate, api.submitting = gate, started
	api.mu.Unlock()

	require.NoError(t, c.SelectOption(1))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = c.Advance(ctx)
	}()
	<-started

	assert.Equal(t, attempt.StateSubmitting, c.State())
	assert.ErrorIs(t, c.Advance(ctx), attempt.ErrBusy)
	assert.ErrorIs(t, c.SelectOption(2), attempt.ErrBusy)
	assert.ErrorIs(t, c.BackToQuiz(), attempt.ErrBusy)

	close(gate)
	wg.Wait()
	require.NoError(t, firstErr)

	_, _, submits, updates, _ := api.counts()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, c.View().Index)
}

func TestTransientFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("submit failure keeps question and selection", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.submitErrs = []error{errNetwork}
		c, _ := mounted(t, api, 0)
		require.NoError(t, c.SelectOption(2))

		require.ErrorIs(t, c.Advance(ctx), errNetwork)
		v := c.View()
		assert.Equal(t, attempt.StateInProgress, v.State)
		assert.Equal(t, 0, v.Index)
		assert.Equal(t, attempt.NoticeSubmitFailed, v.Notice)
		assert.Equal(t, 2, *v.Selection.Option)
		_, _, _, updates, _ := api.counts()
		assert.Zero(t, updates, "no index write after a failed submit")

		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, 1, c.View().Index)
		assert.Empty(t, c.View().Notice)
	})

	t.Run("index write failure does not advance", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.updateErrs = []error{errNetwork}
		c, _ := mounted(t, api, 0)
		require.NoError(t, c.SelectOption(0))

		require.ErrorIs(t, c.Advance(ctx), errNetwork)
		v := c.View()
		assert.Equal(t, 0, v.Index)
		assert.Equal(t, attempt.NoticeAdvanceFailed, v.Notice)

		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, 1, c.View().Index)
		assert.Len(t, api.submitted(), 2, "the answer is resubmitted on retry")
	})

	t.Run("last question completion failure is retryable", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.completeErr = []error{errNetwork}
		c, nav := mounted(t, api, 3)

		require.ErrorIs(t, c.Advance(ctx), errNetwork)
		assert.Equal(t, attempt.StateInProgress, c.State())
		assert.Equal(t, attempt.NoticeCompleteFailed, c.View().Notice)
		_, results, _ := nav.snapshot()
		assert.Empty(t, results)

		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ = nav.snapshot()
		assert.Len(t, results, 1)
	})

	t.Run("already completed on the last question still leaves for results", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := mounted(t, api, 3)
		api.mu.Lock()
		api.completed = true
		api.mu.Unlock()

		require.NoError(t, c.Advance(ctx))
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
	})
}

func TestSubmitRejectedBySession(t *testing.T) {
	ctx := context.Background()

	t.Run("expired session completes and leaves", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.submitErrs = []error{apiErr(http.StatusGone, response.ErrSessionExpired)}
		c, nav := mounted(t, api, 0)
		require.NoError(t, c.SelectOption(0))

		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Equal(t, 1, completes)
	})

	t.Run("attempt finished elsewhere", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.submitErrs = []error{apiErr(http.StatusConflict, response.ErrAttemptNotInProgress)}
		c, nav := mounted(t, api, 0)
		api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusCompleted })
		require.NoError(t, c.SelectOption(0))

		require.NoError(t, c.Advance(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Zero(t, completes)
	})
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent when already completed", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := mounted(t, api, 1)
		api.mu.Lock()
		api.completed = true
		api.mu.Unlock()

		require.NoError(t, c.OnExpired(ctx))
		require.NoError(t, c.OnExpired(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())

		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Equal(t, 1, completes)
	})

	t.Run("completion failure still navigates", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.completeErr = []error{errNetwork}
		c, nav := mounted(t, api, 1)

		require.NoError(t, c.OnExpired(ctx))
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
	})

	t.Run("no attempt yet", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.OnExpired(ctx))
		assert.Equal(t, attempt.StateAwaitingSessionParam, c.State())
		_, results, _ := nav.snapshot()
		assert.Empty(t, results)
	})

	t.Run("expired snapshot", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := mounted(t, api, 1)

		s := api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusExpired })
		require.NoError(t, c.ApplySnapshot(ctx, s))
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Equal(t, 1, completes)
	})
}

func TestCompletedElsewhere(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(defaultQuestions()...)
	api.openSession(0)
	c, nav := newController(api, attempt.RoleTutor)
	require.NoError(t, c.Mount(ctx, sessionID))

	s := api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusCompleted })
	require.NoError(t, c.ApplySnapshot(ctx, s))
	require.NoError(t, c.ApplySnapshot(ctx, s))

	assert.Equal(t, attempt.StateTerminated, c.State())
	assert.False(t, c.Active())
	_, results, _ := nav.snapshot()
	assert.Equal(t, []resultNav{{slug, attemptID, attempt.RoleTutor}}, results)
	_, _, _, _, completes := api.counts()
	assert.Zero(t, completes, "finalize is not called again")
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("index-less write carrying the session token", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := mounted(t, api, 1)
		api.setServer(func(s *model.QuizSession) { s.CurrentQuestionIndex = 2 })

		require.NoError(t, c.Heartbeat(ctx))
		assert.Equal(t, []string{sessionID}, api.heartbeatTokens())
		_, _, _, updates, _ := api.counts()
		assert.Zero(t, updates, "the pointer is not written")
		assert.Equal(t, 2, c.View().Index, "the returned snapshot is applied")
	})

	t.Run("expired on the server", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.updateErrs = []error{apiErr(http.StatusGone, response.ErrSessionExpired)}
		c, nav := mounted(t, api, 0)

		require.NoError(t, c.Heartbeat(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
	})

	t.Run("completed on another device", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, nav := mounted(t, api, 0)
		api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusCompleted })

		require.NoError(t, c.Heartbeat(ctx))
		assert.Equal(t, attempt.StateTerminated, c.State())
		_, results, _ := nav.snapshot()
		assert.Len(t, results, 1)
		_, _, _, _, completes := api.counts()
		assert.Zero(t, completes)
	})

	t.Run("network failure is returned and changes nothing", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		api.updateErrs = []error{errNetwork}
		c, _ := mounted(t, api, 0)

		assert.ErrorIs(t, c.Heartbeat(ctx), errNetwork)
		assert.Equal(t, attempt.StateInProgress, c.State())
	})

	t.Run("nothing to report before an attempt", func(t *testing.T) {
		api := newFakeAPI(defaultQuestions()...)
		c, _ := newController(api, attempt.RoleStudent)
		require.NoError(t, c.Mount(ctx, ""))

		require.NoError(t, c.Heartbeat(ctx))
		assert.Empty(t, api.heartbeatTokens())
	})
}

func TestViewRemaining(t *testing.T) {
	api := newFakeAPI(defaultQuestions()...)
	api.limit = intPtr(10)
	c, _ := mounted(t, api, 0)

	v := c.View()
	require.True(t, v.Timed)
	assert.InDelta(t, (10*time.Minute - 2*time.Second).Seconds(), v.Remaining.Seconds(), 2)
}

func intPtr(v int) *int { return &v }
