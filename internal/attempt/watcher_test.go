package attempt_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stemsi/exstem-quiz/internal/attempt"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	active   atomic.Bool
	resyncs    atomic.Int32
	heartbeats atomic.Int32
	expiries   atomic.Int32

	mu      sync.Mutex
	applied []*model.QuizSession
	failing bool
}

func (f *fakeTarget) Active() bool { return f.active.Load() }

func (f *fakeTarget) Resync(context.Context) error {
	f.resyncs.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errNetwork
	}
	return nil
}

func (f *fakeTarget) Heartbeat(context.Context) error {
	f.heartbeats.Add(1)
	return nil
}

func (f *fakeTarget) OnExpired(context.Context) error {
	f.expiries.Add(1)
	// The controller leaves the active states once expiry starts.
	f.active.Store(false)
	return nil
}

func (f *fakeTarget) ApplySnapshot(_ context.Context, s *model.QuizSession) error {
	f.mu.Lock()
	f.applied = append(f.applied, s)
	f.mu.Unlock()
	return nil
}

func (f *fakeTarget) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

type fakeExpiry struct{ expired atomic.Bool }

func (f *fakeExpiry) IsExpired(time.Time) bool { return f.expired.Load() }

func runWatcher(t *testing.T, w *attempt.Watcher, pushes <-chan *model.QuizSession) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, pushes) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcher_PageEvents(t *testing.T) {
	target := &fakeTarget{}
	target.failing = true
	w := attempt.NewWatcher(target, &fakeExpiry{}, attempt.WithHeartbeat(0), attempt.WithTick(time.Hour))
	stop := runWatcher(t, w, nil)
	defer stop()

	// Inactive pages are left alone.
	w.Notify(attempt.EventVisible)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, target.resyncs.Load())

	target.active.Store(true)
	w.Notify(attempt.EventVisible)
	w.Notify(attempt.EventRestored)
	require.Eventually(t, func() bool { return target.resyncs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_Heartbeat(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)
	w := attempt.NewWatcher(target, &fakeExpiry{}, attempt.WithHeartbeat(10*time.Millisecond), attempt.WithTick(time.Hour))
	stop := runWatcher(t, w, nil)
	defer stop()

	require.Eventually(t, func() bool { return target.heartbeats.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, target.resyncs.Load(), "heartbeats write, they do not refetch")

	target.active.Store(false)
	time.Sleep(30 * time.Millisecond)
	n := target.heartbeats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, target.heartbeats.Load(), "no heartbeat once the page is inactive")
}

func TestWatcher_Expiry(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)
	clock := &fakeExpiry{}
	w := attempt.NewWatcher(target, clock, attempt.WithHeartbeat(0), attempt.WithTick(20*time.Millisecond))
	stop := runWatcher(t, w, nil)
	defer stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, target.expiries.Load())

	clock.expired.Store(true)
	require.Eventually(t, func() bool { return target.expiries.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), target.expiries.Load(), "fires once the page is no longer active")
}

func TestWatcher_Pushes(t *testing.T) {
	target := &fakeTarget{}
	w := attempt.NewWatcher(target, &fakeExpiry{}, attempt.WithHeartbeat(0), attempt.WithTick(time.Hour))
	pushes := make(chan *model.QuizSession, 2)
	stop := runWatcher(t, w, pushes)
	defer stop()

	pushes <- &model.QuizSession{AttemptID: attemptID, CurrentQuestionIndex: 1}
	pushes <- &model.QuizSession{AttemptID: attemptID, CurrentQuestionIndex: 2}
	close(pushes)

	require.Eventually(t, func() bool { return target.appliedCount() == 2 }, time.Second, 5*time.Millisecond)

	// A closed stream leaves the watcher running on its other triggers.
	target.active.Store(true)
	w.Notify(attempt.EventVisible)
	require.Eventually(t, func() bool { return target.resyncs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_DrivesController(t *testing.T) {
	api := newFakeAPI(defaultQuestions()...)
	c, nav := mounted(t, api, 0)

	w := attempt.NewWatcher(c, &fakeExpiry{}, attempt.WithHeartbeat(0), attempt.WithTick(time.Hour))
	pushes := make(chan *model.QuizSession, 1)
	stop := runWatcher(t, w, pushes)
	defer stop()

	api.setServer(func(s *model.QuizSession) { s.CurrentQuestionIndex = 2 })
	w.Notify(attempt.EventVisible)
	require.Eventually(t, func() bool { return c.View().Index == 2 }, time.Second, 5*time.Millisecond)

	pushes <- api.setServer(func(s *model.QuizSession) { s.Status = model.SessionStatusCompleted })
	require.Eventually(t, func() bool { return c.State() == attempt.StateTerminated }, time.Second, 5*time.Millisecond)
	_, results, _ := nav.snapshot()
	assert.Len(t, results, 1)
}
