package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Event is a page lifecycle signal that may mean local timers drifted.
type Event int

const (
	// EventVisible fires when the page becomes visible again.
	EventVisible Event = iota + 1
	// EventRestored fires when a suspended page is resumed.
	EventRestored
)

func (e Event) String() string {
	switch e {
	case EventVisible:
		return "visible"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Target is what the watcher keeps in sync. *Controller satisfies it.
type Target interface {
	Active() bool
	Resync(ctx context.Context) error
	Heartbeat(ctx context.Context) error
	OnExpired(ctx context.Context) error
	ApplySnapshot(ctx context.Context, s *model.QuizSession) error
}

// ExpiryClock reports local expiry. *SessionHook satisfies it.
type ExpiryClock interface {
	IsExpired(now time.Time) bool
}

// Watcher resyncs the session on visibility events, sends a periodic
// heartbeat, applies pushed snapshots and fires the expiry signal when the
// countdown runs out. Sync failures are ignored; the next trigger tries again.
type Watcher struct {
	target    Target
	clock     ExpiryClock
	events    chan Event
	heartbeat time.Duration
	tick      time.Duration
	now       func() time.Time
	log       zerolog.Logger

	wg sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithHeartbeat sets the heartbeat interval; zero disables it.
func WithHeartbeat(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.heartbeat = d }
}

// WithTick sets how often the expiry countdown is checked.
func WithTick(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.tick = d }
}

func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) { w.now = now }
}

func WithWatcherLogger(log zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log.With().Str("component", "attempt_watcher").Logger() }
}

func NewWatcher(target Target, clock ExpiryClock, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		target:    target,
		clock:     clock,
		events:    make(chan Event, 8),
		heartbeat: 10 * time.Second,
		tick:      time.Second,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify queues a lifecycle event. It never blocks; a full queue already
// holds a pending resync.
func (w *Watcher) Notify(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

// Run watches until ctx is cancelled and waits for the resyncs it started.
// pushes may be nil when no push stream is available.
func (w *Watcher) Run(ctx context.Context, pushes <-chan *model.QuizSession) error {
	defer w.wg.Wait()

	expiry := time.NewTicker(w.tick)
	defer expiry.Stop()

	var beat <-chan time.Time
	if w.heartbeat > 0 {
		t := time.NewTicker(w.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-w.events:
			if w.target.Active() {
				w.log.Debug().Stringer("event", ev).Msg("Resync on page event")
				w.resync(ctx)
			}

		case <-beat:
			if w.target.Active() {
				w.async(ctx, w.target.Heartbeat)
			}

		case s, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			w.async(ctx, func(ctx context.Context) error {
				return w.target.ApplySnapshot(ctx, s)
			})

		case <-expiry.C:
			if w.target.Active() && w.clock.IsExpired(w.now()) {
				w.log.Info().Msg("Session time is up")
				w.async(ctx, w.target.OnExpired)
			}
		}
	}
}

func (w *Watcher) resync(ctx context.Context) {
	w.async(ctx, w.target.Resync)
}

// async runs fn in the background, logging and dropping its error.
func (w *Watcher) async(ctx context.Context, fn func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			w.log.Debug().Err(err).Msg("Background session sync failed")
		}
	}()
}
