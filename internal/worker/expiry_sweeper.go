package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
)

const (
	SweepBatchSize  = 100
	SweepMaxBatches = 20
	SweepLockTTL    = 25 * time.Second
	SweepTimeout    = 20 * time.Second
)

// SessionExpirer is the part of the session service the sweeper drives.
type SessionExpirer interface {
	OverdueAttempts(ctx context.Context, limit int) ([]int64, error)
	ExpireIfOverdue(ctx context.Context, attemptID int64) (bool, error)
}

// ExpirySweeper expires sessions nobody is watching. Open clients expire
// their own session on read; this covers abandoned tabs.
type ExpirySweeper struct {
	sessions SessionExpirer
	rdb      *redis.Client
	schedule string
	log      zerolog.Logger
}

func NewExpirySweeper(sessions SessionExpirer, rdb *redis.Client, schedule string, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		sessions: sessions,
		rdb:      rdb,
		schedule: schedule,
		log:      log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// ----------------------------------------------------------------
// Scheduler
// ----------------------------------------------------------------

// Start runs the sweep on its cron schedule until ctx is cancelled, then
// waits for a running sweep and drains once more.
func (w *ExpirySweeper) Start(ctx context.Context) error {
	clog := cronLogger{log: w.log}
	c := cron.New(cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))

	if _, err := c.AddFunc(w.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, SweepTimeout)
		defer cancel()
		w.Sweep(runCtx)
	}); err != nil {
		return err
	}

	w.log.Info().Str("schedule", w.schedule).Msg("ExpirySweeper started")
	c.Start()

	<-ctx.Done()
	w.log.Info().Msg("Shutdown requested. Draining overdue sessions...")
	<-c.Stop().Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), SweepTimeout)
	defer cancel()
	w.Sweep(drainCtx)
	return nil
}

// ----------------------------------------------------------------
// Sweep
// ----------------------------------------------------------------

// Sweep expires overdue sessions in batches and returns how many it expired.
// Only one instance sweeps at a time; a held lock makes this a no-op.
func (w *ExpirySweeper) Sweep(ctx context.Context) int {
	if !w.acquire(ctx) {
		return 0
	}
	defer w.release()

	expired := 0
	for range SweepMaxBatches {
		ids, err := w.sessions.OverdueAttempts(ctx, SweepBatchSize)
		if err != nil {
			w.log.Error().Err(err).Msg("List overdue sessions failed")
			break
		}

		progressed := 0
		for _, id := range ids {
			ok, err := w.sessions.ExpireIfOverdue(ctx, id)
			if err != nil {
				w.log.Error().Err(err).Int64("attempt_id", id).Msg("Expire session failed")
				continue
			}
			if ok {
				progressed++
			}
		}
		expired += progressed

		// A short batch means the backlog is empty; a batch with no progress
		// would return the same IDs again.
		if len(ids) < SweepBatchSize || progressed == 0 || ctx.Err() != nil {
			break
		}
	}

	if expired > 0 {
		w.log.Info().Int("expired", expired).Msg("Expired overdue sessions")
	}
	return expired
}

func (w *ExpirySweeper) acquire(ctx context.Context) bool {
	ok, err := w.rdb.SetNX(ctx, config.WorkerKey.ExpirySweepLock, "1", SweepLockTTL).Result()
	if err != nil {
		// Without Redis there is no coordination; expiry is idempotent anyway.
		w.log.Warn().Err(err).Msg("Sweep lock unavailable, sweeping unlocked")
		return true
	}
	return ok
}

func (w *ExpirySweeper) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.rdb.Del(ctx, config.WorkerKey.ExpirySweepLock)
}

// cronLogger routes robfig/cron diagnostics through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
