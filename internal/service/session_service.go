package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// MaxSpentDelta caps the time one session update may add to the time spent,
// so a tab left open in the background does not count as work.
const MaxSpentDelta = 60 * time.Second

// Session errors.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExists        = errors.New("session already exists")
	ErrSessionExpired       = errors.New("session has expired")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionTokenMismatch = errors.New("invalid session token")

	errSubmitPending = errors.New("auto-submit pending")
)

// SessionService owns the server-authoritative session of each attempt:
// position, timing and status. Every change is published on the attempt's
// Redis channel so connected clients see it without polling.
type SessionService struct {
	sessions  SessionStore
	attempts  AttemptStore
	answers   AnswerStore
	quizzes   *QuizService
	finalizer *Finalizer
	rdb       *redis.Client
	log       zerolog.Logger
	now       func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions SessionStore,
	attempts AttemptStore,
	answers AnswerStore,
	quizzes *QuizService,
	finalizer *Finalizer,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		attempts:  attempts,
		answers:   answers,
		quizzes:   quizzes,
		finalizer: finalizer,
		rdb:       rdb,
		log:       log.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

// Start opens the session of an in-progress attempt. A session that already
// exists is never replaced; callers fall back to Get.
func (s *SessionService) Start(ctx context.Context, slug string, attemptID int64, userID string) (*model.QuizSession, error) {
	attempt, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotInProgress
	}

	if _, err := s.sessions.GetByAttempt(ctx, attemptID); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	quiz, err := s.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizzes.ListQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}

	// Resume where the answers stop, so a lost session does not replay
	// questions that were already submitted.
	answered, err := s.answers.CountByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	index := answered
	if last := len(questions) - 1; index > last {
		index = max(last, 0)
	}

	now := s.now()
	session := &model.QuizSession{
		PublicID:             uuid.New().String(),
		AttemptID:            attemptID,
		QuizID:               quiz.ID,
		UserID:               userID,
		Status:               model.SessionStatusActive,
		TimeLimitMinutes:     quiz.TimeLimitMinutes,
		CurrentQuestionIndex: index,
		TotalQuestions:       len(questions),
		StartedAt:            now,
	}
	session.ExpiresAt = session.Deadline()

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another tab won the insert.
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if session.ExpiresAt != nil {
		if err := s.rdb.ZAdd(ctx, config.WorkerKey.SessionDeadlines, redis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: strconv.FormatInt(attemptID, 10),
		}).Err(); err != nil {
			// The sweeper falls back to PostgreSQL, so this only delays expiry.
			s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to register session deadline")
		}
	}

	session.Stamp(now)
	s.publish(ctx, session)

	s.log.Info().
		Int64("attempt_id", attemptID).
		Int("start_index", index).
		Msg("Session started")

	return session, nil
}

// Get returns the current snapshot. An active session found past its
// deadline is expired on the spot and its attempt auto-submitted.
func (s *SessionService) Get(ctx context.Context, slug string, attemptID int64, userID string) (*model.QuizSession, error) {
	if _, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID); err != nil {
		return nil, err
	}

	session, err := s.getByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.overdue(session, now) {
		return s.expireOnRead(ctx, session, now)
	}

	session.Stamp(now)
	return session, nil
}

// Update records activity, accumulates time spent and advances the question
// pointer. The pointer is clamped to [current, total-1]; a backward write
// leaves it unchanged. A request without an index is a heartbeat.
func (s *SessionService) Update(ctx context.Context, slug string, attemptID int64, userID string, req *model.UpdateSessionRequest) (*model.QuizSession, error) {
	if _, err := loadAttempt(ctx, s.attempts, slug, attemptID, userID); err != nil {
		return nil, err
	}

	session, err := s.getByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if req.SessionToken != "" && req.SessionToken != session.PublicID {
		return nil, ErrSessionTokenMismatch
	}

	now := s.now()
	if s.overdue(session, now) {
		if _, err := s.expireOnRead(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	if session.Status != model.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	updated, err := s.sessions.Touch(ctx, session.ID, req.CurrentQuestionIndex, spentDelta(session, req, now), now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status flipped between the read and the write.
			return nil, ErrSessionNotActive
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	updated.Stamp(now)
	s.publish(ctx, updated)
	return updated, nil
}

// Resolve maps a shareable session token to its attempt. Tokens belonging to
// another user or another quiz resolve to ErrSessionNotFound.
func (s *SessionService) Resolve(ctx context.Context, slug, publicID, userID string) (*model.ResolvedSession, error) {
	if _, err := uuid.Parse(publicID); err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by public id: %w", err)
	}

	quiz, err := s.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID || session.QuizID != quiz.ID {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	if s.overdue(session, now) {
		if session, err = s.expireOnRead(ctx, session, now); err != nil {
			return nil, err
		}
	} else {
		session.Stamp(now)
	}

	return &model.ResolvedSession{AttemptID: session.AttemptID, Session: session}, nil
}

// ForAttempt returns the stamped session of an attempt, or nil if it has none.
func (s *SessionService) ForAttempt(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	session, err := s.sessions.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.Stamp(s.now())
	return session, nil
}

// EnsureLive fails with ErrSessionExpired once the attempt's session is past
// its deadline (expiring it as a side effect). Attempts without a session,
// or with an untimed one, are always live.
func (s *SessionService) EnsureLive(ctx context.Context, attemptID int64) error {
	session, err := s.sessions.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get session: %w", err)
	}

	now := s.now()
	if s.overdue(session, now) {
		if _, err := s.expireOnRead(ctx, session, now); err != nil {
			return err
		}
		return ErrSessionExpired
	}
	if session.Status == model.SessionStatusExpired {
		return ErrSessionExpired
	}
	return nil
}

// Close marks the attempt's active session completed and announces it.
func (s *SessionService) Close(ctx context.Context, attemptID int64) error {
	now := s.now()
	moved, err := s.sessions.Transition(ctx, attemptID, model.SessionStatusActive, model.SessionStatusCompleted, now)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	s.forgetDeadline(ctx, attemptID)
	if !moved {
		return nil
	}

	session, err := s.sessions.GetByAttempt(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("reload session: %w", err)
	}
	session.Stamp(now)
	s.publish(ctx, session)
	return nil
}

// ExpireIfOverdue is the sweeper entry point. Returns true if this call
// expired the session or completed the attempt of an already expired one.
func (s *SessionService) ExpireIfOverdue(ctx context.Context, attemptID int64) (bool, error) {
	session, err := s.sessions.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.forgetDeadline(ctx, attemptID)
			return false, nil
		}
		return false, fmt.Errorf("get session: %w", err)
	}

	now := s.now()
	if session.Status == model.SessionStatusExpired {
		// An earlier expiry may have failed to auto-submit.
		return s.settle(ctx, attemptID)
	}
	if !s.overdue(session, now) {
		if session.Status != model.SessionStatusActive {
			s.forgetDeadline(ctx, attemptID)
		}
		return false, nil
	}

	if _, err := s.expire(ctx, session, now); err != nil {
		return false, err
	}
	return true, nil
}

// OverdueAttempts lists attempts whose session deadline has passed, reading
// the Redis deadline index first and PostgreSQL when Redis is unavailable.
func (s *SessionService) OverdueAttempts(ctx context.Context, limit int) ([]int64, error) {
	now := s.now()

	members, err := s.rdb.ZRangeByScore(ctx, config.WorkerKey.SessionDeadlines, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Deadline index unavailable, falling back to PostgreSQL")
		ids, dbErr := s.sessions.ListOverdue(ctx, now, limit)
		if dbErr != nil {
			return nil, fmt.Errorf("list overdue sessions: %w", dbErr)
		}
		return ids, nil
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.rdb.ZRem(ctx, config.WorkerKey.SessionDeadlines, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// spentDelta is the reported delta when present, else the gap since the
// last activity, capped at MaxSpentDelta.
func spentDelta(session *model.QuizSession, req *model.UpdateSessionRequest, now time.Time) int {
	d := now.Sub(session.LastActivityAt)
	if req.DeltaSpentSeconds != nil {
		d = time.Duration(*req.DeltaSpentSeconds) * time.Second
	}
	d = min(max(d, 0), MaxSpentDelta)
	return int(d / time.Second)
}

func (s *SessionService) getByAttempt(ctx context.Context, attemptID int64) (*model.QuizSession, error) {
	session, err := s.sessions.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *SessionService) overdue(session *model.QuizSession, now time.Time) bool {
	if session.Status != model.SessionStatusActive {
		return false
	}
	deadline := session.Deadline()
	return deadline != nil && !now.Before(*deadline)
}

// expire flips an active session to expired and auto-submits its attempt.
// Losing the race to a concurrent completion is not an error. If the
// auto-submit fails, the expired session is returned with an error wrapping
// errSubmitPending and the deadline stays indexed so the sweeper retries it.
func (s *SessionService) expire(ctx context.Context, session *model.QuizSession, now time.Time) (*model.QuizSession, error) {
	moved, err := s.sessions.Transition(ctx, session.AttemptID, model.SessionStatusActive, model.SessionStatusExpired, now)
	if err != nil {
		return nil, fmt.Errorf("expire session: %w", err)
	}

	var submitErr error
	if moved {
		session.Status = model.SessionStatusExpired
		if _, err := s.settle(ctx, session.AttemptID); err != nil {
			submitErr = fmt.Errorf("%w: %w", errSubmitPending, err)
		}
	} else if fresh, err := s.sessions.GetByAttempt(ctx, session.AttemptID); err == nil {
		session = fresh
	}

	session.Stamp(now)
	if moved {
		s.publish(ctx, session)
	}
	return session, submitErr
}

// expireOnRead is expire for request paths. A pending auto-submit belongs to
// the sweeper, so the caller still gets the expired session.
func (s *SessionService) expireOnRead(ctx context.Context, session *model.QuizSession, now time.Time) (*model.QuizSession, error) {
	expired, err := s.expire(ctx, session, now)
	if errors.Is(err, errSubmitPending) {
		return expired, nil
	}
	return expired, err
}

// settle auto-submits the attempt behind an expired session and drops its
// deadline. Reports whether this call completed the attempt.
func (s *SessionService) settle(ctx context.Context, attemptID int64) (bool, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return false, fmt.Errorf("load expired attempt: %w", err)
	}

	result, err := s.finalizer.Finalize(ctx, attempt)
	switch {
	case err == nil:
		s.log.Info().
			Int64("attempt_id", attempt.ID).
			Float64("score", result.Score).
			Msg("Auto-submitted expired attempt")
	case errors.Is(err, ErrAttemptAlreadyCompleted):
	default:
		s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Auto-submit failed, will retry")
		return false, err
	}

	s.forgetDeadline(ctx, attemptID)
	return err == nil, nil
}

func (s *SessionService) forgetDeadline(ctx context.Context, attemptID int64) {
	if err := s.rdb.ZRem(ctx, config.WorkerKey.SessionDeadlines, strconv.FormatInt(attemptID, 10)).Err(); err != nil {
		s.log.Debug().Err(err).Int64("attempt_id", attemptID).Msg("Failed to drop session deadline")
	}
}

func (s *SessionService) publish(ctx context.Context, session *model.QuizSession) {
	payload, err := json.Marshal(session)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal session snapshot")
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionChannel(session.AttemptID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", session.AttemptID).Msg("Publish session snapshot failed")
	}
}

// Subscribe opens a subscription to the attempt's snapshot channel. The
// caller owns the returned PubSub and must close it.
func (s *SessionService) Subscribe(ctx context.Context, attemptID int64) (*redis.PubSub, error) {
	sub := s.rdb.Subscribe(ctx, config.CacheKey.SessionChannel(attemptID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe session channel: %w", err)
	}
	return sub, nil
}

// SetClock overrides time.Now.
func (s *SessionService) SetClock(now func() time.Time) { s.now = now }
