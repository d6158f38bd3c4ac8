package servicetest

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Clock is a manually advanced time source shared by every service of a Stack.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Stack is the service layer wired on in-memory stores and miniredis.
type Stack struct {
	DB        *DB
	Questions *QuestionStore
	Redis     *miniredis.Miniredis
	RDB       *redis.Client
	Clock     *Clock

	Quizzes   *service.QuizService
	Finalizer *service.Finalizer
	Sessions  *service.SessionService
	Attempts  *service.AttemptService
}

// NewStack builds a Stack whose resources are released when t ends.
func NewStack(t testing.TB) *Stack {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	db := NewDB()
	db.SetClock(clock.Now)

	log := zerolog.Nop()
	questions := db.Questions()

	quizzes := service.NewQuizService(db.Quizzes(), questions, rdb, time.Minute, log)
	finalizer := service.NewFinalizer(quizzes, db.Attempts(), db.AnswerRows())
	sessions := service.NewSessionService(db.Sessions(), db.Attempts(), db.AnswerRows(), quizzes, finalizer, rdb, log)
	attempts := service.NewAttemptService(quizzes, sessions, finalizer, db.Attempts(), db.AnswerRows(), log)

	finalizer.SetClock(clock.Now)
	sessions.SetClock(clock.Now)
	attempts.SetClock(clock.Now)

	return &Stack{
		DB:        db,
		Questions: questions,
		Redis:     mr,
		RDB:       rdb,
		Clock:     clock,
		Quizzes:   quizzes,
		Finalizer: finalizer,
		Sessions:  sessions,
		Attempts:  attempts,
	}
}
