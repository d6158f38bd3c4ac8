// Package servicetest provides in-memory stores with the same semantics as
// the PostgreSQL repositories, for tests that exercise services end to end.
package servicetest

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// DB is the shared backing state of the in-memory stores.
type DB struct {
	mu        sync.Mutex
	nextID    int64
	quizzes   map[string]*model.Quiz
	questions map[int64][]model.Question
	attempts  map[int64]*model.Attempt
	answers   map[int64]map[int64]model.AttemptAnswer
	sessions  map[int64]*model.QuizSession
	failures  map[string][]error
	now       func() time.Time
}

func NewDB() *DB {
	return &DB{
		quizzes:   map[string]*model.Quiz{},
		questions: map[int64][]model.Question{},
		attempts:  map[int64]*model.Attempt{},
		answers:   map[int64]map[int64]model.AttemptAnswer{},
		sessions:  map[int64]*model.QuizSession{},
		failures:  map[string][]error{},
		now:       time.Now,
	}
}

// SetClock sets the clock used for database-side timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

// FailNext makes the next call of the named store method (e.g.
// "ListByAttempt") return err. Calls queue up.
func (db *DB) FailNext(method string, err error) {
	db.mu.Lock()
	db.failures[method] = append(db.failures[method], err)
	db.mu.Unlock()
}

// failure pops a queued error for method. Callers hold mu.
func (db *DB) failure(method string) error {
	q := db.failures[method]
	if len(q) == 0 {
		return nil
	}
	db.failures[method] = q[1:]
	return q[0]
}

// AddQuiz seeds a quiz and its questions, assigning IDs.
func (db *DB) AddQuiz(quiz model.Quiz, questions ...model.Question) *model.Quiz {
	db.mu.Lock()
	defer db.mu.Unlock()

	quiz.ID = db.id()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = db.now()
	}
	db.quizzes[quiz.Slug] = &quiz

	qs := make([]model.Question, len(questions))
	for i, q := range questions {
		q.ID = db.id()
		q.QuizID = quiz.ID
		if q.PublicID == "" {
			q.PublicID = uuid.New().String()
		}
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		qs[i] = q
	}
	db.questions[quiz.ID] = qs

	out := quiz
	return &out
}

// Attempt returns a copy of an attempt row.
func (db *DB) Attempt(id int64) (model.Attempt, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.attempts[id]
	if !ok {
		return model.Attempt{}, false
	}
	return *a, true
}

// Session returns a copy of the session row of an attempt.
func (db *DB) Session(attemptID int64) (model.QuizSession, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[attemptID]
	if !ok {
		return model.QuizSession{}, false
	}
	return *s, true
}

// Answers returns the answers of an attempt.
func (db *DB) Answers(attemptID int64) []model.AttemptAnswer {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]model.AttemptAnswer, 0, len(db.answers[attemptID]))
	for _, a := range db.answers[attemptID] {
		out = append(out, a)
	}
	return out
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *DB) quizByID(id int64) *model.Quiz {
	for _, q := range db.quizzes {
		if q.ID == id {
			return q
		}
	}
	return nil
}

func (db *DB) attemptCopy(a *model.Attempt) *model.Attempt {
	c := *a
	if q := db.quizByID(a.QuizID); q != nil {
		c.QuizSlug = q.Slug
	}
	return &c
}

// ─── Quizzes & questions ───────────────────────────────────────────────

type QuizStore struct{ db *DB }

func (db *DB) Quizzes() *QuizStore { return &QuizStore{db} }

func (s *QuizStore) GetBySlug(_ context.Context, slug string) (*model.Quiz, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	q, ok := s.db.quizzes[slug]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *q
	return &c, nil
}

type QuestionStore struct {
	db *DB

	mu    sync.Mutex
	calls int
}

func (db *DB) Questions() *QuestionStore { return &QuestionStore{db: db} }

func (s *QuestionStore) ListByQuiz(_ context.Context, quizID int64) ([]model.Question, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	qs := slices.Clone(s.db.questions[quizID])
	slices.SortStableFunc(qs, func(a, b model.Question) int { return cmp.Compare(a.OrderNum, b.OrderNum) })
	return qs, nil
}

// Calls reports how many times ListByQuiz was called.
func (s *QuestionStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ─── Attempts ──────────────────────────────────────────────────────────

type AttemptStore struct{ db *DB }

func (db *DB) Attempts() *AttemptStore { return &AttemptStore{db} }

func (s *AttemptStore) Create(_ context.Context, a *model.Attempt) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, e := range s.db.attempts {
		if e.QuizID == a.QuizID && e.UserID == a.UserID && e.Status == model.AttemptStatusInProgress {
			return pgx.ErrNoRows
		}
	}
	a.ID = s.db.id()
	a.Status = model.AttemptStatusInProgress
	a.CreatedAt = s.db.now()
	row := *a
	s.db.attempts[a.ID] = &row
	return nil
}

func (s *AttemptStore) GetForUser(_ context.Context, attemptID int64, userID string) (*model.Attempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.attempts[attemptID]
	if !ok || a.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return s.db.attemptCopy(a), nil
}

func (s *AttemptStore) GetByID(_ context.Context, attemptID int64) (*model.Attempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.attempts[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.db.attemptCopy(a), nil
}

func (s *AttemptStore) GetInProgress(_ context.Context, quizID int64, userID string) (*model.Attempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Status == model.AttemptStatusInProgress {
			return s.db.attemptCopy(a), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *AttemptStore) CountByUser(_ context.Context, quizID int64, userID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, a := range s.db.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *AttemptStore) ListByUser(_ context.Context, quizID int64, userID string) ([]model.AttemptSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var own []*model.Attempt
	for _, a := range s.db.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			own = append(own, a)
		}
	}
	slices.SortFunc(own, func(a, b *model.Attempt) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	out := make([]model.AttemptSummary, 0, len(own))
	for i, a := range own {
		c := s.db.attemptCopy(a)
		row := model.AttemptSummary{
			ID:          c.ID,
			Number:      i + 1,
			Status:      c.Status,
			Correct:     c.Correct,
			Total:       c.Total,
			Score:       c.Score,
			CreatedAt:   c.CreatedAt,
			CompletedAt: c.CompletedAt,
		}
		if qs, ok := s.db.sessions[a.ID]; ok {
			row.TimeSpentSeconds = qs.TimeSpentSeconds
		}
		out = append(out, row)
	}
	slices.Reverse(out)
	return out, nil
}

func (s *AttemptStore) Complete(_ context.Context, attemptID int64, correct, total int, score float64, at time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("Complete"); err != nil {
		return false, err
	}
	a, ok := s.db.attempts[attemptID]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusCompleted
	a.Correct, a.Total, a.Score = &correct, &total, &score
	a.CompletedAt = &at
	return true, nil
}

// ─── Answers ───────────────────────────────────────────────────────────

type AnswerStore struct{ db *DB }

func (db *DB) AnswerRows() *AnswerStore { return &AnswerStore{db} }

func (s *AnswerStore) Upsert(_ context.Context, a *model.AttemptAnswer) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.answers[a.AttemptID] == nil {
		s.db.answers[a.AttemptID] = map[int64]model.AttemptAnswer{}
	}
	a.AnsweredAt = s.db.now()
	row := *a
	row.UserAnswer = slices.Clone(a.UserAnswer)
	s.db.answers[a.AttemptID][a.QuestionID] = row
	return nil
}

func (s *AnswerStore) ListByAttempt(_ context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("ListByAttempt"); err != nil {
		return nil, err
	}
	var out []model.AttemptAnswer
	for _, a := range s.db.answers[attemptID] {
		out = append(out, a)
	}
	return out, nil
}

func (s *AnswerStore) CountByAttempt(_ context.Context, attemptID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.db.answers[attemptID]), nil
}

// ─── Sessions ──────────────────────────────────────────────────────────

type SessionStore struct{ db *DB }

func (db *DB) Sessions() *SessionStore { return &SessionStore{db} }

func (s *SessionStore) Create(_ context.Context, qs *model.QuizSession) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.sessions[qs.AttemptID]; exists {
		return pgx.ErrNoRows
	}
	qs.ID = s.db.id()
	qs.LastActivityAt = qs.StartedAt
	row := *qs
	s.db.sessions[qs.AttemptID] = &row
	return nil
}

func (s *SessionStore) GetByAttempt(_ context.Context, attemptID int64) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	qs, ok := s.db.sessions[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *qs
	return &c, nil
}

func (s *SessionStore) GetByPublicID(_ context.Context, publicID string) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, qs := range s.db.sessions {
		if qs.PublicID == publicID {
			c := *qs
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *SessionStore) Touch(_ context.Context, sessionID int64, index *int, spent int, now time.Time) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, qs := range s.db.sessions {
		if qs.ID != sessionID || qs.Status != model.SessionStatusActive {
			continue
		}
		if index != nil {
			target := min(*index, max(qs.TotalQuestions-1, 0))
			qs.CurrentQuestionIndex = max(qs.CurrentQuestionIndex, target)
		}
		qs.TimeSpentSeconds += spent
		qs.LastActivityAt = now
		c := *qs
		return &c, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *SessionStore) Transition(_ context.Context, attemptID int64, from, to model.SessionStatus, _ time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	qs, ok := s.db.sessions[attemptID]
	if !ok || qs.Status != from {
		return false, nil
	}
	qs.Status = to
	return true, nil
}

func (s *SessionStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []int64
	for _, qs := range s.db.sessions {
		if qs.ExpiresAt == nil || qs.ExpiresAt.After(now) {
			continue
		}
		stuck := qs.Status == model.SessionStatusExpired &&
			s.db.attempts[qs.AttemptID] != nil &&
			s.db.attempts[qs.AttemptID].Status == model.AttemptStatusInProgress
		if qs.Status == model.SessionStatusActive || stuck {
			ids = append(ids, qs.AttemptID)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
