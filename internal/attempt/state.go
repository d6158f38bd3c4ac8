package attempt

// State is the phase of the attempt page.
type State int

const (
	StateUninitialized State = iota
	// StateAwaitingSessionParam is the guard screen. Nothing is created
	// until the taker explicitly starts or continues.
	StateAwaitingSessionParam
	StateInitializing
	StateInProgress
	StateSubmitting
	StateCompleting
	StateTerminated
	StateFailed
	// StateNoQuestions is the empty-quiz screen. No attempt is created.
	StateNoQuestions
)

var stateNames = [...]string{
	StateUninitialized:        "uninitialized",
	StateAwaitingSessionParam: "awaiting_session_param",
	StateInitializing:         "initializing",
	StateInProgress:           "in_progress",
	StateSubmitting:           "submitting",
	StateCompleting:           "completing",
	StateTerminated:           "terminated",
	StateFailed:               "failed",
	StateNoQuestions:          "no_questions",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// busy states hold the re-entrancy latch: a network operation owns the page.
func (s State) busy() bool {
	return s == StateInitializing || s == StateSubmitting || s == StateCompleting
}

// terminal states accept no further transitions except BackToQuiz.
func (s State) terminal() bool {
	return s == StateTerminated || s == StateNoQuestions
}

// Role picks the results route. Both roles take quizzes the same way.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)
