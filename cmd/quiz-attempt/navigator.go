package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/stemsi/exstem-quiz/internal/attempt"
)

type destination struct {
	path      string
	toast     string
	attemptID int64
}

// terminalNavigator prints the locations the attempt page moves to. Leaving
// the page ends the run.
type terminalNavigator struct {
	out  io.Writer
	done chan struct{}

	mu   sync.Mutex
	dest *destination
}

func newTerminalNavigator(out io.Writer) *terminalNavigator {
	return &terminalNavigator{out: out, done: make(chan struct{})}
}

func (n *terminalNavigator) ReplaceSession(publicID string) {
	fmt.Fprintf(n.out, "Session link token: %s\n", publicID)
}

func (n *terminalNavigator) Results(slug string, attemptID int64, role attempt.Role) {
	n.leave(destination{path: attempt.ResultsPath(slug, attemptID, role), attemptID: attemptID})
}

func (n *terminalNavigator) QuizOverview(slug, toast string) {
	n.leave(destination{path: attempt.OverviewPath(slug), toast: toast})
}

func (n *terminalNavigator) leave(d destination) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dest != nil {
		return
	}
	n.dest = &d
	close(n.done)
}

func (n *terminalNavigator) finished() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dest != nil
}

func (n *terminalNavigator) destination() destination {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dest == nil {
		return destination{}
	}
	return *n.dest
}
