package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/attempt"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quizclient"
	"golang.org/x/term"
)

func main() {
	var slug, session string
	flag.StringVar(&slug, "quiz", "", "Quiz slug")
	flag.StringVar(&session, "session", "", "Session token from an attempt link")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.LoadRunner()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if slug == "" {
		fmt.Fprintln(os.Stderr, "Error: -quiz is required")
		os.Exit(2)
	}

	token := cfg.Token
	if token == "" {
		var err error
		if token, err = promptToken(); err != nil {
			log.Fatal().Err(err).Msg("Failed to read token")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Wire Attempt Page ─────────────────────────────────────────────
	client, err := quizclient.New(cfg.APIURL, token, quizclient.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid API URL")
	}

	hook := attempt.NewSessionHook(client, slug)
	nav := newTerminalNavigator(os.Stdout)
	ctrl := attempt.NewController(client, hook, nav, slug, attempt.Role(cfg.Role), attempt.WithLogger(log))
	watcher := attempt.NewWatcher(ctrl, hook,
		attempt.WithHeartbeat(cfg.Heartbeat),
		attempt.WithWatcherLogger(log),
	)

	r := &runner{
		ctx:     ctx,
		ctrl:    ctrl,
		client:  client,
		watcher: watcher,
		nav:     nav,
		slug:    slug,
		log:     log,
	}
	r.run(session)
}

// promptToken reads a bearer token without echoing it.
func promptToken() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("QUIZ_TOKEN is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Enter access token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token is required")
	}
	return token, nil
}

// ─── Runner ────────────────────────────────────────────────────────────

type runner struct {
	ctx     context.Context
	ctrl    *attempt.Controller
	client  *quizclient.Client
	watcher *attempt.Watcher
	nav     *terminalNavigator
	slug    string
	log     zerolog.Logger

	watching bool
}

func (r *runner) run(session string) {
	// A stopped and continued process is the terminal's page restore.
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)
	go func() {
		for range cont {
			r.watcher.Notify(attempt.EventRestored)
		}
	}()

	if err := r.ctrl.Mount(r.ctx, session); err != nil {
		r.log.Error().Err(err).Msg("Mount failed")
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		r.startWatching()
		if r.nav.finished() {
			r.printResult()
			return
		}
		r.render()

		select {
		case <-r.ctx.Done():
			fmt.Println("\nInterrupted. Your progress is saved on the server.")
			return
		case <-r.nav.done:
			continue
		case line, ok := <-lines:
			if !ok {
				return
			}
			r.handle(strings.TrimSpace(line))
		}
	}
}

// startWatching attaches the watcher and push stream once an attempt is live.
func (r *runner) startWatching() {
	if r.watching || !r.ctrl.Active() {
		return
	}
	r.watching = true

	pushes, err := r.client.StreamSession(r.ctx, r.slug, r.ctrl.View().AttemptID)
	if err != nil {
		r.log.Warn().Err(err).Msg("Push stream unavailable, relying on resync")
		pushes = nil
	}
	go r.watcher.Run(r.ctx, pushes)
}

func (r *runner) handle(line string) {
	v := r.ctrl.View()
	var err error

	switch v.State {
	case attempt.StateAwaitingSessionParam:
		switch line {
		case "s", "start":
			err = r.ctrl.StartOrContinue(r.ctx)
		case "q", "quit":
			err = r.ctrl.BackToQuiz()
		}

	case attempt.StateFailed:
		switch line {
		case "r", "retry":
			err = r.ctrl.Retry()
		case "q", "quit":
			err = r.ctrl.BackToQuiz()
		}

	case attempt.StateNoQuestions:
		err = r.ctrl.BackToQuiz()

	case attempt.StateInProgress, attempt.StateSubmitting:
		err = r.answer(v, line)
	}

	if err != nil {
		fmt.Printf("! %v\n", err)
	}
}

type command int

const (
	cmdUnknown command = iota
	cmdNext
	cmdRefresh
	cmdQuit
)

// parseCommand recognizes the in-question commands. Commands carry a colon
// prefix so that any other line, "n" included, is an answer.
func parseCommand(line string) (command, bool) {
	name, ok := strings.CutPrefix(line, ":")
	if !ok {
		return cmdUnknown, false
	}
	switch name {
	case "n", "next":
		return cmdNext, true
	case "r", "refresh":
		return cmdRefresh, true
	case "q", "quit":
		return cmdQuit, true
	}
	return cmdUnknown, true
}

func (r *runner) answer(v attempt.View, line string) error {
	if cmd, ok := parseCommand(line); ok {
		switch cmd {
		case cmdNext:
			return r.ctrl.Advance(r.ctx)
		case cmdRefresh:
			r.watcher.Notify(attempt.EventVisible)
			return nil
		case cmdQuit:
			return r.ctrl.BackToQuiz()
		}
		return fmt.Errorf("unknown command %q", line)
	}
	if v.Question == nil {
		return nil
	}

	switch v.Question.QuestionType {
	case model.QuestionTypeSingleChoice:
		opt, err := strconv.Atoi(line)
		if err != nil {
			return fmt.Errorf("enter an option number")
		}
		return r.ctrl.SelectOption(opt - 1)
	case model.QuestionTypeMultipleChoice:
		for _, f := range strings.Fields(line) {
			opt, err := strconv.Atoi(f)
			if err != nil {
				return fmt.Errorf("enter option numbers to toggle")
			}
			if err := r.ctrl.ToggleOption(opt - 1); err != nil {
				return err
			}
		}
		return nil
	default:
		return r.ctrl.SetText(line)
	}
}

func (r *runner) render() {
	v := r.ctrl.View()
	fmt.Println()
	if v.Notice != "" {
		fmt.Printf("* %s\n", v.Notice)
	}

	switch v.State {
	case attempt.StateAwaitingSessionParam:
		fmt.Printf("Quiz %q. [s] start or continue, [q] back to quiz\n", r.slug)
	case attempt.StateFailed:
		fmt.Printf("Could not load the quiz: %v\n[r] retry, [q] back to quiz\n", v.Err)
	case attempt.StateNoQuestions:
		fmt.Println("This quiz has no questions yet. Press enter to go back.")
	case attempt.StateInProgress, attempt.StateSubmitting:
		r.renderQuestion(v)
	}
	fmt.Print("> ")
}

func (r *runner) renderQuestion(v attempt.View) {
	q := v.Question
	header := fmt.Sprintf("Question %d of %d", v.Index+1, v.Total)
	if v.Timed {
		header += fmt.Sprintf("  [%s left]", v.Remaining.Truncate(time.Second))
	}
	fmt.Println(header)
	fmt.Println(q.QuestionText)

	for i, opt := range q.Options {
		mark := " "
		switch {
		case v.Selection.Option != nil && *v.Selection.Option == i:
			mark = "*"
		case containsInt(v.Selection.Options, i):
			mark = "x"
		}
		fmt.Printf("  [%s] %d. %s\n", mark, i+1, opt)
	}

	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		fmt.Println("Type an option number, [:n] next, [:r] refresh, [:q] back to quiz")
	case model.QuestionTypeMultipleChoice:
		fmt.Println("Type option numbers to toggle, [:n] next, [:r] refresh, [:q] back to quiz")
	default:
		if v.Selection.Text != "" {
			fmt.Printf("Your answer: %s\n", v.Selection.Text)
		}
		fmt.Println("Type your answer, [:n] next, [:r] refresh, [:q] back to quiz")
	}
}

func (r *runner) printResult() {
	dest := r.nav.destination()
	fmt.Printf("\n-> %s\n", dest.path)
	if dest.toast != "" {
		fmt.Printf("* %s\n", dest.toast)
	}
	if dest.attemptID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := r.client.Result(ctx, r.slug, dest.attemptID)
	if err != nil {
		r.log.Debug().Err(err).Msg("Result not available")
		return
	}
	fmt.Printf("Score: %.0f (%d/%d correct) in %s\n", res.Score, res.Correct, res.Total,
		time.Duration(res.TimeSpentSeconds)*time.Second)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
