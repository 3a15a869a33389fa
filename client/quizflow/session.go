package quizflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/client"
	"github.com/vigilsat/vigil/core/quiz"
)

type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateScored     State = "scored"
	StateErrored    State = "errored"
)

var (
	ErrInvalidTransition = errors.New("invalid quiz state transition")
	ErrInvalidAnswer     = errors.New("invalid answer")
)

var transitions = map[State][]State{
	StateLoading:    {StateInProgress, StateErrored},
	StateInProgress: {StateSubmitting},
	StateSubmitting: {StateScored, StateErrored},
}

// CanTransition tells whether the quiz may move from one state to the other.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool { return len(transitions[s]) == 0 }

// API is the part of *client.Client a Session needs.
type API interface {
	GetQuiz(ctx context.Context, id int64) (client.Quiz, error)
	SubmitQuizAttempt(ctx context.Context, id int64, na quiz.NewAttempt) (quiz.Attempt, error)
}

// Outcome is the result of a submitted quiz.
type Outcome struct {
	Result      Result
	Attempt     quiz.Attempt
	AutoSubmit  bool
	TimeTaken   time.Duration
	SubmittedAt time.Time
}

// Session takes one quiz, from loading to scoring.
type Session struct {
	api    API
	quizID int64

	mu        sync.Mutex
	state     State
	loading   bool
	loaded    bool
	def       Definition
	answers   []int
	startedAt time.Time
	deadline  time.Time
	timer     *time.Timer
	ctx       context.Context
	outcome   Outcome
	err       error

	submitOnce sync.Once
	done       chan struct{}

	now       func() time.Time                        // mockable
	afterFunc func(time.Duration, func()) *time.Timer // mockable
}

func NewSession(api API, quizID int64) *Session {
	return &Session{
		api:       api,
		quizID:    quizID,
		state:     StateLoading,
		done:      make(chan struct{}),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition must be called with s.mu held.
func (s *Session) transition(to State) error {
	if !CanTransition(s.state, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s to %s", s.state, to)
	}
	s.state = to
	return nil
}

// Load fetches the quiz and starts the countdown. ctx also bounds the submission
// triggered when the countdown reaches zero.
func (s *Session) Load(ctx context.Context) (Definition, error) {
	s.mu.Lock()
	if s.state != StateLoading || s.loading {
		s.mu.Unlock()
		return Definition{}, errors.Wrapf(ErrInvalidTransition, "loading while %s", s.state)
	}
	s.loading = true
	s.mu.Unlock()

	def, err := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = s.transition(StateErrored)
		s.err = err
		close(s.done)
		return Definition{}, err
	}
	if err = s.transition(StateInProgress); err != nil {
		return Definition{}, err
	}
	s.loaded = true
	s.def = def
	s.ctx = ctx
	s.answers = make([]int, len(def.Questions))
	for i := range s.answers {
		s.answers[i] = -1
	}
	s.startedAt = s.now()
	s.deadline = s.startedAt.Add(def.TimeLimit)
	s.timer = s.afterFunc(def.TimeLimit, func() { s.submit(true) })
	return def, nil
}

func (s *Session) load(ctx context.Context) (Definition, error) {
	q, err := s.api.GetQuiz(ctx, s.quizID)
	if err != nil {
		return Definition{}, err
	}
	return Normalize(q)
}

// Answer records the chosen option of a question, replacing any earlier choice.
func (s *Session) Answer(question, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return errors.Wrapf(ErrInvalidTransition, "answering while %s", s.state)
	}
	if question < 0 || question >= len(s.def.Questions) {
		return errors.Wrapf(ErrInvalidAnswer, "no question %d", question+1)
	}
	if option < 0 || option >= len(s.def.Questions[question].Options) {
		return errors.Wrapf(ErrInvalidAnswer, "no option %d for question %d", option+1, question+1)
	}
	s.answers[question] = option
	return nil
}

// Remaining is the time left on the countdown.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return 0
	}
	if d := s.deadline.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Submit scores the answers and posts the result. The quiz is submitted once, whether by
// this call, a concurrent one or the countdown. Every caller gets that single outcome.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if !s.loaded {
		err := errors.Wrapf(ErrInvalidTransition, "submitting while %s", s.state)
		s.mu.Unlock()
		return Outcome{}, err
	}
	s.mu.Unlock()

	s.submitOnce.Do(func() {
		s.mu.Lock()
		s.ctx = ctx
		s.mu.Unlock()
		s.doSubmit(false)
	})
	return s.Wait(ctx)
}

// Wait blocks until the session is over and returns its outcome.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

func (s *Session) submit(auto bool) {
	s.submitOnce.Do(func() { s.doSubmit(auto) })
}

func (s *Session) doSubmit(auto bool) {
	s.mu.Lock()
	if err := s.transition(StateSubmitting); err != nil {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	ctx := s.ctx
	now := s.now()
	taken := now.Sub(s.startedAt)
	if taken > s.def.TimeLimit {
		taken = s.def.TimeLimit
	}
	res := s.def.Score(s.answers)
	na := quiz.NewAttempt{
		Score:          res.Score,
		TotalQuestions: res.Total,
		CorrectAnswers: res.Correct,
		TimeTaken:      int(taken.Round(time.Second) / time.Second),
		Answers:        s.encodeAnswers(),
		StartedAt:      &s.startedAt,
	}
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	attempt, err := s.api.SubmitQuizAttempt(ctx, s.def.ID, na)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(s.done)
	if err != nil {
		_ = s.transition(StateErrored)
		s.err = err
		return
	}
	_ = s.transition(StateScored)
	s.outcome = Outcome{
		Result:      res,
		Attempt:     attempt,
		AutoSubmit:  auto,
		TimeTaken:   taken,
		SubmittedAt: now,
	}
}

// encodeAnswers maps question ids to the chosen option text. Must be called with s.mu held.
func (s *Session) encodeAnswers() json.RawMessage {
	answers := make(map[int64]string, len(s.answers))
	for i, opt := range s.answers {
		if opt < 0 {
			continue
		}
		qn := s.def.Questions[i]
		answers[qn.ID] = qn.Options[opt]
	}
	data, _ := json.Marshal(answers)
	return data
}
