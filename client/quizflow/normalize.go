// Package quizflow runs a quiz on the client side: it normalises the quiz definition,
// runs the countdown, scores the answers locally and posts the result.
package quizflow

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/client"
	"github.com/vigilsat/vigil/core/quiz"
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// NoCorrectAnswer marks a question whose correct answer matches none of its options.
// Such a question can never be answered correctly.
const NoCorrectAnswer = -1

var ErrNoOptions = errors.New("question has no options")

type Question struct {
	ID           int64
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
}

type Definition struct {
	ID           int64
	Title        string
	TimeLimit    time.Duration
	PassingScore int
	Questions    []Question
}

// rawQuestion accepts both question shapes: an options array (possibly JSON-encoded in a
// string), or lettered option_a..option_d fields.
type rawQuestion struct {
	ID            int64           `json:"id"`
	QuestionText  string          `json:"question_text"`
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options"`
	OptionA       string          `json:"option_a"`
	OptionB       string          `json:"option_b"`
	OptionC       string          `json:"option_c"`
	OptionD       string          `json:"option_d"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
}

// Normalize turns a quiz as served by the API into a Definition.
func Normalize(q client.Quiz) (Definition, error) {
	def := Definition{
		ID:           q.ID,
		Title:        q.Title,
		TimeLimit:    time.Duration(q.TimeLimit) * time.Second,
		PassingScore: q.PassingScore,
		Questions:    make([]Question, 0, len(q.Questions)),
	}
	if def.TimeLimit <= 0 {
		def.TimeLimit = quiz.DefaultTimeLimit * time.Second
	}
	if def.PassingScore <= 0 {
		def.PassingScore = quiz.DefaultPassingScore
	}

	for i, raw := range q.Questions {
		qn, err := normalizeQuestion(raw)
		if err != nil {
			return Definition{}, errors.Wrapf(err, "question %d", i+1)
		}
		def.Questions = append(def.Questions, qn)
	}
	return def, nil
}

func normalizeQuestion(data json.RawMessage) (Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(data, &rq); err != nil {
		return Question{}, errors.Wrap(err, "decoding question")
	}

	opts, err := parseOptions(rq.Options)
	if err != nil {
		return Question{}, err
	}
	if len(opts) == 0 {
		for _, o := range []string{rq.OptionA, rq.OptionB, rq.OptionC, rq.OptionD} {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
	}
	if len(opts) == 0 {
		return Question{}, ErrNoOptions
	}

	text := rq.QuestionText
	if text == "" {
		text = rq.Question
	}
	return Question{
		ID:           rq.ID,
		Text:         strings.TrimSpace(text),
		Options:      opts,
		CorrectIndex: correctIndex(opts, rq.CorrectAnswer),
		Explanation:  rq.Explanation,
	}, nil
}

func parseOptions(data json.RawMessage) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(data, &opts); err == nil {
		return trimAll(opts), nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, errors.Wrap(err, "decoding options")
	}
	if strings.TrimSpace(encoded) == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(encoded), &opts); err != nil {
		return nil, errors.Wrap(err, "decoding options")
	}
	return trimAll(opts), nil
}

func trimAll(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, strings.TrimSpace(o))
	}
	return out
}

// correctIndex resolves the correct answer given as the option text or as its letter.
func correctIndex(opts []string, answer string) int {
	answer = strings.TrimSpace(answer)
	for i, o := range opts {
		if strings.EqualFold(o, answer) {
			return i
		}
	}
	if len(answer) == 1 {
		if i := strings.Index(letters, strings.ToLower(answer)); i >= 0 && i < len(opts) {
			return i
		}
	}
	return NoCorrectAnswer
}

// Result is the locally computed score of a set of answers.
type Result struct {
	Correct int
	Total   int
	Score   int
	Passed  bool
}

// Score counts the correct answers; answers[i] is the chosen option index of question i, or -1.
func (def Definition) Score(answers []int) Result {
	res := Result{Total: len(def.Questions)}
	for i, qn := range def.Questions {
		if i < len(answers) && qn.CorrectIndex != NoCorrectAnswer && answers[i] == qn.CorrectIndex {
			res.Correct++
		}
	}
	res.Score = quiz.Score(res.Correct, res.Total)
	res.Passed = quiz.Passed(res.Score, def.PassingScore)
	return res
}
