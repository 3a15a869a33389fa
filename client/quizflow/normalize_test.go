package quizflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/client"
	"github.com/vigilsat/vigil/core/quiz"
)

func rawQuestions(qs ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(qs))
	for _, q := range qs {
		out = append(out, json.RawMessage(q))
	}
	return out
}

func Test_normalizeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Question
		wantErr error
	}{
		{
			name: "options array, answer as text",
			raw:  `{"id":1,"question_text":"Best password?","options":["1234"," Tr0ub4dor&3 ","password"],"correct_answer":"tr0ub4dor&3"}`,
			want: Question{ID: 1, Text: "Best password?", Options: []string{"1234", "Tr0ub4dor&3", "password"}, CorrectIndex: 1},
		},
		{
			name: "options array, answer as letter",
			raw:  `{"id":2,"question_text":"Phishing?","options":["yes","no"],"correct_answer":"A"}`,
			want: Question{ID: 2, Text: "Phishing?", Options: []string{"yes", "no"}, CorrectIndex: 0},
		},
		{
			name: "options encoded in a string",
			raw:  `{"id":3,"question":"MFA?","options":"[\"on\",\"off\"]","correct_answer":"on","explanation":"always"}`,
			want: Question{ID: 3, Text: "MFA?", Options: []string{"on", "off"}, CorrectIndex: 0, Explanation: "always"},
		},
		{
			name: "lettered fields",
			raw:  `{"id":4,"question_text":"Lock screen?","option_a":"never","option_b":"always","option_c":"","option_d":"sometimes","correct_answer":"b"}`,
			want: Question{ID: 4, Text: "Lock screen?", Options: []string{"never", "always", "sometimes"}, CorrectIndex: 1},
		},
		{
			name: "letter past d",
			raw:  `{"id":8,"question_text":"?","options":["1","2","3","4","5"],"correct_answer":"E"}`,
			want: Question{ID: 8, Text: "?", Options: []string{"1", "2", "3", "4", "5"}, CorrectIndex: 4},
		},
		{
			name: "unknown answer",
			raw:  `{"id":5,"question_text":"?","options":["a","b"],"correct_answer":"z"}`,
			want: Question{ID: 5, Text: "?", Options: []string{"a", "b"}, CorrectIndex: NoCorrectAnswer},
		},
		{
			name: "letter out of range",
			raw:  `{"id":6,"question_text":"?","options":["x","y"],"correct_answer":"d"}`,
			want: Question{ID: 6, Text: "?", Options: []string{"x", "y"}, CorrectIndex: NoCorrectAnswer},
		},
		{
			name:    "no options",
			raw:     `{"id":7,"question_text":"?","options":[],"correct_answer":"a"}`,
			wantErr: ErrNoOptions,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeQuestion(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	def, err := Normalize(client.Quiz{
		ID:    9,
		Title: "Basics",
		Questions: rawQuestions(
			`{"id":1,"question_text":"a?","options":["x","y"],"correct_answer":"x"}`,
			`{"id":2,"question_text":"b?","option_a":"x","option_b":"y","correct_answer":"b"}`,
		),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), def.ID)
	assert.Equal(t, quiz.DefaultTimeLimit*time.Second, def.TimeLimit)
	assert.Equal(t, quiz.DefaultPassingScore, def.PassingScore)
	assert.Len(t, def.Questions, 2)

	_, err = Normalize(client.Quiz{Questions: rawQuestions(`{"id":1}`)})
	assert.EqualError(t, err, "question 1: question has no options")
}

func TestDefinition_Score(t *testing.T) {
	def := Definition{
		PassingScore: 70,
		Questions: []Question{
			{Options: []string{"a", "b"}, CorrectIndex: 0},
			{Options: []string{"a", "b"}, CorrectIndex: 1},
			{Options: []string{"a", "b"}, CorrectIndex: 1},
			{Options: []string{"a", "b"}, CorrectIndex: NoCorrectAnswer},
		},
	}
	tests := []struct {
		name    string
		answers []int
		want    Result
	}{
		{name: "no answers", answers: []int{-1, -1, -1, -1}, want: Result{Total: 4}},
		{name: "unscorable question never counts", answers: []int{0, 1, 1, 0}, want: Result{Correct: 3, Total: 4, Score: 75, Passed: true}},
		{name: "rounded", answers: []int{0, 0, 1, -1}, want: Result{Correct: 2, Total: 4, Score: 50}},
		{name: "short answers slice", answers: []int{0}, want: Result{Correct: 1, Total: 4, Score: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, def.Score(tt.answers))
		})
	}

	third := Definition{PassingScore: 70, Questions: make([]Question, 3)}
	third.Questions[0].CorrectIndex = 0
	third.Questions[1].CorrectIndex = 0
	third.Questions[2].CorrectIndex = 0
	assert.Equal(t, Result{Correct: 2, Total: 3, Score: 67}, third.Score([]int{0, 0, 1}))

	assert.Equal(t, Result{}, Definition{PassingScore: 70}.Score(nil))
}
