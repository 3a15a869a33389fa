package quiz_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/quiz"
	inmemdb "github.com/vigilsat/vigil/storage/database/inmem"
)

func setup(t *testing.T) (*quiz.Service, inmemdb.Repositories) {
	t.Helper()
	validate, _ := core.NewValidator()
	repos := inmemdb.NewRepositories(inmemdb.NewDB())
	return quiz.NewService(repos.Quizzes, validate), repos
}

func newQuiz() quiz.NewQuiz {
	return quiz.NewQuiz{
		Title:        "Phishing Basics",
		Category:     "Email",
		PassingScore: 60,
		Questions: []quiz.NewQuestion{
			{QuestionText: "Is this a phish?", Options: []string{"Yes", "No"}, CorrectAnswer: "Yes"},
			{QuestionText: "Report to?", Options: []string{"IT", "HR", "Nobody"}, CorrectAnswer: "IT", Points: 2},
		},
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, 3, newQuiz())
	require.NoError(t, err)
	assert.Equal(t, "email", q.Category)
	assert.Equal(t, quiz.DifficultyBeginner, q.Difficulty)
	assert.Equal(t, quiz.DefaultTimeLimit, q.TimeLimit)
	assert.Equal(t, 60, q.PassingScore)
	assert.Equal(t, 2, q.QuestionCount)

	got, err := svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, 1, got.Questions[0].Position)
	assert.Equal(t, quiz.TypeMultipleChoice, got.Questions[0].QuestionType)
	assert.Equal(t, 1, got.Questions[0].Points)
	assert.Equal(t, 2, got.Questions[1].Points)
	assert.Equal(t, quiz.Options{"IT", "HR", "Nobody"}, got.Questions[1].Options)

	invalid := newQuiz()
	invalid.Questions[0].Options = []string{"only one"}
	_, err = svc.Create(ctx, 3, invalid)
	assert.Error(t, err)

	wide := newQuiz()
	wide.Questions[0].Options = []string{"1", "2", "3", "4", "5", "6"}
	wide.Questions[0].CorrectAnswer = "5"
	_, err = svc.Create(ctx, 3, wide)
	assert.NoError(t, err)

	wide.Questions[0].Options = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}
	_, err = svc.Create(ctx, 3, wide)
	assert.Error(t, err)
}

func TestService_Update(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, 3, newQuiz())
	require.NoError(t, err)

	title := "Phishing Advanced"
	got, err := svc.Update(ctx, q.ID, quiz.UpdateQuiz{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	got, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 2, "questions are kept when not given")

	_, err = svc.Update(ctx, q.ID, quiz.UpdateQuiz{Questions: []quiz.NewQuestion{
		{QuestionText: "True or false?", QuestionType: quiz.TypeTrueFalse, Options: []string{"True", "False"}, CorrectAnswer: "True"},
	}})
	require.NoError(t, err)
	got, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, quiz.TypeTrueFalse, got.Questions[0].QuestionType)

	_, err = svc.Update(ctx, 999, quiz.UpdateQuiz{Title: &title})
	assert.True(t, core.IsNotFound(err))
}

func TestService_SubmitAttempt(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, 3, newQuiz())
	require.NoError(t, err)

	tests := []struct {
		name       string
		na         quiz.NewAttempt
		wantPassed bool
		wantErr    bool
	}{
		{name: "passed", na: quiz.NewAttempt{Score: 100, TotalQuestions: 2, CorrectAnswers: 2, TimeTaken: 30}, wantPassed: true},
		{name: "at the passing score", na: quiz.NewAttempt{Score: 60, TotalQuestions: 5, CorrectAnswers: 3}, wantPassed: true},
		{name: "failed", na: quiz.NewAttempt{Score: 50, TotalQuestions: 2, CorrectAnswers: 1}},
		{name: "score above 100", na: quiz.NewAttempt{Score: 101, TotalQuestions: 2, CorrectAnswers: 2}, wantErr: true},
		{name: "more correct than total", na: quiz.NewAttempt{Score: 100, TotalQuestions: 2, CorrectAnswers: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := svc.SubmitAttempt(ctx, q.ID, 7, tt.na)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, a.Passed)
			assert.Equal(t, tt.na.Score, a.Score)
			assert.True(t, a.CompletedAt.Valid)
			assert.False(t, a.StartedAt.After(a.CompletedAt.Time))
		})
	}

	answers := json.RawMessage(`{"1":"Yes"}`)
	a, err := svc.SubmitAttempt(ctx, q.ID, 7, quiz.NewAttempt{Score: 50, TotalQuestions: 2, CorrectAnswers: 1, Answers: answers})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"Yes"}`, string(a.Answers.JSON))

	attempts, err := svc.ListAttempts(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, attempts, 4)
	assert.Equal(t, a.ID, attempts[0].ID, "most recent first")
	assert.Equal(t, "Phishing Basics", attempts[0].QuizTitle)

	_, err = svc.SubmitAttempt(ctx, 999, 7, quiz.NewAttempt{Score: 10, TotalQuestions: 1})
	assert.True(t, core.IsNotFound(err))
}

func TestService_ClearIncompleteAttempts(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()

	q, err := svc.Create(ctx, 3, newQuiz())
	require.NoError(t, err)
	_, err = svc.SubmitAttempt(ctx, q.ID, 7, quiz.NewAttempt{Score: 100, TotalQuestions: 2, CorrectAnswers: 2})
	require.NoError(t, err)
	repos.Quizzes.AddAttempt(quiz.Attempt{QuizID: q.ID, UserID: 7})
	repos.Quizzes.AddAttempt(quiz.Attempt{QuizID: q.ID, UserID: 7})
	repos.Quizzes.AddAttempt(quiz.Attempt{QuizID: q.ID, UserID: 8})

	deleted, err := svc.ClearIncompleteAttempts(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	attempts, err := svc.ListAttempts(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
	attempts, err = svc.ListAttempts(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
