package quiz

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

var ErrNotFound = core.NewNotFoundError("quiz not found")

type (
	Repository interface {
		// Filter lists quizzes with their QuestionCount, without questions.
		Filter(ctx context.Context, filter QueryFilter) ([]Quiz, error)
		// GetByID returns the quiz with its questions ordered by position.
		GetByID(ctx context.Context, id int64) (Quiz, error)
		// Create inserts the quiz and its questions in one transaction.
		Create(ctx context.Context, q Quiz) (Quiz, error)
		// Update saves the quiz; when replaceQuestions is set its questions are replaced in the same transaction.
		Update(ctx context.Context, q Quiz, replaceQuestions bool) (Quiz, error)
		Delete(ctx context.Context, id int64) error

		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		ListAttempts(ctx context.Context, userID int64) ([]Attempt, error)
		// DeleteIncompleteAttempts removes the user's attempts that were never completed.
		DeleteIncompleteAttempts(ctx context.Context, userID int64) (int64, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) ListActive(ctx context.Context, filter QueryFilter) ([]Quiz, error) {
	filter.Clean()
	filter.ActiveOnly = true
	return svc.repo.Filter(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id int64) (Quiz, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) Create(ctx context.Context, createdBy int64, nq NewQuiz) (Quiz, error) {
	if err := svc.validate.StructCtx(ctx, nq); err != nil {
		return Quiz{}, err
	}

	now := time.Now().UTC()
	q := Quiz{
		Title:        core.CleanString(nq.Title),
		Description:  nq.Description,
		Category:     core.CleanString(nq.Category, true /* lower */),
		Difficulty:   nq.Difficulty,
		TimeLimit:    nq.TimeLimit,
		PassingScore: nq.PassingScore,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Questions:    newQuestions(nq.Questions),
	}
	if createdBy > 0 {
		q.CreatedBy = null.Int64From(createdBy)
	}
	if q.Category == "" {
		q.Category = "general"
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyBeginner
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = DefaultTimeLimit
	}
	if q.PassingScore == 0 {
		q.PassingScore = DefaultPassingScore
	}
	q.QuestionCount = len(q.Questions)
	return svc.repo.Create(ctx, q)
}

func newQuestions(nqs []NewQuestion) []Question {
	questions := make([]Question, 0, len(nqs))
	for i, nq := range nqs {
		qn := Question{
			QuestionText:  core.CleanString(nq.QuestionText),
			QuestionType:  nq.QuestionType,
			Options:       Options(nq.Options),
			CorrectAnswer: core.CleanString(nq.CorrectAnswer),
			Explanation:   nq.Explanation,
			Points:        nq.Points,
			Position:      i + 1,
		}
		if qn.QuestionType == "" {
			qn.QuestionType = TypeMultipleChoice
		}
		if qn.Points == 0 {
			qn.Points = 1
		}
		questions = append(questions, qn)
	}
	return questions
}

func (svc *Service) Update(ctx context.Context, id int64, uq UpdateQuiz) (Quiz, error) {
	if err := svc.validate.StructCtx(ctx, uq); err != nil {
		return Quiz{}, err
	}
	q, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	uq.apply(&q)
	replace := uq.Questions != nil
	if replace {
		q.Questions = newQuestions(uq.Questions)
		q.QuestionCount = len(q.Questions)
	}
	q.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, q, replace)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}

// SubmitAttempt stores a completed attempt. The score is the one computed by the client;
// only Passed is derived here, against the quiz passing score.
func (svc *Service) SubmitAttempt(ctx context.Context, quizID, userID int64, na NewAttempt) (Attempt, error) {
	if err := svc.validate.StructCtx(ctx, na); err != nil {
		return Attempt{}, err
	}
	q, err := svc.repo.GetByID(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if !q.IsActive {
		return Attempt{}, ErrNotFound
	}

	now := time.Now().UTC()
	a := Attempt{
		QuizID:         quizID,
		UserID:         userID,
		Score:          na.Score,
		TotalQuestions: na.TotalQuestions,
		CorrectAnswers: na.CorrectAnswers,
		Passed:         Passed(na.Score, q.PassingScore),
		TimeTaken:      na.TimeTaken,
		StartedAt:      now.Add(-time.Duration(na.TimeTaken) * time.Second),
		CompletedAt:    null.TimeFrom(now),
		QuizTitle:      q.Title,
	}
	if na.StartedAt != nil && !na.StartedAt.IsZero() {
		a.StartedAt = na.StartedAt.UTC()
	}
	if len(na.Answers) > 0 {
		a.Answers = null.JSONFrom(na.Answers)
	}
	return svc.repo.CreateAttempt(ctx, a)
}

func (svc *Service) ListAttempts(ctx context.Context, userID int64) ([]Attempt, error) {
	return svc.repo.ListAttempts(ctx, userID)
}

func (svc *Service) ClearIncompleteAttempts(ctx context.Context, userID int64) (int64, error) {
	return svc.repo.DeleteIncompleteAttempts(ctx, userID)
}
