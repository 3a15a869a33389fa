package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/quiz"
)

var (
	quizColumns = []string{
		"q.id", "q.title", "q.description", "q.category", "q.difficulty", "q.time_limit",
		"q.passing_score", "q.is_active", "q.created_by", "q.created_at", "q.updated_at",
		"(SELECT COUNT(*) FROM questions qn WHERE qn.quiz_id = q.id) AS question_count",
	}
	questionColumns = []string{
		"id", "quiz_id", "question_text", "question_type", "options", "correct_answer",
		"explanation", "points", "position",
	}
	attemptColumns = []string{
		"a.id", "a.quiz_id", "a.user_id", "a.score", "a.total_questions", "a.correct_answers",
		"a.passed", "a.time_taken", "a.answers", "a.started_at", "a.completed_at", "q.title AS quiz_title",
	}
)

type quizRepository struct {
	repository
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db core.DB) *quizRepository {
	return &quizRepository{repository{db: db}}
}

func (repo quizRepository) Filter(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	b := builder.Select(quizColumns...).From("quizzes q").OrderBy("q.created_at DESC", "q.id DESC")
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"q.is_active": true})
	}
	if filter.Category != "" {
		b = b.Where(sq.Eq{"q.category": filter.Category})
	}
	if filter.Difficulty != "" {
		b = b.Where(sq.Eq{"q.difficulty": filter.Difficulty})
	}

	quizzes := make([]quiz.Quiz, 0)
	if err := selectAll(ctx, repo.db, &quizzes, b); err != nil {
		return nil, errors.Wrap(err, "filtering quizzes")
	}
	return quizzes, nil
}

func (repo quizRepository) GetByID(ctx context.Context, id int64) (quiz.Quiz, error) {
	var q quiz.Quiz
	if err := get(ctx, repo.db, &q, builder.Select(quizColumns...).From("quizzes q").Where(sq.Eq{"q.id": id})); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound)
	}

	q.Questions = make([]quiz.Question, 0, q.QuestionCount)
	b := builder.Select(questionColumns...).From("questions").Where(sq.Eq{"quiz_id": id}).OrderBy("position ASC", "id ASC")
	if err := selectAll(ctx, repo.db, &q.Questions, b); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "loading questions")
	}
	return q, nil
}

func (repo quizRepository) Create(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insert(ctx, tx, builder.Insert("quizzes").
			Columns("title", "description", "category", "difficulty", "time_limit", "passing_score",
				"is_active", "created_by", "created_at", "updated_at").
			Values(q.Title, q.Description, q.Category, q.Difficulty, q.TimeLimit, q.PassingScore,
				q.IsActive, q.CreatedBy, q.CreatedAt, q.UpdatedAt))
		if err != nil {
			return errors.Wrap(err, "inserting quiz")
		}
		q.ID = id
		return repo.insertQuestions(ctx, tx, &q)
	})
	if err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func (repo quizRepository) insertQuestions(ctx context.Context, exec core.DBExecutor, q *quiz.Quiz) error {
	if len(q.Questions) == 0 {
		return nil
	}
	b := builder.Insert("questions").Columns(questionColumns[1:]...)
	for i := range q.Questions {
		qn := &q.Questions[i]
		qn.QuizID = q.ID
		b = b.Values(qn.QuizID, qn.QuestionText, qn.QuestionType, qn.Options, qn.CorrectAnswer,
			qn.Explanation, qn.Points, qn.Position)
	}
	firstID, err := insert(ctx, exec, b)
	if err != nil {
		return errors.Wrap(err, "inserting questions")
	}
	// a multi-row insert reports the id of its first row; ids are consecutive with InnoDB's default lock mode
	for i := range q.Questions {
		q.Questions[i].ID = firstID + int64(i)
	}
	return nil
}

func (repo quizRepository) Update(ctx context.Context, q quiz.Quiz, replaceQuestions bool) (quiz.Quiz, error) {
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		res, err := execute(ctx, tx, builder.Update("quizzes").
			SetMap(map[string]interface{}{
				"title":         q.Title,
				"description":   q.Description,
				"category":      q.Category,
				"difficulty":    q.Difficulty,
				"time_limit":    q.TimeLimit,
				"passing_score": q.PassingScore,
				"is_active":     q.IsActive,
				"updated_at":    q.UpdatedAt,
			}).
			Where(sq.Eq{"id": q.ID}))
		if err != nil {
			return errors.Wrap(err, "updating quiz")
		}
		if err = mustAffect(res, quiz.ErrNotFound); err != nil {
			return err
		}
		if !replaceQuestions {
			return nil
		}
		if _, err = execute(ctx, tx, builder.Delete("questions").Where(sq.Eq{"quiz_id": q.ID})); err != nil {
			return errors.Wrap(err, "deleting questions")
		}
		return repo.insertQuestions(ctx, tx, &q)
	})
	if err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func (repo quizRepository) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, repo.db, builder.Delete("quizzes").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return mustAffect(res, quiz.ErrNotFound)
}

func (repo quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	id, err := insert(ctx, repo.db, builder.Insert("quiz_attempts").
		Columns("quiz_id", "user_id", "score", "total_questions", "correct_answers", "passed",
			"time_taken", "answers", "started_at", "completed_at").
		Values(a.QuizID, a.UserID, a.Score, a.TotalQuestions, a.CorrectAnswers, a.Passed,
			a.TimeTaken, a.Answers, a.StartedAt, a.CompletedAt))
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting quiz attempt")
	}
	a.ID = id
	return a, nil
}

func (repo quizRepository) ListAttempts(ctx context.Context, userID int64) ([]quiz.Attempt, error) {
	attempts := make([]quiz.Attempt, 0)
	b := builder.Select(attemptColumns...).
		From("quiz_attempts a").
		Join("quizzes q ON q.id = a.quiz_id").
		Where(sq.Eq{"a.user_id": userID}).
		OrderBy("a.started_at DESC", "a.id DESC")
	if err := selectAll(ctx, repo.db, &attempts, b); err != nil {
		return nil, errors.Wrap(err, "listing quiz attempts")
	}
	return attempts, nil
}

func (repo quizRepository) DeleteIncompleteAttempts(ctx context.Context, userID int64) (int64, error) {
	res, err := execute(ctx, repo.db, builder.Delete("quiz_attempts").
		Where(sq.Eq{"user_id": userID, "completed_at": nil}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting incomplete attempts")
	}
	return res.RowsAffected()
}
