package inmemdb

import (
	"context"
	"sort"

	"github.com/vigilsat/vigil/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func (repo *quizRepository) Filter(_ context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if filter.ActiveOnly && !q.IsActive {
			continue
		}
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		q.QuestionCount = len(q.Questions)
		q.Questions = nil
		quizzes = append(quizzes, q)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID > quizzes[j].ID })
	return quizzes, nil
}

func (repo *quizRepository) GetByID(_ context.Context, id int64) (quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	q, ok := repo.db.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	q.Questions = append(make([]quiz.Question, 0, len(q.Questions)), q.Questions...)
	q.QuestionCount = len(q.Questions)
	return q, nil
}

// setQuestions must be called with the write lock held.
func (repo *quizRepository) setQuestions(q *quiz.Quiz) {
	for i := range q.Questions {
		q.Questions[i].ID = repo.db.nextID()
		q.Questions[i].QuizID = q.ID
	}
	q.QuestionCount = len(q.Questions)
}

func (repo *quizRepository) Create(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	q.ID = repo.db.nextID()
	repo.setQuestions(&q)
	repo.db.quizzes[q.ID] = q
	return q, nil
}

func (repo *quizRepository) Update(_ context.Context, q quiz.Quiz, replaceQuestions bool) (quiz.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.quizzes[q.ID]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	if replaceQuestions {
		repo.setQuestions(&q)
	} else {
		q.Questions = orig.Questions
	}
	repo.db.quizzes[q.ID] = q
	return q, nil
}

func (repo *quizRepository) Delete(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.quizzes[id]; !ok {
		return quiz.ErrNotFound
	}
	delete(repo.db.quizzes, id)
	attempts := repo.db.quizAttempts[:0]
	for _, a := range repo.db.quizAttempts {
		if a.QuizID != id {
			attempts = append(attempts, a)
		}
	}
	repo.db.quizAttempts = attempts
	return nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextID()
	repo.db.quizAttempts = append(repo.db.quizAttempts, a)
	return a, nil
}

// AddAttempt stores a raw attempt, e.g. an incomplete one.
func (repo *quizRepository) AddAttempt(a quiz.Attempt) quiz.Attempt {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextID()
	repo.db.quizAttempts = append(repo.db.quizAttempts, a)
	return a
}

func (repo *quizRepository) ListAttempts(_ context.Context, userID int64) ([]quiz.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for i := len(repo.db.quizAttempts) - 1; i >= 0; i-- {
		a := repo.db.quizAttempts[i]
		if a.UserID != userID {
			continue
		}
		if q, ok := repo.db.quizzes[a.QuizID]; ok {
			a.QuizTitle = q.Title
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo *quizRepository) DeleteIncompleteAttempts(_ context.Context, userID int64) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var deleted int64
	attempts := repo.db.quizAttempts[:0]
	for _, a := range repo.db.quizAttempts {
		if a.UserID == userID && !a.CompletedAt.Valid {
			deleted++
			continue
		}
		attempts = append(attempts, a)
	}
	repo.db.quizAttempts = attempts
	return deleted, nil
}
