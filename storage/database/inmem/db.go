// Package inmemdb holds in-memory repositories, used by the API tests and local demos.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/vigilsat/vigil/core/audit"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/core/training"
	"github.com/vigilsat/vigil/core/user"
)

// DB is a set of tables guarded by a single lock.
type DB struct {
	mu  sync.RWMutex
	seq int64

	users        map[int64]user.User
	policies     map[int64]policy.Policy
	acks         []policy.Acknowledgment
	quizzes      map[int64]quiz.Quiz // with questions
	quizAttempts []quiz.Attempt
	games        map[int64]game.Game
	gameAttempts []game.Attempt
	modules      map[int64]training.Module
	progress     []training.Progress
	facts        map[int64]fact.Fact
	auditLogs    []audit.Log

	// InsertAuditErr, when set, is returned by the audit repository.
	InsertAuditErr error
}

func NewDB() *DB {
	return &DB{
		users:    make(map[int64]user.User),
		policies: make(map[int64]policy.Policy),
		quizzes:  make(map[int64]quiz.Quiz),
		games:    make(map[int64]game.Game),
		modules:  make(map[int64]training.Module),
		facts:    make(map[int64]fact.Fact),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Repositories bundles every repository over a single DB.
type Repositories struct {
	Users    *userRepository
	Policies *policyRepository
	Quizzes  *quizRepository
	Games    *gameRepository
	Training *trainingRepository
	Facts    *factRepository
	Audit    *auditRepository
	Reports  *reportRepository
}

func NewRepositories(db *DB) Repositories {
	return Repositories{
		Users:    &userRepository{db: db},
		Policies: &policyRepository{db: db},
		Quizzes:  &quizRepository{db: db},
		Games:    &gameRepository{db: db},
		Training: &trainingRepository{db: db},
		Facts:    &factRepository{db: db},
		Audit:    &auditRepository{db: db},
		Reports:  &reportRepository{db: db},
	}
}
