package inmemdb

import (
	"context"
	"math/rand"
	"sort"

	"github.com/vigilsat/vigil/core/fact"
)

type factRepository struct {
	db *DB
}

var _ fact.Repository = (*factRepository)(nil) // interface compliance check

func (repo *factRepository) active(category string) []fact.Fact {
	facts := make([]fact.Fact, 0)
	for _, f := range repo.db.facts {
		if f.IsActive && (category == "" || f.Category == category) {
			facts = append(facts, f)
		}
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].ID > facts[j].ID })
	return facts
}

func (repo *factRepository) Filter(_ context.Context, category string) ([]fact.Fact, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.active(category), nil
}

func (repo *factRepository) Random(_ context.Context, category string) (fact.Fact, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	facts := repo.active(category)
	if len(facts) == 0 {
		return fact.Fact{}, fact.ErrNotFound
	}
	return facts[rand.Intn(len(facts))], nil
}

func (repo *factRepository) GetByID(_ context.Context, id int64) (fact.Fact, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if f, ok := repo.db.facts[id]; ok {
		return f, nil
	}
	return fact.Fact{}, fact.ErrNotFound
}

func (repo *factRepository) Create(_ context.Context, f fact.Fact) (fact.Fact, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	f.ID = repo.db.nextID()
	repo.db.facts[f.ID] = f
	return f, nil
}

func (repo *factRepository) Delete(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.facts[id]; !ok {
		return fact.ErrNotFound
	}
	delete(repo.db.facts, id)
	return nil
}
