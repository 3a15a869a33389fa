package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core/training"
)

type trainingRepository struct {
	db *DB
}

var _ training.Repository = (*trainingRepository)(nil) // interface compliance check

// withProgress must be called with the lock held.
func (repo *trainingRepository) withProgress(m training.Module, userID int64) training.Module {
	m.Status, m.Progress, m.CompletedAt = training.StatusNotStarted, 0, null.Time{}
	if userID == 0 {
		return m
	}
	for _, p := range repo.db.progress {
		if p.ModuleID == m.ID && p.UserID == userID {
			m.Status, m.Progress, m.CompletedAt = p.Status, p.Progress, p.CompletedAt
			break
		}
	}
	return m
}

func (repo *trainingRepository) Filter(_ context.Context, filter training.QueryFilter) ([]training.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	modules := make([]training.Module, 0)
	for _, m := range repo.db.modules {
		if filter.ActiveOnly && !m.IsActive {
			continue
		}
		if filter.Category != "" && m.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && m.Difficulty != filter.Difficulty {
			continue
		}
		modules = append(modules, repo.withProgress(m, filter.UserID))
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Position != modules[j].Position {
			return modules[i].Position < modules[j].Position
		}
		return modules[i].ID < modules[j].ID
	})
	return modules, nil
}

func (repo *trainingRepository) GetByID(_ context.Context, id, userID int64) (training.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	m, ok := repo.db.modules[id]
	if !ok {
		return training.Module{}, training.ErrNotFound
	}
	return repo.withProgress(m, userID), nil
}

func (repo *trainingRepository) Create(_ context.Context, m training.Module) (training.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = repo.db.nextID()
	repo.db.modules[m.ID] = m
	return m, nil
}

func (repo *trainingRepository) Update(_ context.Context, m training.Module) (training.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[m.ID]; !ok {
		return training.Module{}, training.ErrNotFound
	}
	repo.db.modules[m.ID] = m
	return m, nil
}

func (repo *trainingRepository) Delete(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[id]; !ok {
		return training.ErrNotFound
	}
	delete(repo.db.modules, id)
	return nil
}

func (repo *trainingRepository) UpsertProgress(_ context.Context, p training.Progress) (training.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, existing := range repo.db.progress {
		if existing.ModuleID != p.ModuleID || existing.UserID != p.UserID {
			continue
		}
		p.ID = existing.ID
		if existing.StartedAt.Valid {
			p.StartedAt = existing.StartedAt
		}
		if p.Status == training.StatusCompleted && existing.CompletedAt.Valid {
			p.CompletedAt = existing.CompletedAt
		}
		repo.db.progress[i] = p
		return p, nil
	}
	p.ID = repo.db.nextID()
	repo.db.progress = append(repo.db.progress, p)
	return p, nil
}

func (repo *trainingRepository) ListProgress(_ context.Context, userID int64) ([]training.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	progress := make([]training.Progress, 0)
	for _, p := range repo.db.progress {
		if p.UserID != userID {
			continue
		}
		if m, ok := repo.db.modules[p.ModuleID]; ok {
			p.ModuleTitle = m.Title
		}
		progress = append(progress, p)
	}
	return progress, nil
}
