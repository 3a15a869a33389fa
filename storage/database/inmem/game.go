package inmemdb

import (
	"context"
	"sort"

	"github.com/vigilsat/vigil/core/game"
)

type gameRepository struct {
	db *DB
}

var _ game.Repository = (*gameRepository)(nil) // interface compliance check

func (repo *gameRepository) Filter(_ context.Context, filter game.QueryFilter) ([]game.Game, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	games := make([]game.Game, 0)
	for _, g := range repo.db.games {
		if filter.ActiveOnly && !g.IsActive {
			continue
		}
		if filter.GameType != "" && g.GameType != filter.GameType {
			continue
		}
		if filter.Difficulty != "" && g.Difficulty != filter.Difficulty {
			continue
		}
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Title < games[j].Title })
	return games, nil
}

func (repo *gameRepository) GetByID(_ context.Context, id int64) (game.Game, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.games[id]; ok {
		return g, nil
	}
	return game.Game{}, game.ErrNotFound
}

func (repo *gameRepository) Create(_ context.Context, g game.Game) (game.Game, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g.ID = repo.db.nextID()
	repo.db.games[g.ID] = g
	return g, nil
}

func (repo *gameRepository) Update(_ context.Context, g game.Game) (game.Game, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.games[g.ID]; !ok {
		return game.Game{}, game.ErrNotFound
	}
	repo.db.games[g.ID] = g
	return g, nil
}

func (repo *gameRepository) Delete(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.games[id]; !ok {
		return game.ErrNotFound
	}
	delete(repo.db.games, id)
	return nil
}

func (repo *gameRepository) CreateAttempt(_ context.Context, a game.Attempt) (game.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextID()
	repo.db.gameAttempts = append(repo.db.gameAttempts, a)
	return a, nil
}

func (repo *gameRepository) ListAttempts(_ context.Context, userID int64) ([]game.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]game.Attempt, 0)
	for i := len(repo.db.gameAttempts) - 1; i >= 0; i-- {
		a := repo.db.gameAttempts[i]
		if a.UserID != userID {
			continue
		}
		if g, ok := repo.db.games[a.GameID]; ok {
			a.GameTitle = g.Title
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo *gameRepository) Leaderboard(_ context.Context, gameID int64, limit int) ([]game.LeaderboardEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byUser := make(map[int64]*game.LeaderboardEntry)
	for _, a := range repo.db.gameAttempts {
		if a.GameID != gameID {
			continue
		}
		usr, ok := repo.db.users[a.UserID]
		if !ok || !usr.IsActive {
			continue
		}
		e, ok := byUser[a.UserID]
		if !ok {
			e = &game.LeaderboardEntry{UserID: usr.ID, Username: usr.Username, Department: usr.Department}
			byUser[a.UserID] = e
		}
		e.Attempts++
		if a.Score > e.BestScore {
			e.BestScore = a.Score
		}
	}

	entries := make([]game.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		return entries[i].Username < entries[j].Username
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
