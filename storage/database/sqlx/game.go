package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/game"
)

var gameColumns = []string{
	"id", "title", "description", "game_type", "difficulty", "max_score", "config",
	"is_active", "created_at", "updated_at",
}

type gameRepository struct {
	repository
}

var _ game.Repository = (*gameRepository)(nil) // interface compliance check

func NewGameRepository(db core.DB) *gameRepository {
	return &gameRepository{repository{db: db}}
}

func (repo gameRepository) Filter(ctx context.Context, filter game.QueryFilter) ([]game.Game, error) {
	b := builder.Select(gameColumns...).From("games").OrderBy("title ASC")
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	if filter.GameType != "" {
		b = b.Where(sq.Eq{"game_type": filter.GameType})
	}
	if filter.Difficulty != "" {
		b = b.Where(sq.Eq{"difficulty": filter.Difficulty})
	}

	games := make([]game.Game, 0)
	if err := selectAll(ctx, repo.db, &games, b); err != nil {
		return nil, errors.Wrap(err, "filtering games")
	}
	return games, nil
}

func (repo gameRepository) GetByID(ctx context.Context, id int64) (game.Game, error) {
	var g game.Game
	if err := get(ctx, repo.db, &g, builder.Select(gameColumns...).From("games").Where(sq.Eq{"id": id})); err != nil {
		return game.Game{}, trapNoRowsErr(err, game.ErrNotFound)
	}
	return g, nil
}

func (repo gameRepository) Create(ctx context.Context, g game.Game) (game.Game, error) {
	id, err := insert(ctx, repo.db, builder.Insert("games").
		Columns(gameColumns[1:]...).
		Values(g.Title, g.Description, g.GameType, g.Difficulty, g.MaxScore, g.Config,
			g.IsActive, g.CreatedAt, g.UpdatedAt))
	if err != nil {
		return game.Game{}, errors.Wrap(err, "inserting game")
	}
	g.ID = id
	return g, nil
}

func (repo gameRepository) Update(ctx context.Context, g game.Game) (game.Game, error) {
	res, err := execute(ctx, repo.db, builder.Update("games").
		SetMap(map[string]interface{}{
			"title":       g.Title,
			"description": g.Description,
			"game_type":   g.GameType,
			"difficulty":  g.Difficulty,
			"max_score":   g.MaxScore,
			"config":      g.Config,
			"is_active":   g.IsActive,
			"updated_at":  g.UpdatedAt,
		}).
		Where(sq.Eq{"id": g.ID}))
	if err != nil {
		return game.Game{}, errors.Wrap(err, "updating game")
	}
	if err = mustAffect(res, game.ErrNotFound); err != nil {
		return game.Game{}, err
	}
	return g, nil
}

func (repo gameRepository) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, repo.db, builder.Delete("games").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting game")
	}
	return mustAffect(res, game.ErrNotFound)
}

func (repo gameRepository) CreateAttempt(ctx context.Context, a game.Attempt) (game.Attempt, error) {
	id, err := insert(ctx, repo.db, builder.Insert("game_attempts").
		Columns("game_id", "user_id", "score", "max_score", "time_taken", "completed", "played_at").
		Values(a.GameID, a.UserID, a.Score, a.MaxScore, a.TimeTaken, a.Completed, a.PlayedAt))
	if err != nil {
		return game.Attempt{}, errors.Wrap(err, "inserting game attempt")
	}
	a.ID = id
	return a, nil
}

func (repo gameRepository) ListAttempts(ctx context.Context, userID int64) ([]game.Attempt, error) {
	attempts := make([]game.Attempt, 0)
	b := builder.
		Select("a.id", "a.game_id", "a.user_id", "a.score", "a.max_score", "a.time_taken",
			"a.completed", "a.played_at", "g.title AS game_title").
		From("game_attempts a").
		Join("games g ON g.id = a.game_id").
		Where(sq.Eq{"a.user_id": userID}).
		OrderBy("a.played_at DESC", "a.id DESC")
	if err := selectAll(ctx, repo.db, &attempts, b); err != nil {
		return nil, errors.Wrap(err, "listing game attempts")
	}
	return attempts, nil
}

func (repo gameRepository) Leaderboard(ctx context.Context, gameID int64, limit int) ([]game.LeaderboardEntry, error) {
	entries := make([]game.LeaderboardEntry, 0, limit)
	b := builder.
		Select("u.id AS user_id", "u.username", "u.department", "MAX(a.score) AS best_score", "COUNT(*) AS attempts").
		From("game_attempts a").
		Join("users u ON u.id = a.user_id").
		Where(sq.Eq{"a.game_id": gameID, "u.is_active": true}).
		GroupBy("u.id", "u.username", "u.department").
		OrderBy("best_score DESC", "MIN(a.time_taken) ASC", "u.username ASC").
		Limit(uint64(limit))
	if err := selectAll(ctx, repo.db, &entries, b); err != nil {
		return nil, errors.Wrap(err, "loading leaderboard")
	}
	return entries, nil
}
