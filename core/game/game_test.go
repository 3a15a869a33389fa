package game_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/user"
	inmemdb "github.com/vigilsat/vigil/storage/database/inmem"
)

func TestService_SubmitAttempt(t *testing.T) {
	validate, _ := core.NewValidator()
	svc := game.NewService(inmemdb.NewRepositories(inmemdb.NewDB()).Games, validate)
	ctx := context.Background()

	g, err := svc.Create(ctx, game.NewGame{Title: "Spot the Phish", GameType: " Phishing "})
	require.NoError(t, err)
	assert.Equal(t, "phishing", g.GameType)
	assert.Equal(t, 100, g.MaxScore)

	a, err := svc.SubmitAttempt(ctx, g.ID, 7, game.NewAttempt{Score: 80, TimeTaken: 45, Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 100, a.MaxScore)
	assert.Equal(t, "Spot the Phish", a.GameTitle)

	_, err = svc.SubmitAttempt(ctx, g.ID, 7, game.NewAttempt{Score: 101})
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	assert.Equal(t, "score", vErr.Fields[0].Field)

	_, err = svc.SubmitAttempt(ctx, g.ID, 7, game.NewAttempt{Score: -1})
	assert.Error(t, err)

	_, err = svc.SubmitAttempt(ctx, 999, 7, game.NewAttempt{Score: 1})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Leaderboard(t *testing.T) {
	validate, _ := core.NewValidator()
	repos := inmemdb.NewRepositories(inmemdb.NewDB())
	svc := game.NewService(repos.Games, validate)
	ctx := context.Background()

	newUser := func(uname string, active bool) user.User {
		usr, err := repos.Users.Create(ctx, user.User{Username: uname, Email: uname + "@test.cd", IsActive: active, Department: "IT"})
		require.NoError(t, err)
		return usr
	}
	awe, king, hero, naughty := newUser("awe", true), newUser("king", true), newUser("hero", true), newUser("naughty", false)

	g, err := svc.Create(ctx, game.NewGame{Title: "Password Strength", GameType: "passwords"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, game.NewGame{Title: "Other", GameType: "other"})
	require.NoError(t, err)

	for _, s := range []struct {
		gameID int64
		userID int64
		score  int
	}{
		{g.ID, awe.ID, 40}, {g.ID, awe.ID, 90}, {g.ID, king.ID, 70}, {g.ID, hero.ID, 90},
		{g.ID, naughty.ID, 100}, {other.ID, king.ID, 100},
	} {
		_, err = svc.SubmitAttempt(ctx, s.gameID, s.userID, game.NewAttempt{Score: s.score})
		require.NoError(t, err)
	}

	board, err := svc.Leaderboard(ctx, g.ID, 0)
	require.NoError(t, err)
	require.Len(t, board, 3, "inactive users are not ranked")
	assert.Equal(t, game.LeaderboardEntry{UserID: awe.ID, Username: "awe", Department: "IT", BestScore: 90, Attempts: 2}, board[0])
	assert.Equal(t, "hero", board[1].Username)
	assert.Equal(t, "king", board[2].Username)
	assert.Equal(t, 70, board[2].BestScore)

	board, err = svc.Leaderboard(ctx, g.ID, 1)
	require.NoError(t, err)
	assert.Len(t, board, 1)

	_, err = svc.Leaderboard(ctx, 999, 10)
	assert.True(t, core.IsNotFound(err))
}
