package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/services/realtime"
)

const defaultLeaderboardSize = 10

type gameApi struct {
	svc *game.Service
	hub *realtime.Hub
}

func registerGameAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *game.Service, hub *realtime.Hub) {
	api := gameApi{svc: svc, hub: hub}

	gg := g.Group("/games", jwt)
	gg.GET("", api.list)
	gg.GET("/attempts/me", api.attempts)
	gg.GET("/:id", api.get)
	gg.GET("/:id/leaderboard", api.leaderboard)
	gg.POST("/:id/attempt", api.attempt)

	gg.POST("", api.create, adminOnly)
	gg.PUT("/:id", api.update, adminOnly)
	gg.DELETE("/:id", api.destroy, adminOnly)
}

func (api *gameApi) list(ctx echo.Context) error {
	var filter game.QueryFilter
	if err := bind(ctx, &filter); err != nil {
		return err
	}
	games, err := api.svc.ListActive(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing games")
	}
	if games == nil {
		games = []game.Game{}
	}
	return ctx.JSON(http.StatusOK, games)
}

func (api *gameApi) get(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	gid, err := paramID(ctx)
	if err != nil {
		return err
	}

	gm, err := api.svc.Get(ctx.Request().Context(), gid)
	if err != nil {
		return errors.Wrap(err, "getting game")
	}
	if !gm.IsActive && !isStaff(id) {
		return game.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, gm)
}

func (api *gameApi) leaderboard(ctx echo.Context) error {
	gid, err := paramID(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), gid, queryInt(ctx, "limit", defaultLeaderboardSize))
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	if entries == nil {
		entries = []game.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *gameApi) attempt(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	gid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data game.NewAttempt
	if err = bind(ctx, &data); err != nil {
		return err
	}

	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), gid, id.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting game attempt")
	}

	publish(api.hub, realtime.EventGameUpdate, map[string]interface{}{
		"game_id":   a.GameID,
		"score":     a.Score,
		"max_score": a.MaxScore,
		"completed": a.Completed,
	}, id)
	return ctx.JSON(http.StatusCreated, a)
}

func (api *gameApi) attempts(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	attempts, err := api.svc.ListAttempts(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing game attempts")
	}
	if attempts == nil {
		attempts = []game.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *gameApi) create(ctx echo.Context) error {
	var data game.NewGame
	if err := bind(ctx, &data); err != nil {
		return err
	}
	gm, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating game")
	}
	return ctx.JSON(http.StatusCreated, gm)
}

func (api *gameApi) update(ctx echo.Context) error {
	gid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data game.UpdateGame
	if err = bind(ctx, &data); err != nil {
		return err
	}

	gm, err := api.svc.Update(ctx.Request().Context(), gid, data)
	if err != nil {
		return errors.Wrap(err, "updating game")
	}
	return ctx.JSON(http.StatusOK, gm)
}

func (api *gameApi) destroy(ctx echo.Context) error {
	gid, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), gid); err != nil {
		return errors.Wrap(err, "deleting game")
	}
	return ctx.NoContent(http.StatusNoContent)
}
