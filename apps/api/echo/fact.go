package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/fact"
)

type factApi struct {
	svc *fact.Service
}

func registerFactAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fact.Service) {
	api := factApi{svc: svc}

	fg := g.Group("/facts", jwt)
	fg.GET("", api.list)
	fg.GET("/random", api.random)
	fg.GET("/:id", api.get)
	fg.POST("", api.create, adminOnly)
	fg.DELETE("/:id", api.destroy, adminOnly)
}

func (api *factApi) list(ctx echo.Context) error {
	facts, err := api.svc.List(ctx.Request().Context(), ctx.QueryParam("category"))
	if err != nil {
		return errors.Wrap(err, "listing facts")
	}
	if facts == nil {
		facts = []fact.Fact{}
	}
	return ctx.JSON(http.StatusOK, facts)
}

func (api *factApi) random(ctx echo.Context) error {
	f, err := api.svc.Random(ctx.Request().Context(), ctx.QueryParam("category"))
	if err != nil {
		return errors.Wrap(err, "picking random fact")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *factApi) get(ctx echo.Context) error {
	fid, err := paramID(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.Get(ctx.Request().Context(), fid)
	if err != nil {
		return errors.Wrap(err, "getting fact")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *factApi) create(ctx echo.Context) error {
	var data fact.NewFact
	if err := bind(ctx, &data); err != nil {
		return err
	}
	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fact")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *factApi) destroy(ctx echo.Context) error {
	fid, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), fid); err != nil {
		return errors.Wrap(err, "deleting fact")
	}
	return ctx.NoContent(http.StatusNoContent)
}
