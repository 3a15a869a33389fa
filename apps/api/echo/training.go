package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/training"
)

type trainingApi struct {
	svc *training.Service
}

func registerTrainingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *training.Service) {
	api := trainingApi{svc: svc}

	tg := g.Group("/training", jwt)
	tg.GET("/modules", api.list)
	tg.GET("/modules/:id", api.get)
	tg.POST("/modules/:id/progress", api.progress)
	tg.GET("/progress/me", api.myProgress)

	tg.POST("/modules", api.create, staffOnly)
	tg.PUT("/modules/:id", api.update, staffOnly)
	tg.DELETE("/modules/:id", api.destroy, adminOnly)
}

func (api *trainingApi) list(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var filter training.QueryFilter
	if err = bind(ctx, &filter); err != nil {
		return err
	}

	modules, err := api.svc.ListActive(ctx.Request().Context(), id.ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing training modules")
	}
	if modules == nil {
		modules = []training.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *trainingApi) get(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	mid, err := paramID(ctx)
	if err != nil {
		return err
	}

	m, err := api.svc.Get(ctx.Request().Context(), mid, id.ID)
	if err != nil {
		return errors.Wrap(err, "getting training module")
	}
	if !m.IsActive && !isStaff(id) {
		return training.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *trainingApi) progress(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	mid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data training.UpdateProgress
	if err = bind(ctx, &data); err != nil {
		return err
	}

	p, err := api.svc.UpdateProgress(ctx.Request().Context(), mid, id.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating training progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *trainingApi) myProgress(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	progress, err := api.svc.ListProgress(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing training progress")
	}
	if progress == nil {
		progress = []training.Progress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *trainingApi) create(ctx echo.Context) error {
	var data training.NewModule
	if err := bind(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating training module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *trainingApi) update(ctx echo.Context) error {
	mid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data training.UpdateModule
	if err = bind(ctx, &data); err != nil {
		return err
	}

	m, err := api.svc.Update(ctx.Request().Context(), mid, data)
	if err != nil {
		return errors.Wrap(err, "updating training module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *trainingApi) destroy(ctx echo.Context) error {
	mid, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), mid); err != nil {
		return errors.Wrap(err, "deleting training module")
	}
	return ctx.NoContent(http.StatusNoContent)
}
