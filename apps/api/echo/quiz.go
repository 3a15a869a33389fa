package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/services/realtime"
)

type quizApi struct {
	svc *quiz.Service
	hub *realtime.Hub
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service, hub *realtime.Hub) {
	api := quizApi{svc: svc, hub: hub}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.list)
	qg.GET("/attempts/me", api.attempts)
	qg.DELETE("/clear-incomplete", api.clearIncomplete)
	qg.GET("/:id", api.get)
	qg.POST("/:id/attempt", api.attempt)

	qg.POST("", api.create, staffOnly)
	qg.PUT("/:id", api.update, staffOnly)
	qg.DELETE("/:id", api.destroy, adminOnly)
}

func (api *quizApi) list(ctx echo.Context) error {
	var filter quiz.QueryFilter
	if err := bind(ctx, &filter); err != nil {
		return err
	}
	quizzes, err := api.svc.ListActive(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) get(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	qid, err := paramID(ctx)
	if err != nil {
		return err
	}

	q, err := api.svc.Get(ctx.Request().Context(), qid)
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	if !q.IsActive && !isStaff(id) {
		return quiz.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) attempt(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	qid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewAttempt
	if err = bind(ctx, &data); err != nil {
		return err
	}

	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), qid, id.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz attempt")
	}

	publish(api.hub, realtime.EventQuizUpdate, map[string]interface{}{
		"quiz_id": a.QuizID,
		"score":   a.Score,
		"passed":  a.Passed,
	}, id)
	return ctx.JSON(http.StatusCreated, a)
}

func (api *quizApi) attempts(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	attempts, err := api.svc.ListAttempts(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing quiz attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) clearIncomplete(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.ClearIncompleteAttempts(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "clearing incomplete attempts")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

func (api *quizApi) create(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewQuiz
	if err = bind(ctx, &data); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), creatorID(id), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) update(ctx echo.Context) error {
	qid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data quiz.UpdateQuiz
	if err = bind(ctx, &data); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), qid, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	qid, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), qid); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}
