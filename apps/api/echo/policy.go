package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/services/realtime"
)

type policyApi struct {
	svc *policy.Service
	hub *realtime.Hub
}

func registerPolicyAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *policy.Service, hub *realtime.Hub) {
	api := policyApi{svc: svc, hub: hub}

	pg := g.Group("/policies", jwt)
	pg.GET("", api.list)
	pg.GET("/acknowledgments/me", api.acknowledgments)
	pg.GET("/:id", api.get)
	pg.POST("/:id/acknowledge", api.acknowledge)

	pg.POST("", api.create, staffOnly)
	pg.PUT("/:id", api.update, staffOnly)
	pg.DELETE("/:id", api.destroy, adminOnly)
}

type AcknowledgeResponse struct {
	Acknowledgment      policy.Acknowledgment `json:"acknowledgment"`
	AlreadyAcknowledged bool                  `json:"already_acknowledged"`
}

func (api *policyApi) list(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var filter policy.QueryFilter
	if err = bind(ctx, &filter); err != nil {
		return err
	}

	policies, err := api.svc.ListActive(ctx.Request().Context(), id.ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing policies")
	}
	if policies == nil {
		policies = []policy.Policy{}
	}
	return ctx.JSON(http.StatusOK, policies)
}

func (api *policyApi) get(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	pid, err := paramID(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.Get(ctx.Request().Context(), pid, id.ID)
	if err != nil {
		return errors.Wrap(err, "getting policy")
	}
	// retired policies stay visible to staff only
	if !p.IsActive && !isStaff(id) {
		return policy.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *policyApi) acknowledge(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	pid, err := paramID(ctx)
	if err != nil {
		return err
	}

	ack, already, err := api.svc.Acknowledge(ctx.Request().Context(), pid, id.ID, ctx.RealIP())
	if err != nil {
		return errors.Wrap(err, "acknowledging policy")
	}
	if already {
		return ctx.JSON(http.StatusOK, AcknowledgeResponse{Acknowledgment: ack, AlreadyAcknowledged: true})
	}

	publish(api.hub, realtime.EventPolicyUpdate, map[string]interface{}{
		"policy_id":       ack.PolicyID,
		"acknowledged_at": ack.AcknowledgedAt,
	}, id)
	return ctx.JSON(http.StatusCreated, AcknowledgeResponse{Acknowledgment: ack})
}

func (api *policyApi) acknowledgments(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	acks, err := api.svc.ListAcknowledgments(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing acknowledgments")
	}
	if acks == nil {
		acks = []policy.Acknowledgment{}
	}
	return ctx.JSON(http.StatusOK, acks)
}

func (api *policyApi) create(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var data policy.NewPolicy
	if err = bind(ctx, &data); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), creatorID(id), data)
	if err != nil {
		return errors.Wrap(err, "creating policy")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *policyApi) update(ctx echo.Context) error {
	pid, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data policy.UpdatePolicy
	if err = bind(ctx, &data); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), pid, data)
	if err != nil {
		return errors.Wrap(err, "updating policy")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *policyApi) destroy(ctx echo.Context) error {
	pid, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), pid); err != nil {
		return errors.Wrap(err, "deleting policy")
	}
	return ctx.NoContent(http.StatusNoContent)
}
