package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core/audit"
	"github.com/vigilsat/vigil/core/report"
)

type reportApi struct {
	svc *report.Service
	rec *audit.Recorder
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *report.Service, rec *audit.Recorder) {
	api := reportApi{svc: svc, rec: rec}

	rg := g.Group("/reports", jwt, staffOnly)
	rg.GET("/dashboard", api.dashboard)
	rg.GET("/compliance", api.compliance)
	rg.GET("/training-progress", api.trainingProgress)
	rg.GET("/quiz-performance", api.quizPerformance)
	rg.GET("/policy-acknowledgments", api.policyAcknowledgments)
	rg.POST("/export", api.export)
	if rec != nil {
		rg.GET("/audit-logs", api.auditLogs, adminOnly)
	}
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	d, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *reportApi) compliance(ctx echo.Context) error {
	rows, err := api.svc.Compliance(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building compliance report")
	}
	if rows == nil {
		rows = []report.DepartmentCompliance{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *reportApi) trainingProgress(ctx echo.Context) error {
	rows, err := api.svc.TrainingProgress(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building training progress report")
	}
	if rows == nil {
		rows = []report.ModuleProgress{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *reportApi) quizPerformance(ctx echo.Context) error {
	rows, err := api.svc.QuizPerformance(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building quiz performance report")
	}
	if rows == nil {
		rows = []report.QuizPerformance{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *reportApi) policyAcknowledgments(ctx echo.Context) error {
	rows, err := api.svc.PolicyAcknowledgments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building policy acknowledgments report")
	}
	if rows == nil {
		rows = []report.PolicyAcknowledgment{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *reportApi) export(ctx echo.Context) error {
	var data report.ExportRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	exp, err := api.svc.Export(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "exporting report")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename))
	return ctx.Blob(http.StatusOK, exp.ContentType, exp.Data)
}

func (api *reportApi) auditLogs(ctx echo.Context) error {
	var filter audit.QueryFilter
	if err := bind(ctx, &filter); err != nil {
		return err
	}
	logs, err := api.rec.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing audit logs")
	}
	if logs == nil {
		logs = []audit.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}
