package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/psp-schools/psp/core/analytics"
	"github.com/psp-schools/psp/services/render"
)

type analyticsApi struct {
	svc          *analytics.Service
	validate     *validator.Validate
	lookbackDays int // default trailing window
}

func registerAnalyticsAPI(g *echo.Group, svc *analytics.Service, validate *validator.Validate, lookbackDays int) {
	api := analyticsApi{
		svc:          svc,
		validate:     validate,
		lookbackDays: lookbackDays,
	}

	ag := g.Group("/analytics")
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/attendance", api.attendance)
	ag.GET("/schools", api.listSchools)
	ag.GET("/schools/:id/features", api.features)

	rg := g.Group("/reports/:id")
	rg.GET("", api.report)
	rg.GET("/markdown", api.reportMarkdown)
}

// Handlers

func (api *analyticsApi) dashboard(ctx echo.Context) error {
	var query analytics.DashboardQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DashboardQuery")
	}
	if err := query.Validate(api.validate, api.lookbackDays); err != nil {
		return err
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), query.LookbackDays)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *analyticsApi) attendance(ctx echo.Context) error {
	var query analytics.AttendanceQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to AttendanceQuery")
	}
	if err := query.Validate(api.validate, api.lookbackDays); err != nil {
		return err
	}

	agg, err := api.svc.Attendance(ctx.Request().Context(), query.EntityKind(), query.SchoolID, query.LookbackDays)
	if err != nil {
		return errors.Wrap(err, "aggregating attendance")
	}
	return ctx.JSON(http.StatusOK, agg)
}

func (api *analyticsApi) listSchools(ctx echo.Context) error {
	schools, err := api.svc.ListSchools(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *analyticsApi) features(ctx echo.Context) error {
	var query analytics.FeaturesQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to FeaturesQuery")
	}
	if err := query.Validate(api.validate, api.lookbackDays); err != nil {
		return err
	}

	f, err := api.svc.SchoolFeatures(ctx.Request().Context(), query.SchoolID, query.LookbackDays)
	if err != nil {
		return errors.Wrap(err, "building school features")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *analyticsApi) report(ctx echo.Context) error {
	rep, err := api.generateReport(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) reportMarkdown(ctx echo.Context) error {
	rep, err := api.generateReport(ctx)
	if err != nil {
		return err
	}
	md, err := render.Markdown(rep.Document)
	if err != nil {
		return err
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+render.MarkdownFilename(rep.Document)+`"`)
	return ctx.Blob(http.StatusOK, render.MarkdownContentType, md)
}

func (api *analyticsApi) generateReport(ctx echo.Context) (analytics.Report, error) {
	var query analytics.ReportQuery
	if err := ctx.Bind(&query); err != nil {
		return analytics.Report{}, errors.Wrap(err, "binding to ReportQuery")
	}
	if err := api.validate.Struct(query); err != nil {
		return analytics.Report{}, err
	}

	rep, err := api.svc.GenerateReport(ctx.Request().Context(), query.SchoolID)
	if err != nil {
		return analytics.Report{}, errors.Wrap(err, "generating report")
	}
	return rep, nil
}
