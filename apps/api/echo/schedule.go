package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
)

type scheduleApi struct {
	svc      *attendance.Service
	validate *validator.Validate
	loc      *time.Location
}

func registerScheduleAPI(
	g *echo.Group,
	head echo.MiddlewareFunc,
	svc *attendance.Service,
	validate *validator.Validate,
	loc *time.Location,
) {
	api := scheduleApi{svc: svc, validate: validate, loc: loc}

	sg := g.Group("/schedule")
	sg.GET("/daily", api.daily)
	sg.GET("/daily/all", api.dailyAll, head)

	ag := g.Group("/attendance")
	ag.POST("", api.mark)
	ag.GET("/stats", api.stats)
}

func (api *scheduleApi) daily(ctx echo.Context) error {
	facultyID, err := targetFaculty(ctx, core.CleanString(ctx.QueryParam("faculty_id")))
	if err != nil {
		return err
	}
	day, err := queryDate(ctx, "date", api.loc)
	if err != nil {
		return err
	}

	instances, err := api.svc.DailySchedule(ctx.Request().Context(), facultyID, day, attendance.FacultyView)
	if err != nil {
		return errors.Wrap(err, "building daily schedule")
	}
	return ctx.JSON(http.StatusOK, instances)
}

func (api *scheduleApi) dailyAll(ctx echo.Context) error {
	day, err := queryDate(ctx, "date", api.loc)
	if err != nil {
		return err
	}

	instances, err := api.svc.HeadDailySchedule(ctx.Request().Context(), ctxFaculty(ctx), day)
	if err != nil {
		return errors.Wrap(err, "building department schedule")
	}
	return ctx.JSON(http.StatusOK, instances)
}

func (api *scheduleApi) mark(ctx echo.Context) error {
	var data attendance.MarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.Mark(ctx.Request().Context(), ctxFaculty(ctx), data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *scheduleApi) stats(ctx echo.Context) error {
	facultyID, err := targetFaculty(ctx, core.CleanString(ctx.QueryParam("faculty_id")))
	if err != nil {
		return err
	}

	stats, err := api.svc.RangeStatistics(
		ctx.Request().Context(),
		facultyID,
		ctx.QueryParam("start_date"),
		ctx.QueryParam("end_date"),
	)
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
