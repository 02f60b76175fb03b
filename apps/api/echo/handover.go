package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/routine"
)

type handoverApi struct {
	svc      *handover.Service
	validate *validator.Validate
}

func registerHandoverAPI(g *echo.Group, head echo.MiddlewareFunc, svc *handover.Service, validate *validator.Validate) {
	api := handoverApi{svc: svc, validate: validate}

	hg := g.Group("/handovers")
	hg.GET("/availability", api.availability)
	hg.GET("/substitutes", api.substitutes)
	hg.POST("", api.create)
	hg.GET("", api.query)
	hg.GET("/:id", api.retrieve)
	hg.PUT("/:id", api.decide, head)
}

func (api *handoverApi) availability(ctx echo.Context) error {
	avail, err := api.svc.CheckAvailability(
		ctx.Request().Context(),
		ctx.QueryParam("substitute_id"),
		ctx.QueryParam("date"),
		ctx.QueryParam("time_slot"),
	)
	if err != nil {
		return errors.Wrap(err, "checking availability")
	}
	return ctx.JSON(http.StatusOK, avail)
}

func (api *handoverApi) substitutes(ctx echo.Context) error {
	members, err := api.svc.SuggestSubstitutes(
		ctx.Request().Context(),
		ctxFaculty(ctx).ID,
		ctx.QueryParam("date"),
		ctx.QueryParam("time_slot"),
		ctx.QueryParam("subject"),
	)
	if err != nil {
		return errors.Wrap(err, "suggesting substitutes")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *handoverApi) create(ctx echo.Context) error {
	var data handover.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Create(ctx.Request().Context(), ctxFaculty(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating handover")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *handoverApi) query(ctx echo.Context) error {
	var filter handover.QueryFilter
	if s := core.CleanString(ctx.QueryParam("status")); s != "" {
		// accept any case: pending, APPROVED...
		filter.Status = handover.Status(strings.ToUpper(s[:1]) + strings.ToLower(s[1:]))
		switch filter.Status {
		case handover.StatusPending, handover.StatusApproved, handover.StatusRejected:
		default:
			return core.NewFieldError("status", "must be one of: Pending, Approved, Rejected")
		}
	}
	if d := ctx.QueryParam("date"); d != "" {
		day, err := routine.ParseDateField("date", d)
		if err != nil {
			return err
		}
		filter.Date = day
	}

	requests, err := api.svc.Query(ctx.Request().Context(), ctxFaculty(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying handovers")
	}
	if requests == nil {
		requests = []handover.Request{}
	}
	return ctx.JSON(http.StatusOK, requests)
}

func (api *handoverApi) retrieve(ctx echo.Context) error {
	req, err := api.svc.Get(ctx.Request().Context(), ctxFaculty(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding handover")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *handoverApi) decide(ctx echo.Context) error {
	var data handover.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Decide(ctx.Request().Context(), ctx.Param("id"), ctxFaculty(ctx), data)
	if err != nil {
		return errors.Wrap(err, "deciding handover")
	}
	return ctx.JSON(http.StatusOK, req)
}
