package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/faculty"
)

type facultyApi struct {
	svc *faculty.Service
}

func registerFacultyAPI(g *echo.Group, head echo.MiddlewareFunc, svc *faculty.Service) {
	api := facultyApi{svc: svc}

	fg := g.Group("/faculty")
	fg.GET("", api.query, head)
	fg.GET("/me", api.me)
}

func (api *facultyApi) query(ctx echo.Context) error {
	filter := faculty.QueryFilter{
		Department: ctx.QueryParam("department"),
		Subject:    ctx.QueryParam("subject"),
		Role:       ctx.QueryParam("role"),
		ActiveOnly: queryBool(ctx, "active"),
	}
	filter.Clean()

	members, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying faculty")
	}
	if members == nil {
		members = []faculty.Faculty{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *facultyApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctxFaculty(ctx))
}
