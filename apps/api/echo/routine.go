package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/routine"
)

type routineApi struct {
	svc        *routine.Service
	facultySvc *faculty.Service
	validate   *validator.Validate
}

func registerRoutineAPI(g *echo.Group, svc *routine.Service, facultySvc *faculty.Service, validate *validator.Validate) {
	api := routineApi{svc: svc, facultySvc: facultySvc, validate: validate}

	rg := g.Group("/routines")
	rg.POST("", api.create)
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
}

// create stores a new revision for the caller, or for faculty_id when the caller is a head.
func (api *routineApi) create(ctx echo.Context) error {
	var data routine.NewRoutine
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoutine")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	facultyID, err := targetFaculty(ctx, data.FacultyID)
	if err != nil {
		return err
	}
	owner := ctxFaculty(ctx)
	if facultyID != owner.ID {
		if owner, err = api.facultySvc.GetByID(ctx.Request().Context(), facultyID); err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("faculty_id", "faculty member not found")
			}
			return errors.Wrap(err, "finding faculty by ID")
		}
	}

	rtn, err := api.svc.Create(ctx.Request().Context(), owner.ID, owner.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating routine")
	}
	return ctx.JSON(http.StatusCreated, rtn)
}

func (api *routineApi) query(ctx echo.Context) error {
	facultyID, err := targetFaculty(ctx, core.CleanString(ctx.QueryParam("faculty_id")))
	if err != nil {
		return err
	}
	routines, err := api.svc.QueryByFaculty(ctx.Request().Context(), facultyID)
	if err != nil {
		return errors.Wrap(err, "querying routines")
	}
	if routines == nil {
		routines = []routine.Routine{}
	}
	return ctx.JSON(http.StatusOK, routines)
}

func (api *routineApi) retrieve(ctx echo.Context) error {
	rtn, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if me := ctxFaculty(ctx); rtn.FacultyID != me.ID && !me.IsHead() {
		return routine.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, rtn)
}
