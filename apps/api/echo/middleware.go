package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/ratiba/core/faculty"
)

// facultyMiddleware loads the authenticated member into the context.
func facultyMiddleware(svc *faculty.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextFaculty(ctx, svc); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// headMiddleware lets department heads through. The stored roles win over the token's.
func headMiddleware(svc *faculty.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			fac, err := getContextFaculty(ctx, svc)
			if err != nil {
				return err
			}
			if !fac.IsHead() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// ctxFaculty returns the member set by facultyMiddleware.
func ctxFaculty(ctx echo.Context) faculty.Faculty {
	fac, _ := ctx.Get(contextFacultyKey).(faculty.Faculty)
	return fac
}

// targetFaculty resolves the faculty_id a request is about: the caller by default, anyone for heads.
func targetFaculty(ctx echo.Context, facultyID string) (string, error) {
	me := ctxFaculty(ctx)
	if facultyID == "" || facultyID == me.ID {
		return me.ID, nil
	}
	if !me.IsHead() {
		return "", errHttpForbidden
	}
	return facultyID, nil
}
