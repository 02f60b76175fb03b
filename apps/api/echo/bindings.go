package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

// queryDate parses the date query parameter. An absent one means today in loc.
func queryDate(ctx echo.Context, param string, loc *time.Location) (time.Time, error) {
	s := core.CleanString(ctx.QueryParam(param))
	if s == "" {
		return routine.CalendarDay(time.Now().In(loc)), nil
	}
	return routine.ParseDateField(param, s)
}

// queryBool accepts 1, t, true, yes and on; anything else is false.
func queryBool(ctx echo.Context, param string) bool {
	s := strings.ToLower(core.CleanString(ctx.QueryParam(param)))
	if s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
