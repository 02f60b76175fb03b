package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications")
	ng.GET("", api.query)
	ng.PUT("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	notifs, err := api.svc.Query(ctx.Request().Context(), ctxFaculty(ctx).ID, queryBool(ctx, "unread"))
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	n, err := api.svc.MarkRead(ctx.Request().Context(), ctxFaculty(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}
