package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core/notification"
)

type notificationApi struct {
	*Deps
}

func registerNotificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *Deps) {
	api := notificationApi{Deps: deps}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.query)
	ng.POST("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ns, err := api.NotificationSvc.Query(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if ns == nil {
		ns = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, ns)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	n, err := api.NotificationSvc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}
