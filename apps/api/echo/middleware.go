package echoapi

import (
	"github.com/labstack/echo/v4"
)

// adminMiddleware lets through admins holding every given capability.
func adminMiddleware(capabilities ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.IsAdmin() {
				return errHttpForbidden
			}
			for _, c := range capabilities {
				if !usr.Can(c) {
					return errHttpForbidden
				}
			}
			return next(ctx)
		}
	}
}
