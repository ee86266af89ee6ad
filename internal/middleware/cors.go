package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	corsAllowMethods  = "GET, OPTIONS"
	corsAllowHeaders  = "Range,Content-Type,Authorization"
	corsExposeHeaders = "Content-Length,Content-Range,Accept-Ranges"
)

// CORS returns an Echo middleware that lets any origin use the proxy.
// Headers are set on every response whether or not the request carries an
// Origin, and preflight requests on any path are answered with 200 and an
// empty body.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
			h.Set(echo.HeaderAccessControlExposeHeaders, corsExposeHeaders)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
