package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIHeaders marks control API responses as uncacheable and disables MIME
// sniffing.
func APIHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
