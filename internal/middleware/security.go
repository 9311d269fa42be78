package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"edgemask/internal/config"
	"edgemask/internal/service"
)

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from incoming requests and hardens admin responses. Proxied responses keep
// the origin's own framing and sniffing policy.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			service.StripHopByHop(c.Request().Header)

			if isAdmin(c.Request().URL.Path) {
				c.Response().Header().Set("X-Content-Type-Options", "nosniff")
				c.Response().Header().Set("X-Frame-Options", "DENY")
				c.Response().Header().Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}

func isAdmin(path string) bool {
	return path == config.AdminPrefix || strings.HasPrefix(path, config.AdminPrefix+"/")
}
