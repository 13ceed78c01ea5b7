package bff

import (
	"fmt"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// MountAPIProxy forwards /api/* to the application backend, translating the
// access-token cookie into an Authorization bearer header. The backend never
// sees gateway cookies and performs its own token verification. A no-op when
// no backend URL is configured.
func (g *Gateway) MountAPIProxy(e *echo.Echo) error {
	if g.cfg.BackendBaseURL == "" {
		return nil
	}

	target, err := url.Parse(g.cfg.BackendBaseURL)
	if err != nil {
		return fmt.Errorf("parse backend base url: %w", err)
	}

	group := e.Group("/api")
	group.Use(bearerFromCookie)
	group.Use(middleware.Proxy(middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{
		{URL: target},
	})))

	return nil
}

func bearerFromCookie(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if cookie, err := c.Request().Cookie(CookieAccessToken); err == nil && cookie.Value != "" {
			c.Request().Header.Set("Authorization", "Bearer "+cookie.Value)
		}
		// the raw tokens stay on this side of the proxy
		c.Request().Header.Del("Cookie")
		return next(c)
	}
}
