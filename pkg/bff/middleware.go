package bff

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

type pathClass int

const (
	classUnrestricted pathClass = iota
	classProtected
	classAuthOnly
)

type pathRule struct {
	prefix string
	class  pathClass
}

// compilePathRules fixes the evaluation order: protected rules first, then
// auth-only, first prefix match wins. Config validation guarantees the two
// sets are disjoint, so the order only matters for determinism.
func compilePathRules(paths PathRulesConfig) []pathRule {
	rules := make([]pathRule, 0, len(paths.Protected)+len(paths.AuthOnly))
	for _, prefix := range paths.Protected {
		rules = append(rules, pathRule{prefix: prefix, class: classProtected})
	}
	for _, prefix := range paths.AuthOnly {
		rules = append(rules, pathRule{prefix: prefix, class: classAuthOnly})
	}
	return rules
}

func classify(rules []pathRule, requestPath string) pathClass {
	for _, rule := range rules {
		if strings.HasPrefix(requestPath, rule.prefix) {
			return rule.class
		}
	}
	return classUnrestricted
}

// RouteGuard enforces the authentication boundary on every inbound request.
//
// Authentication here is the mere presence of the access-token cookie: a
// liveness check, not a validity check. An expired-but-present token passes
// the guard and is rejected by whichever backend verifies signature and
// expiry. That keeps the guard free of decoding work on the hot path.
func (g *Gateway) RouteGuard() echo.MiddlewareFunc {
	rules := compilePathRules(g.cfg.Paths)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestPath := c.Request().URL.Path
			if g.guardSkips(requestPath) {
				return next(c)
			}

			authenticated := false
			if cookie, err := c.Request().Cookie(CookieAccessToken); err == nil && cookie.Value != "" {
				authenticated = true
			}

			switch classify(rules, requestPath) {
			case classProtected:
				if !authenticated {
					params := url.Values{}
					params.Set("redirect", requestPath)
					return c.Redirect(http.StatusFound, g.cfg.Paths.Login+"?"+params.Encode())
				}
			case classAuthOnly:
				if authenticated {
					return c.Redirect(http.StatusFound, g.cfg.Paths.DefaultLanding)
				}
			}

			return next(c)
		}
	}
}

// guardSkips excludes the gateway's own endpoints and static assets.
func (g *Gateway) guardSkips(requestPath string) bool {
	for _, prefix := range g.cfg.Paths.GuardExcluded {
		if strings.HasPrefix(requestPath, prefix) {
			return true
		}
	}
	// anything with a file extension is an asset, not a page
	return strings.Contains(path.Base(requestPath), ".")
}
