package bff

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mantis-app/auth-gateway/pkg/oauth2"
)

// Cookie names owned by the gateway. The browser is an opaque carrier; only
// the gateway reads the values back.
const (
	CookieVerifier     = "pkce_verifier"
	CookieAccessToken  = "auth_access_token"
	CookieRefreshToken = "auth_refresh_token"
	CookieIDToken      = "auth_id_token"
)

// verifierTTL bounds how long a started login attempt stays redeemable.
const verifierTTL = 300 * time.Second

// fallbackRefreshTTL applies when the provider omits refresh_expires_in.
const fallbackRefreshTTL = 7 * 24 * time.Hour

var sessionCookieNames = []string{
	CookieVerifier,
	CookieAccessToken,
	CookieRefreshToken,
	CookieIDToken,
}

func (g *Gateway) newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.cfg.ProductionGradeCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (g *Gateway) clearCookie(c echo.Context, name string) {
	c.SetCookie(g.newCookie(name, "", -1))
}

// setTokenCookies writes the three session cookies. TTLs are computed once,
// here, from the provider's lifetimes; nothing recomputes them per request.
func (g *Gateway) setTokenCookies(c echo.Context, tokens *oauth2.TokenResponse) {
	refreshTTL := tokens.RefreshExpiresIn
	if refreshTTL == 0 {
		refreshTTL = int(fallbackRefreshTTL.Seconds())
	}

	c.SetCookie(g.newCookie(CookieAccessToken, tokens.AccessToken, tokens.ExpiresIn))
	c.SetCookie(g.newCookie(CookieRefreshToken, tokens.RefreshToken, refreshTTL))
	c.SetCookie(g.newCookie(CookieIDToken, tokens.IDToken, tokens.ExpiresIn))
}
