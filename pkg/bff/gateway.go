// Package bff is the browser-facing authentication gateway for the Mantis
// frontend. It implements the Backend-For-Frontend pattern: the OAuth2
// authorization-code-with-PKCE exchange happens server-side and the resulting
// tokens are stored only in httpOnly cookies, so browser-side code never sees
// token material. The gateway itself is stateless; all session state lives in
// the browser's cookie jar.
package bff

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mantis-app/auth-gateway/pkg/oauth2"
	"github.com/mantis-app/auth-gateway/pkg/oidc"
	"github.com/mantis-app/auth-gateway/pkg/util"
	"github.com/segmentio/ksuid"
)

type Gateway struct {
	cfg      *Config
	provider *oidc.Provider
	// redirectURI is computed once; it must match byte-for-byte between the
	// authorization request and the token exchange.
	redirectURI   string
	publicBaseURL string
}

func New(cfg *Config) (*Gateway, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(cfg.IdentityProvider)
	if err != nil {
		return nil, fmt.Errorf("configure identity provider: %w", err)
	}

	publicBaseURL := strings.TrimRight(cfg.PublicBaseURL, "/")

	return &Gateway{
		cfg:           cfg,
		provider:      provider,
		redirectURI:   publicBaseURL + "/auth/callback",
		publicBaseURL: publicBaseURL,
	}, nil
}

func NewFromConfigFile(path string) (*Gateway, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	return New(cfg)
}

func (g *Gateway) Address() string {
	return g.cfg.Address
}

func ErrorLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			slog.Error("Error", "error", err, "path", c.Path(), "remote_addr", c.RealIP())
		}
		return err
	}
}

func (g *Gateway) MountRoutes(e *echo.Echo) {
	group := e.Group("/auth")
	group.Use(ErrorLogMiddleware)
	group.GET("/login", g.LoginEndpoint)
	group.GET("/callback", g.CallbackEndpoint)
	group.GET("/logout", g.LogoutEndpoint)
	group.GET("/session", g.SessionEndpoint)
}

// LoginEndpoint starts a login attempt: fresh PKCE pair, desired destination
// stashed in the state parameter, verifier bound to this browser via a
// short-lived cookie, then a redirect to the provider. No server-to-server
// call happens here; the provider is reached by the browser's own redirect.
func (g *Gateway) LoginEndpoint(c echo.Context) error {
	redirectPath := c.QueryParam("redirect")
	if redirectPath == "" {
		redirectPath = g.cfg.Paths.DefaultLanding
	}

	verifier, err := oauth2.GenerateCodeVerifier()
	if err != nil {
		// no fallback: without secure randomness there is no login
		slog.Error("Unable to generate code verifier", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, &oauth2.Error{
			Code:        "server_error",
			Description: "unable to generate login challenge",
		})
	}
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	state, err := EncodeLoginState(LoginState{Redirect: redirectPath})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, &oauth2.Error{
			Code:        "server_error",
			Description: "unable to encode login state",
		})
	}

	attemptID := ksuid.New().String()
	slog.Info("Starting login attempt", "attempt_id", attemptID, "redirect", redirectPath)

	c.SetCookie(g.newCookie(CookieVerifier, verifier, int(verifierTTL.Seconds())))

	return c.Redirect(http.StatusFound, g.provider.AuthCodeURL(state, challenge, g.redirectURI))
}

// CallbackEndpoint finishes the login. Whatever happens, the browser always
// gets a redirect; a raw error page would strand the user mid-flow.
func (g *Gateway) CallbackEndpoint(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Callback panicked", "panic", r)
			err = g.redirectWithError(c, "callback_exception")
		}
	}()

	if cbErr := g.callback(c); cbErr != nil {
		slog.Error("Callback failed", "error", cbErr)
		return g.redirectWithError(c, "callback_exception")
	}
	return nil
}

func (g *Gateway) callback(c echo.Context) error {
	if errCode := c.QueryParam("error"); errCode != "" {
		slog.Warn("Identity provider returned error",
			"error", errCode,
			"error_description", c.QueryParam("error_description"))
		return g.redirectWithError(c, errCode)
	}

	code := c.QueryParam("code")
	if code == "" {
		return g.redirectWithError(c, "no_code")
	}

	verifierCookie, err := c.Cookie(CookieVerifier)
	if err != nil || verifierCookie.Value == "" {
		// expired attempt or a callback this browser never started
		return g.redirectWithError(c, "no_verifier")
	}

	tokens, err := g.provider.Exchange(c.Request().Context(), code, verifierCookie.Value, g.redirectURI)

	// the verifier is single-use: consumed now, success or not
	g.clearCookie(c, CookieVerifier)

	if err != nil {
		var exchangeErr *oidc.ExchangeError
		if errors.As(err, &exchangeErr) {
			slog.Error("Token exchange failed", "status", exchangeErr.StatusCode, "body", exchangeErr.Body)
		} else {
			slog.Error("Token exchange failed", "error", err)
		}
		return g.redirectWithError(c, "token_exchange_failed")
	}

	redirectPath := g.cfg.Paths.DefaultLanding
	if state, err := DecodeLoginState(c.QueryParam("state")); err == nil && state.Redirect != "" {
		redirectPath = state.Redirect
	}

	g.setTokenCookies(c, tokens)

	slog.Info("Login complete", "redirect", redirectPath)
	slog.Debug("ID token received", "id_token", util.JWSToText(tokens.IDToken))

	return c.Redirect(http.StatusFound, redirectPath)
}

// LogoutEndpoint clears the gateway cookies and hands the browser to the
// provider's end-session endpoint; the server makes no call of its own.
func (g *Gateway) LogoutEndpoint(c echo.Context) error {
	var idTokenHint string
	if idCookie, err := c.Cookie(CookieIDToken); err == nil {
		idTokenHint = idCookie.Value
	}

	for _, name := range sessionCookieNames {
		g.clearCookie(c, name)
	}

	return c.Redirect(http.StatusFound, g.provider.EndSessionURL(idTokenHint, g.publicBaseURL))
}

// SessionEndpoint reports the authentication state for UI display. It never
// errors: "not logged in" and "malformed token" look identical to the caller.
func (g *Gateway) SessionEndpoint(c echo.Context) error {
	view, status := ResolveSession(c.Request())
	if status == SessionMalformed {
		slog.Warn("Malformed identity token in session cookie", "remote_addr", c.RealIP())
	}
	return c.JSON(http.StatusOK, view)
}

func (g *Gateway) redirectWithError(c echo.Context, code string) error {
	params := url.Values{}
	params.Set("error", code)
	return c.Redirect(http.StatusFound, g.cfg.Paths.ErrorLanding+"?"+params.Encode())
}
