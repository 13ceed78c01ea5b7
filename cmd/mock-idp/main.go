// mock-idp is a development stand-in for Keycloak. It speaks just enough of
// the authorization-code-with-PKCE flow to log the gateway in without any
// running identity infrastructure: every authorization request is approved
// immediately as a fixed development user, no login form involved.
//
// Not for production use. Tokens are signed with a key generated at startup.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/mantis-app/auth-gateway/pkg/oauth2"
	"github.com/mantis-app/auth-gateway/pkg/prettylog"
	"github.com/mantis-app/auth-gateway/pkg/util"
	"github.com/segmentio/ksuid"
)

// devUserClaims is the one user this provider knows.
var devUserClaims = map[string]any{
	"email":          "dev@mantis.local",
	"email_verified": true,
	"tenant_id":      "acme",
	"name":           "Dev User",
	"given_name":     "Dev",
	"family_name":    "User",
}

const devUserSubject = "mock-user-1"

type pendingLogin struct {
	ClientID      string
	CodeChallenge string
	RedirectURI   string
	State         string
	Nonce         string
	Scope         string
}

type mockIDP struct {
	issuer string
	sigKey jwk.Key

	mutex   sync.Mutex
	pending map[string]*pendingLogin
	refresh map[string]string
}

func newMockIDP(issuer string) (*mockIDP, error) {
	rawKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("unable to generate signing key: %w", err)
	}
	sigKey, err := jwk.FromRaw(rawKey)
	if err != nil {
		return nil, fmt.Errorf("unable to wrap signing key: %w", err)
	}
	sigKey.Set(jwk.KeyIDKey, ksuid.New().String())

	return &mockIDP{
		issuer:  issuer,
		sigKey:  sigKey,
		pending: map[string]*pendingLogin{},
		refresh: map[string]string{},
	}, nil
}

// AuthorizationEndpoint approves every request on the spot: it mints a code
// bound to the PKCE challenge and sends the browser straight back.
func (m *mockIDP) AuthorizationEndpoint(c echo.Context) error {
	var clientID string
	var redirectURI string
	var codeChallenge string
	var codeChallengeMethod string
	binderr := echo.QueryParamsBinder(c).
		MustString("client_id", &clientID).
		MustString("redirect_uri", &redirectURI).
		MustString("code_challenge", &codeChallenge).
		MustString("code_challenge_method", &codeChallengeMethod).
		BindError()

	if binderr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_request",
			Description: binderr.Error(),
		})
	}

	if codeChallengeMethod != string(oauth2.CodeChallengeMethodS256) {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_request",
			Description: "only S256 code challenges are supported",
		})
	}

	code := ksuid.New().String()

	m.mutex.Lock()
	m.pending[code] = &pendingLogin{
		ClientID:      clientID,
		CodeChallenge: codeChallenge,
		RedirectURI:   redirectURI,
		State:         c.QueryParam("state"),
		Nonce:         c.QueryParam("nonce"),
		Scope:         c.QueryParam("scope"),
	}
	m.mutex.Unlock()

	slog.Info("Approving login", "client_id", clientID, "code", code)

	params := url.Values{}
	params.Set("code", code)
	if state := c.QueryParam("state"); state != "" {
		params.Set("state", state)
	}

	return c.Redirect(http.StatusFound, redirectURI+"?"+params.Encode())
}

func (m *mockIDP) TokenEndpoint(c echo.Context) error {
	var grantType string
	var code string
	var codeVerifier string
	var redirectURI string
	var clientID string
	binderr := echo.FormFieldBinder(c).
		MustString("grant_type", &grantType).
		MustString("code", &code).
		MustString("code_verifier", &codeVerifier).
		MustString("redirect_uri", &redirectURI).
		String("client_id", &clientID).
		BindError()

	if binderr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_request",
			Description: binderr.Error(),
		})
	}

	if grantType != "authorization_code" {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "unsupported_grant_type",
			Description: "only authorization_code is supported",
		})
	}

	m.mutex.Lock()
	login, ok := m.pending[code]
	// codes are single-use
	delete(m.pending, code)
	m.mutex.Unlock()

	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_grant",
			Description: "unknown or already redeemed code",
		})
	}

	if login.RedirectURI != redirectURI {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_grant",
			Description: "redirect_uri mismatch",
		})
	}

	codeChallengeBytes := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(codeChallengeBytes[:])
	if codeChallenge != login.CodeChallenge {
		return echo.NewHTTPError(http.StatusBadRequest, oauth2.Error{
			Code:        "invalid_grant",
			Description: "code verifier mismatch",
		})
	}

	accessToken, err := m.issueToken(login, false)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, oauth2.Error{
			Code:        "server_error",
			Description: fmt.Errorf("unable to issue access token: %w", err).Error(),
		})
	}

	idToken, err := m.issueToken(login, true)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, oauth2.Error{
			Code:        "server_error",
			Description: fmt.Errorf("unable to issue id token: %w", err).Error(),
		})
	}

	refreshToken := util.GenerateRandomString(64)
	m.mutex.Lock()
	m.refresh[refreshToken] = devUserSubject
	m.mutex.Unlock()

	slog.Info("Tokens issued", "client_id", login.ClientID, "details", util.JWSToText(idToken))

	return c.JSON(http.StatusOK, oauth2.TokenResponse{
		AccessToken:      accessToken,
		TokenType:        "Bearer",
		ExpiresIn:        300,
		RefreshToken:     refreshToken,
		RefreshExpiresIn: 1800,
		IDToken:          idToken,
	})
}

func (m *mockIDP) issueToken(login *pendingLogin, isIDToken bool) (string, error) {
	token := jwt.New()
	token.Set(jwt.IssuerKey, m.issuer)
	token.Set(jwt.SubjectKey, devUserSubject)
	token.Set(jwt.AudienceKey, login.ClientID)
	token.Set(jwt.IssuedAtKey, time.Now().Unix())
	token.Set(jwt.ExpirationKey, time.Now().Add(5*time.Minute).Unix())
	token.Set(jwt.JwtIDKey, ksuid.New().String())

	if isIDToken {
		for key, value := range devUserClaims {
			token.Set(key, value)
		}
		if login.Nonce != "" {
			token.Set("nonce", login.Nonce)
		}
	} else {
		token.Set("scope", login.Scope)
	}

	tokenBytes, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, m.sigKey))
	if err != nil {
		return "", fmt.Errorf("unable to sign token: %w", err)
	}

	return string(tokenBytes), nil
}

// EndSessionEndpoint just bounces the browser back; there is no provider-side
// session to terminate.
func (m *mockIDP) EndSessionEndpoint(c echo.Context) error {
	redirectURI := c.QueryParam("post_logout_redirect_uri")
	if redirectURI == "" {
		return c.String(http.StatusOK, "logged out")
	}
	return c.Redirect(http.StatusFound, redirectURI)
}

func (m *mockIDP) JWKS(c echo.Context) error {
	publicKey, err := m.sigKey.PublicKey()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	keySet := jwk.NewSet()
	keySet.AddKey(publicKey)
	return c.JSON(http.StatusOK, keySet)
}

func main() {
	godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(slog.LevelDebug))
		slog.SetDefault(logger)
	}

	address := util.GetEnv("MOCK_IDP_ADDRESS", ":8081")
	issuer := util.GetEnv("MOCK_IDP_ISSUER", "http://localhost:8081/realms/mantis")

	idp, err := newMockIDP(issuer)
	if err != nil {
		log.Fatal(err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	realm := e.Group("/realms/:realm/protocol/openid-connect")
	realm.GET("/auth", idp.AuthorizationEndpoint)
	realm.POST("/token", idp.TokenEndpoint)
	realm.GET("/logout", idp.EndSessionEndpoint)
	realm.GET("/certs", idp.JWKS)

	slog.Info("Starting mock identity provider", "address", address, "issuer", issuer)
	log.Fatal(e.Start(address))
}
