// Package oidc is a minimal client for a Keycloak-style OpenID Connect
// provider: it builds the realm endpoint URLs and performs the
// authorization-code token exchange. Token issuance, the user store and JWT
// signing all live in the provider; the gateway only redirects to it and
// calls its token endpoint.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mantis-app/auth-gateway/pkg/oauth2"
)

type Config struct {
	// BaseURL is the provider's base URL, e.g. http://localhost:8081
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// Realm is the Keycloak realm (tenant) identifier.
	Realm    string `yaml:"realm" validate:"required"`
	ClientID string `yaml:"client_id" validate:"required"`
}

// exchangeTimeout bounds the one server-to-server call the gateway makes.
// A timed-out exchange is treated exactly like a non-success response.
const exchangeTimeout = 10 * time.Second

// defaultScopes is the fixed scope set requested on every login.
const defaultScopes = "openid profile email"

type Provider struct {
	cfg                Config
	authorizeEndpoint  string
	tokenEndpoint      string
	endSessionEndpoint string
	httpClient         *http.Client
}

func NewProvider(cfg Config) (*Provider, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("provider base url is empty")
	}
	realmBase := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", base, url.PathEscape(cfg.Realm))

	return &Provider{
		cfg:                cfg,
		authorizeEndpoint:  realmBase + "/auth",
		tokenEndpoint:      realmBase + "/token",
		endSessionEndpoint: realmBase + "/logout",
		httpClient:         &http.Client{Timeout: exchangeTimeout},
	}, nil
}

func (p *Provider) ClientID() string {
	return p.cfg.ClientID
}

// AuthCodeURL builds the authorization endpoint URL the browser is sent to.
// redirectURI must match byte-for-byte the one later passed to Exchange.
func (p *Provider) AuthCodeURL(state, codeChallenge, redirectURI string) string {
	query := url.Values{}
	query.Set("client_id", p.cfg.ClientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", defaultScopes)
	query.Set("state", state)
	query.Set("code_challenge", codeChallenge)
	query.Set("code_challenge_method", string(oauth2.CodeChallengeMethodS256))

	return p.authorizeEndpoint + "?" + query.Encode()
}

// EndSessionURL builds the provider's logout URL. idTokenHint may be empty.
func (p *Provider) EndSessionURL(idTokenHint, postLogoutRedirectURI string) string {
	query := url.Values{}
	query.Set("client_id", p.cfg.ClientID)
	query.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	if idTokenHint != "" {
		query.Set("id_token_hint", idTokenHint)
	}

	return p.endSessionEndpoint + "?" + query.Encode()
}

// ExchangeError is a non-success response from the token endpoint. Body is
// kept for server-side diagnostics only and must never reach the browser.
type ExchangeError struct {
	StatusCode int
	Body       string
	Cause      *oauth2.Error
}

func (e *ExchangeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Cause.Error())
	}
	return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
}

// Exchange redeems an authorization code at the token endpoint. The code and
// the verifier are both single-use; callers must not retry a failed exchange.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*oauth2.TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("client_id", p.cfg.ClientID)
	params.Set("code", code)
	params.Set("redirect_uri", redirectURI)
	params.Set("code_verifier", codeVerifier)

	slog.Debug("Exchanging code for token", "url", p.tokenEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange code for token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		exchangeErr := &ExchangeError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		var oidcErr oauth2.Error
		if err := json.Unmarshal(body, &oidcErr); err == nil && oidcErr.Code != "" {
			exchangeErr.Cause = &oidcErr
		}
		return nil, exchangeErr
	}

	var tokenResponse oauth2.TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("unable to decode token response: %w", err)
	}

	return &tokenResponse, nil
}
