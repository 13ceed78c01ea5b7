package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:  baseURL,
		Realm:    "mantis",
		ClientID: "mantis-frontend",
	}
}

func TestAuthCodeURL(t *testing.T) {
	p, err := NewProvider(testConfig("http://idp.example"))
	if err != nil {
		t.Fatal(err)
	}

	authURL := p.AuthCodeURL("my-state", "my-challenge", "http://gw.example/auth/callback")

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Path != "/realms/mantis/protocol/openid-connect/auth" {
		t.Fatalf("unexpected authorize path: %s", parsed.Path)
	}

	query := parsed.Query()
	expect := map[string]string{
		"client_id":             "mantis-frontend",
		"redirect_uri":          "http://gw.example/auth/callback",
		"response_type":         "code",
		"scope":                 "openid profile email",
		"state":                 "my-state",
		"code_challenge":        "my-challenge",
		"code_challenge_method": "S256",
	}
	for key, want := range expect {
		if got := query.Get(key); got != want {
			t.Errorf("query param %s: expected %q, got %q", key, want, got)
		}
	}
}

func TestEndSessionURL(t *testing.T) {
	p, err := NewProvider(testConfig("http://idp.example/"))
	if err != nil {
		t.Fatal(err)
	}

	logoutURL := p.EndSessionURL("the-id-token", "http://gw.example")

	parsed, err := url.Parse(logoutURL)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Path != "/realms/mantis/protocol/openid-connect/logout" {
		t.Fatalf("unexpected end-session path: %s", parsed.Path)
	}
	if got := parsed.Query().Get("id_token_hint"); got != "the-id-token" {
		t.Fatalf("expected id_token_hint, got %q", got)
	}
	if got := parsed.Query().Get("post_logout_redirect_uri"); got != "http://gw.example" {
		t.Fatalf("expected post_logout_redirect_uri, got %q", got)
	}
}

func TestExchange(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/mantis/protocol/openid-connect/token" {
			t.Errorf("unexpected token path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":300,"refresh_token":"rt","refresh_expires_in":1800,"id_token":"it"}`))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	tokens, err := p.Exchange(context.Background(), "the-code", "the-verifier", "http://gw.example/auth/callback")
	if err != nil {
		t.Fatal(err)
	}

	if tokens.AccessToken != "at" || tokens.ExpiresIn != 300 || tokens.RefreshExpiresIn != 1800 {
		t.Fatalf("unexpected token response: %+v", tokens)
	}

	if gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("expected grant_type authorization_code, got %q", gotForm.Get("grant_type"))
	}
	if gotForm.Get("code") != "the-code" {
		t.Errorf("expected code, got %q", gotForm.Get("code"))
	}
	if gotForm.Get("code_verifier") != "the-verifier" {
		t.Errorf("expected code_verifier, got %q", gotForm.Get("code_verifier"))
	}
	if gotForm.Get("redirect_uri") != "http://gw.example/auth/callback" {
		t.Errorf("expected redirect_uri, got %q", gotForm.Get("redirect_uri"))
	}
}

func TestExchangeNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Code not valid"}`))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Exchange(context.Background(), "bad-code", "verifier", "http://gw.example/auth/callback")
	if err == nil {
		t.Fatal("expected error for non-success status")
	}

	exchangeErr, ok := err.(*ExchangeError)
	if !ok {
		t.Fatalf("expected *ExchangeError, got %T", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", exchangeErr.StatusCode)
	}
	if exchangeErr.Cause == nil || exchangeErr.Cause.Code != "invalid_grant" {
		t.Fatalf("expected decoded invalid_grant error, got %+v", exchangeErr.Cause)
	}
	if !strings.Contains(exchangeErr.Body, "Code not valid") {
		t.Fatalf("expected raw body to be retained, got %q", exchangeErr.Body)
	}
}
