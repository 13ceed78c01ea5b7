package bff

import (
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// SessionStatus is the internal resolution result. The external contract
// exposes only a boolean; the richer variant exists so malformed tokens can
// be logged separately from plain "not logged in".
type SessionStatus int

const (
	SessionAbsent SessionStatus = iota
	SessionMalformed
	SessionAuthenticated
)

// User is the projection of recognized ID-token claims. Unrecognized claims
// are dropped, not forwarded.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	TenantID      string `json:"tenant_id,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
}

type SessionView struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user,omitempty"`
}

// ResolveSession derives the session view from the request cookies, fresh on
// every call.
//
// The ID token's signature is intentionally NOT verified here: the cookie was
// written by this gateway and travels httpOnly, so trust comes from the
// transport, not from re-checking the signature. Backends consuming the
// access token perform their own verification. Adding verification here
// would change the security model and is a product decision, not a bug fix.
func ResolveSession(r *http.Request) (SessionView, SessionStatus) {
	accessCookie, err := r.Cookie(CookieAccessToken)
	if err != nil || accessCookie.Value == "" {
		return SessionView{}, SessionAbsent
	}
	idCookie, err := r.Cookie(CookieIDToken)
	if err != nil || idCookie.Value == "" {
		return SessionView{}, SessionAbsent
	}

	// parse without signature verification or claim validation; any
	// structural defect fails closed to "not authenticated"
	token, err := jwt.ParseInsecure([]byte(idCookie.Value))
	if err != nil {
		return SessionView{}, SessionMalformed
	}

	user := &User{ID: token.Subject()}
	claims := token.PrivateClaims()
	if v, ok := claims["email"].(string); ok {
		user.Email = v
	}
	if v, ok := claims["email_verified"].(bool); ok {
		user.EmailVerified = v
	}
	if v, ok := claims["tenant_id"].(string); ok {
		user.TenantID = v
	}
	if v, ok := claims["name"].(string); ok {
		user.Name = v
	}
	if v, ok := claims["given_name"].(string); ok {
		user.GivenName = v
	}
	if v, ok := claims["family_name"].(string); ok {
		user.FamilyName = v
	}

	return SessionView{IsAuthenticated: true, User: user}, SessionAuthenticated
}
