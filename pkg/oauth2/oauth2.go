package oauth2

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

type CodeChallengeMethod string

const (
	CodeChallengeMethodS256 CodeChallengeMethod = "S256"
)

// TokenResponse is the payload returned by the token endpoint.
// refresh_expires_in is a Keycloak extension and may be absent.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
}

type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ErrEntropyUnavailable is returned when the platform's secure random source
// fails. There is no fallback to a non-cryptographic source.
var ErrEntropyUnavailable = errors.New("secure random source unavailable")

// verifierEntropyBytes is the raw entropy of a code verifier. 32 bytes encode
// to 43 url-safe characters, the minimum length allowed by RFC 7636.
const verifierEntropyBytes = 32

// GenerateCodeVerifier returns a fresh PKCE code verifier: 32 bytes from
// crypto/rand, base64url-encoded without padding.
func GenerateCodeVerifier() (string, error) {
	buf := make([]byte, verifierEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// S256ChallengeFromVerifier derives the code challenge: SHA-256 over the
// verifier string's bytes, encoded like the verifier itself.
func S256ChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
