package bff

import (
	"encoding/json"
	"net/url"
)

// LoginState rides through the provider's opaque state parameter and carries
// the post-login destination. The encoding is URL-escaped JSON so the value
// survives the external redirect regardless of reserved characters in the
// path. It is deliberately not tamper-evident: a corrupted state costs the
// user their intended destination, nothing more.
type LoginState struct {
	Redirect string `json:"redirect"`
}

func EncodeLoginState(state LoginState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(data)), nil
}

// DecodeLoginState is best-effort: callers fall back to the default landing
// path on any error.
func DecodeLoginState(raw string) (LoginState, error) {
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		// the provider may have returned the state already unescaped
		unescaped = raw
	}

	var state LoginState
	if err := json.Unmarshal([]byte(unescaped), &state); err != nil {
		return LoginState{}, err
	}
	return state, nil
}
