package twitch

import (
	"errors"
	"strings"
)

const oauthPrefix = "oauth:"

var (
	// ErrMissingUsername is returned when credentials carry no chat username.
	ErrMissingUsername = errors.New("twitch username is required")
	// ErrMissingToken is returned when credentials carry no chat oauth token.
	ErrMissingToken = errors.New("twitch oauth token is required")
)

// Auth is the credential bundle used for chat login and, optionally, Helix calls.
type Auth struct {
	Username     string
	OAuthToken   string
	ClientID     string
	ClientSecret string
}

// NewAuth trims every field, lowercases the username and makes sure the token
// carries the "oauth:" prefix expected by PASS.
func NewAuth(username, token, clientID, clientSecret string) Auth {
	token = strings.TrimSpace(token)
	if token != "" && !strings.HasPrefix(token, oauthPrefix) {
		token = oauthPrefix + token
	}

	return Auth{
		Username:     strings.ToLower(strings.TrimSpace(username)),
		OAuthToken:   token,
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(clientSecret),
	}
}

// Validate reports whether the chat half of the bundle is usable.
func (a Auth) Validate() error {
	if a.Username == "" {
		return ErrMissingUsername
	}
	if strings.TrimPrefix(a.OAuthToken, oauthPrefix) == "" {
		return ErrMissingToken
	}

	return nil
}

// HasHelix reports whether app credentials for the Helix API are present.
func (a Auth) HasHelix() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

// String hides the secrets so an Auth can be logged.
func (a Auth) String() string {
	return "Auth{" + a.Username + "}"
}
