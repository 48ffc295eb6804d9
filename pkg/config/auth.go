package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"chatat/pkg/twitch"
)

const (
	envUsername     = "TWITCH_USERNAME"
	envOAuthToken   = "TWITCH_OAUTH_TOKEN"
	envClientID     = "TWITCH_CLIENT_ID"
	envClientSecret = "TWITCH_CLIENT_SECRET"
)

// ErrMissingCredentials is returned when no username or chat token could be
// found in the credentials file or the environment.
var ErrMissingCredentials = errors.New("missing twitch credentials")

// credentialsFile mirrors twitch_auth.json.
type credentialsFile struct {
	Chat struct {
		Username string `json:"username"`
		OAuthTok string `json:"oauthtok"`
	} `json:"chat"`
	Helix struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"helix"`
}

// LoadAuth reads the credentials file and applies TWITCH_* overrides. The file
// may be absent when the environment supplies everything.
func LoadAuth(cfg *Config) (twitch.Auth, error) {
	if cfg == nil {
		return twitch.Auth{}, errors.New("config is required")
	}

	var creds credentialsFile
	if path := cfg.CredentialsPath(); path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(content, &creds); err != nil {
				return twitch.Auth{}, fmt.Errorf("parse credentials file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return twitch.Auth{}, fmt.Errorf("read credentials file: %w", err)
		}
	}

	auth := twitch.NewAuth(
		envOr(envUsername, creds.Chat.Username),
		envOr(envOAuthToken, creds.Chat.OAuthTok),
		envOr(envClientID, creds.Helix.ClientID),
		envOr(envClientSecret, creds.Helix.ClientSecret),
	)
	if err := auth.Validate(); err != nil {
		return twitch.Auth{}, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}

	return auth, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return fallback
}
