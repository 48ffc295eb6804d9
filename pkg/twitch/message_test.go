package twitch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	action, ok := ParseAction("privmsg")
	require.True(t, ok)
	require.Equal(t, ActionPrivmsg, action)
	require.Equal(t, "PRIVMSG", action.String())

	action, ok = ParseAction("WHISPER")
	require.False(t, ok)
	require.Equal(t, ActionUnknown, action)
	require.Equal(t, "UNKNOWN", action.String())
}

func TestFromLocalHasNoHost(t *testing.T) {
	reg := NewRegistry()
	msg := FromLocal(reg.Intern("bob"), "alice", "hi")

	require.True(t, msg.IsLocal())
	require.Equal(t, ActionPrivmsg, msg.Action)
	require.Equal(t, "hi", msg.String())

	raw := FromRaw("alice", "alice@alice.tmi.twitch.tv", ActionPrivmsg, reg.Intern("bob"), "hi")
	require.False(t, raw.IsLocal())
	require.Same(t, msg.Channel, raw.Channel)
}

func TestNewAuthNormalizes(t *testing.T) {
	auth := NewAuth(" Alice ", "abc123", " id ", "secret")

	if auth.Username != "alice" {
		t.Fatalf("username = %q, want %q", auth.Username, "alice")
	}
	if auth.OAuthToken != "oauth:abc123" {
		t.Fatalf("token = %q, want %q", auth.OAuthToken, "oauth:abc123")
	}
	if !auth.HasHelix() {
		t.Fatal("expected helix credentials")
	}
	if err := auth.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got := auth.String(); got != "Auth{alice}" {
		t.Fatalf("String = %q", got)
	}
}

func TestAuthValidate(t *testing.T) {
	if err := NewAuth("", "tok", "", "").Validate(); !errors.Is(err, ErrMissingUsername) {
		t.Fatalf("error = %v, want %v", err, ErrMissingUsername)
	}
	if err := NewAuth("bot", "oauth:", "", "").Validate(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("error = %v, want %v", err, ErrMissingToken)
	}
	if NewAuth("bot", "tok", "id", "").HasHelix() {
		t.Fatal("expected helix to require a secret")
	}
}
