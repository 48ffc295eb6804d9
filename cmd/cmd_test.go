package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"chatat/pkg/config"
	"chatat/pkg/twitch"
)

func TestChannelsFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "plain", args: []string{"bob"}, want: []string{"bob"}},
		{name: "sigil and case", args: []string{"#Bob", " Carol "}, want: []string{"bob", "carol"}},
		{name: "comma separated", args: []string{"bob,#dave", ""}, want: []string{"bob", "dave"}},
		{name: "empty", args: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := channelsFromArgs(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("channelsFromArgs(%q) = %#v, want %#v", tt.args, got, tt.want)
			}
		})
	}
}

func TestTUILoggingMovesOutputToFile(t *testing.T) {
	t.Parallel()

	got := tuiLogging(config.LoggingConfig{Level: "debug"})
	if got.File == "" {
		t.Fatal("expected a log file for the terminal UI")
	}
	if got.Format != "json" || got.Level != "debug" {
		t.Fatalf("logging = %+v", got)
	}

	kept := tuiLogging(config.LoggingConfig{File: "/var/log/chatat.log", Format: "text"})
	if kept.File != "/var/log/chatat.log" || kept.Format != "text" {
		t.Fatalf("explicit settings overwritten: %+v", kept)
	}
}

func TestFirstChannelAndNames(t *testing.T) {
	t.Parallel()

	if firstChannel(nil) != nil {
		t.Fatal("expected nil without channels")
	}

	channels := twitch.NewRegistry().InternAll([]string{"bob", "carol"})
	if got := firstChannel(channels); got.Name() != "bob" {
		t.Fatalf("firstChannel = %q, want bob", got.Name())
	}
	if got := channelNames(channels); got != "bob,carol" {
		t.Fatalf("channelNames = %q, want bob,carol", got)
	}
}

func TestBootstrapLoadsConfigAndCredentials(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "twitch_auth.json")
	if err := os.WriteFile(creds, []byte(`{"chat":{"username":"ChatBot","oauthtok":"abc"},"helix":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "chatat.json")
	if err := os.WriteFile(path, []byte(`{"channels":["bob"],"logging":{"format":"json","file":"`+filepath.Join(dir, "out.log")+`"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"TWITCH_USERNAME", "TWITCH_OAUTH_TOKEN", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET", "TWITCH_CHANNELS"} {
		t.Setenv(key, "")
	}
	configPath = path
	t.Cleanup(func() { configPath = "" })

	a, err := bootstrap("cmd.test", []string{"#Carol"}, nil)
	if err != nil {
		t.Fatalf("bootstrap error: %v", err)
	}
	defer a.closeLog()

	if a.auth.Username != "chatbot" || a.auth.OAuthToken != "oauth:abc" {
		t.Fatalf("auth = %v", a.auth)
	}
	if !reflect.DeepEqual(a.cfg.Channels, []string{"carol"}) {
		t.Fatalf("channels = %v, want [carol]", a.cfg.Channels)
	}
}

func TestBootstrapMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatat.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"TWITCH_USERNAME", "TWITCH_OAUTH_TOKEN"} {
		t.Setenv(key, "")
	}
	configPath = path
	t.Cleanup(func() { configPath = "" })

	if _, err := bootstrap("cmd.test", nil, nil); !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}
