package wire

import (
	"errors"
	"testing"

	"chatat/pkg/twitch"

	"github.com/stretchr/testify/require"
)

func TestParseLineScenario(t *testing.T) {
	reg := twitch.NewRegistry()
	codec := NewCodec(reg)

	msg, ok, err := codec.ParseLine([]byte(":alice!alice@x.tmi.twitch.tv PRIVMSG #bob :hello gnu\r\n"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, "alice", msg.Author)
	require.Equal(t, "alice@x.tmi.twitch.tv", msg.Host)
	require.Equal(t, "hello gnu", msg.Body)
	require.Equal(t, twitch.ActionPrivmsg, msg.Action)
	require.Same(t, reg.Intern("bob"), msg.Channel)
	require.False(t, msg.IsLocal())
}

func TestParseLineStripsOnlyOneSigil(t *testing.T) {
	reg := twitch.NewRegistry()
	codec := NewCodec(reg)

	single, ok, err := codec.ParseLine([]byte(":a!a@a PRIVMSG #foo :x\r\n"))
	require.NoError(t, err)
	require.True(t, ok)
	double, ok, err := codec.ParseLine([]byte(":a!a@a PRIVMSG ##foo :x\r\n"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, "foo", single.Channel.Name())
	require.Equal(t, "#foo", double.Channel.Name())
	require.NotSame(t, single.Channel, double.Channel)
}

func TestParseLineRecoversEmbeddedFields(t *testing.T) {
	codec := NewCodec(nil)

	tests := []struct {
		name    string
		line    string
		author  string
		host    string
		channel string
		body    string
	}{
		{"no crlf", ":a!a@a.tmi.twitch.tv PRIVMSG #c :body", "a", "a@a.tmi.twitch.tv", "c", "body"},
		{"colon in body", ":nick!u@h PRIVMSG #room :see: this :)\r\n", "nick", "u@h", "room", "see: this :)"},
		{"trailing spaces", ":x!x@x.tmi.twitch.tv PRIVMSG #y :padded   \r\n", "x", "x@x.tmi.twitch.tv", "y", "padded"},
		{"empty body", ":x!x@x.tmi.twitch.tv PRIVMSG #y :\r\n", "x", "x@x.tmi.twitch.tv", "y", ""},
		{"unicode", ":x!x@x PRIVMSG #y :héllo ✓\r\n", "x", "x@x", "y", "héllo ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok, err := codec.ParseLine([]byte(tt.line))
			if err != nil || !ok {
				t.Fatalf("ParseLine(%q) = ok %v, err %v", tt.line, ok, err)
			}
			if msg.Author != tt.author || msg.Host != tt.host || msg.Body != tt.body {
				t.Fatalf("got %+v", msg)
			}
			if msg.Channel.Name() != tt.channel {
				t.Fatalf("channel = %q, want %q", msg.Channel.Name(), tt.channel)
			}
		})
	}
}

func TestParseLineDegradesGracefully(t *testing.T) {
	codec := NewCodec(nil)

	for _, line := range []string{
		"not an irc line\r\n",
		"",
		"\r\n",
		":tmi.twitch.tv 001 bot :Welcome, GLHF!\r\n",
		"PING :tmi.twitch.tv\r\n",
		":alice!alice@x.tmi.twitch.tv JOIN #bob\r\n",
		":alice!alice@x.tmi.twitch.tv PRIVMSG bob :missing sigil\r\n",
	} {
		msg, ok, err := codec.ParseLine([]byte(line))
		if err != nil || ok {
			t.Fatalf("ParseLine(%q) = %+v, ok %v, err %v", line, msg, ok, err)
		}
	}
}

func TestParseLineUnknownActionIsNotAnError(t *testing.T) {
	codec := NewCodec(nil)

	_, ok, err := codec.ParseLine([]byte(":alice!alice@x.tmi.twitch.tv WHISPER #bob :psst\r\n"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseLineInvalidUTF8(t *testing.T) {
	codec := NewCodec(nil)

	_, ok, err := codec.ParseLine([]byte{':', 'a', 0xff, 0xfe, '\r', '\n'})
	require.False(t, ok)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Contains(t, decodeErr.Text, ":a")
	require.Contains(t, decodeErr.Error(), "invalid utf-8")
}

func TestLineTooLong(t *testing.T) {
	err := LineTooLong([]byte("PRIVMSG #bob :aaaa"))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.True(t, decodeErr.TooLong)
	require.Contains(t, err.Error(), "exceeds 8192 bytes")
	require.Contains(t, err.Error(), "PRIVMSG #bob")
}

func TestEncodeCommand(t *testing.T) {
	if got := string(EncodeCommand("pass", "oauth:abc")); got != "PASS oauth:abc\r\n" {
		t.Fatalf("EncodeCommand = %q", got)
	}
	if got := string(EncodeCommand("Join", "#bob")); got != "JOIN #bob\r\n" {
		t.Fatalf("EncodeCommand = %q", got)
	}
}

func TestEncodePrivmsg(t *testing.T) {
	reg := twitch.NewRegistry()
	msg := twitch.FromLocal(reg.Intern("bob"), "alice", "hi\nthere")

	if got := string(EncodePrivmsg(msg)); got != "PRIVMSG #bob :hi there\r\n" {
		t.Fatalf("EncodePrivmsg = %q", got)
	}
}

func TestParsePing(t *testing.T) {
	arg, ok := ParsePing([]byte("PING :tmi.twitch.tv\r\n"))
	if !ok || arg != ":tmi.twitch.tv" {
		t.Fatalf("ParsePing = %q, %v", arg, ok)
	}
	if got := string(EncodePong(arg)); got != "PONG :tmi.twitch.tv\r\n" {
		t.Fatalf("EncodePong = %q", got)
	}
	if _, ok := ParsePing([]byte(":a!a@a PRIVMSG #b :PING x")); ok {
		t.Fatal("expected chat line not to be a ping")
	}
}
