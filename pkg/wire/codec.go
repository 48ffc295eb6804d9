// Package wire converts between chat protocol lines and twitch messages.
package wire

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"chatat/pkg/twitch"
)

const lineEnding = "\r\n"

// linePattern is the single inbound grammar:
//
//	:<author>!<host> <ACTION> #<channel> :<body>
//
// The channel capture keeps its sigil; Intern strips exactly one.
var linePattern = regexp.MustCompile(`^:([^!\s]+)!(\S+) (\S+) (#\S+) :(.*)$`)

// MaxLineSize bounds one inbound line, tags and line ending included.
const MaxLineSize = 8192

// DecodeError reports an inbound line that cannot be decoded: invalid UTF-8
// or longer than MaxLineSize. Text holds a lossy rendering of the line for
// logging.
type DecodeError struct {
	Text    string
	TooLong bool
}

// LineTooLong reports a line that overflowed MaxLineSize. prefix is what was
// read before the limit was hit.
func LineTooLong(prefix []byte) *DecodeError {
	return &DecodeError{Text: strings.ToValidUTF8(string(prefix), string(utf8.RuneError)), TooLong: true}
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.TooLong {
		return "line exceeds " + strconv.Itoa(MaxLineSize) + " bytes: " + previewLine(e.Text)
	}

	return "invalid utf-8 in line: " + previewLine(e.Text)
}

// Codec parses inbound lines, interning channels through its registry.
type Codec struct {
	channels *twitch.Registry
}

// NewCodec returns a codec bound to registry.
func NewCodec(registry *twitch.Registry) *Codec {
	if registry == nil {
		registry = twitch.NewRegistry()
	}

	return &Codec{channels: registry}
}

// Channels returns the registry the codec interns into.
func (c *Codec) Channels() *twitch.Registry {
	return c.channels
}

// ParseLine decodes one raw line. Lines that do not match the grammar, or
// whose verb is not a known action, return ok=false with a nil error. Only
// undecodable bytes produce an error.
func (c *Codec) ParseLine(raw []byte) (msg twitch.Message, ok bool, err error) {
	if !utf8.Valid(raw) {
		return twitch.Message{}, false, &DecodeError{Text: strings.ToValidUTF8(string(raw), string(utf8.RuneError))}
	}

	match := linePattern.FindStringSubmatch(strings.TrimRight(string(raw), lineEnding))
	if match == nil {
		return twitch.Message{}, false, nil
	}

	action, known := twitch.ParseAction(match[3])
	if !known {
		return twitch.Message{}, false, nil
	}

	channel := c.channels.Intern(match[4])
	if channel == nil {
		return twitch.Message{}, false, nil
	}

	body := strings.TrimRightFunc(match[5], unicode.IsSpace)
	return twitch.FromRaw(match[1], match[2], action, channel, body), true, nil
}

// ParsePing recognizes a server keepalive and returns its argument.
func ParsePing(raw []byte) (string, bool) {
	line := strings.TrimRight(string(raw), lineEnding)
	arg, found := strings.CutPrefix(line, "PING ")
	if !found {
		return "", false
	}

	return arg, true
}

// EncodeCommand formats "<VERB> <argument>\r\n". The argument is not
// validated; callers must not embed line endings.
func EncodeCommand(verb, argument string) []byte {
	return []byte(strings.ToUpper(verb) + " " + argument + lineEnding)
}

// EncodePrivmsg formats an outgoing chat message for its channel.
func EncodePrivmsg(msg twitch.Message) []byte {
	return EncodeCommand("privmsg", msg.Channel.String()+" :"+sanitizeBody(msg.Body))
}

// EncodePong answers a PING with the same argument.
func EncodePong(arg string) []byte {
	return EncodeCommand("pong", arg)
}

// sanitizeBody keeps user text on a single line.
func sanitizeBody(body string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(body)
}

func previewLine(text string) string {
	const limit = 120
	text = strings.TrimRight(text, lineEnding)
	if len(text) <= limit {
		return text
	}

	return text[:limit] + "..."
}
