package twitch

import "strings"

// Action is a recognized protocol verb used to route inbound messages.
type Action int

const (
	ActionUnknown Action = iota
	ActionPrivmsg
)

// actionNames is the single place new verbs are added. Each entry needs a
// matching dispatch registration to have any effect.
var actionNames = map[string]Action{
	"PRIVMSG": ActionPrivmsg,
}

// ParseAction looks up a wire verb. Unknown verbs return ActionUnknown and false.
func ParseAction(verb string) (Action, bool) {
	action, ok := actionNames[strings.ToUpper(strings.TrimSpace(verb))]
	if !ok {
		return ActionUnknown, false
	}

	return action, true
}

func (a Action) String() string {
	for name, action := range actionNames {
		if action == a {
			return name
		}
	}

	return "UNKNOWN"
}

// Message is one chat line. It is passed by value and never mutated.
type Message struct {
	Author  string
	Body    string
	Host    string
	Action  Action
	Channel *Channel
}

// FromRaw builds a message decoded from the wire.
func FromRaw(author, host string, action Action, channel *Channel, body string) Message {
	return Message{
		Author:  author,
		Body:    body,
		Host:    host,
		Action:  action,
		Channel: channel,
	}
}

// FromLocal builds an outgoing chat message typed by the user or a macro.
func FromLocal(channel *Channel, author, body string) Message {
	return Message{
		Author:  author,
		Body:    body,
		Action:  ActionPrivmsg,
		Channel: channel,
	}
}

// IsLocal reports whether the message was constructed locally rather than received.
func (m Message) IsLocal() bool {
	return m.Host == ""
}

func (m Message) String() string {
	return m.Body
}
