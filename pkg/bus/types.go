package bus

// Topics shared by the connection engine, macros and the terminal UI.
const (
	// TopicMessage carries inbound twitch.Message values.
	TopicMessage = "message"
	// TopicSend carries outgoing twitch.Message values to be written as PRIVMSG.
	TopicSend = "send"
	// TopicJoin carries *twitch.Channel handles to join at runtime.
	TopicJoin = "join"
	// TopicState carries connection lifecycle changes.
	TopicState = "state"
)
