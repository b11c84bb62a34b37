package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage persists a chat message and fans it out to the
	// channel's subscribers.
	CommandSendMessage CommandKind = iota
	// CommandJoinChannel subscribes the client to a channel.
	CommandJoinChannel
	// CommandLeaveChannel unsubscribes the client from a channel.
	CommandLeaveChannel
)

// Command represents an action requested by a client. Every inbound event
// type maps onto exactly one command, dispatched through the client's
// single intake channel.
type Command struct {
	Kind      CommandKind
	ChannelID int64
	Content   string
}
