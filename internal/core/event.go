package core

import "github.com/avolkov/chanhub/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage notifies subscribers about a persisted message.
	EventReceiveMessage EventKind = iota
	// EventUserJoined notifies subscribers about a user joining a channel.
	EventUserJoined
	// EventUserLeft notifies subscribers about a user leaving a channel.
	EventUserLeft
	// EventError notifies the originating client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	ChannelID int64
	User      *store.User
	Message   *store.MessageWithSender
	Error     *CoreError
}
