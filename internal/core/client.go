package core

import (
	"sync/atomic"

	"github.com/avolkov/chanhub/internal/store"
)

// Client is one live, authenticated connection as seen by the core layer.
// The identity is resolved once at connect time and cached for the
// connection's lifetime.
type Client struct {
	ID       string
	User     store.User
	Commands chan *Command
	Events   chan *Event

	closed atomic.Bool
}

// NewClient constructs a client bound to a resolved identity.
func NewClient(id string, user store.User) *Client {
	return &Client{
		ID:       id,
		User:     user,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

// send delivers an event without blocking. It reports false when the client
// is closed or its event buffer is full (slow consumer).
func (c *Client) send(ev *Event) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
