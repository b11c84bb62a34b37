package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// Presence is the coarse online/offline flag on a user.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// User represents an identity in the directory.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	AvatarColor  string
	Presence     Presence
	CreatedAt    time.Time
}

// Channel represents a named message topic.
type Channel struct {
	ID        int64
	Name      string
	IsPrivate bool
	CreatedBy *int64
	CreatedAt time.Time
}

// Message represents a persisted chat message. Channel and sender ids are
// explicit fields, set by the caller at the instant of persistence.
type Message struct {
	ID        int64
	ChannelID int64
	SenderID  int64
	Content   string
	CreatedAt time.Time
}

// MessageWithSender is a message row joined with a snapshot of the sender's
// profile. The snapshot is denormalized for delivery and is never
// authoritative for identity data.
type MessageWithSender struct {
	Message
	Sender User
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, username, passwordHash, displayName, avatarColor string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetPresence updates the user's presence flag.
	SetPresence(ctx context.Context, userID int64, presence Presence) error
}

// ChannelStore handles channel and membership persistence.
type ChannelStore interface {
	// CreateChannel creates a new channel.
	CreateChannel(ctx context.Context, name string, isPrivate bool, createdBy int64) (*Channel, error)

	// GetChannelByID retrieves a channel by ID.
	GetChannelByID(ctx context.Context, id int64) (*Channel, error)

	// GetChannelByName retrieves a channel by name.
	GetChannelByName(ctx context.Context, name string) (*Channel, error)

	// ListChannels lists all channels, newest first.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// AddMember records a user as a member of a channel. Idempotent.
	AddMember(ctx context.Context, userID, channelID int64) error

	// ListMembers lists the member profiles of a channel.
	ListMembers(ctx context.Context, channelID int64) ([]*User, error)
}

// MessageStore handles message persistence. The store is the sole source of
// canonical message ids and creation timestamps.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a channel in chronological order,
	// each carrying the sender profile. If beforeID is provided, only
	// messages older than that ID are returned.
	ListMessages(ctx context.Context, channelID int64, limit int, beforeID *int64) ([]*MessageWithSender, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
