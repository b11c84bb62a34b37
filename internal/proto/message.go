package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin  = "join_channel"
	InboundTypeLeave = "leave_channel"
	InboundTypeSend  = "send_message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameReceiveMessage = "receive_message"
	EventNameUserJoined     = "user_joined"
	EventNameUserLeft       = "user_left"
)

// JoinData requests to join or leave a specific channel.
type JoinData struct {
	ChannelID int64 `json:"channel_id"`
}

// SendData is a chat message from the client. The sender is always taken
// from the authenticated connection, never from the payload.
type SendData struct {
	ChannelID int64  `json:"channel_id"`
	Content   string `json:"content"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SenderProfile is the denormalized profile attached to delivered messages.
type SenderProfile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
	Presence    string `json:"presence"`
}

// EventReceiveMessage delivers a persisted message to a subscriber.
type EventReceiveMessage struct {
	ID        int64         `json:"id"`
	ChannelID int64         `json:"channel_id"`
	SenderID  int64         `json:"sender_id"`
	Content   string        `json:"content"`
	CreatedAt int64         `json:"created_at"`
	Sender    SenderProfile `json:"sender"`
}

// EventUserJoined notifies that a user joined a channel.
type EventUserJoined struct {
	ChannelID int64         `json:"channel_id"`
	User      SenderProfile `json:"user"`
}

// EventUserLeft notifies that a user left a channel.
type EventUserLeft struct {
	ChannelID int64         `json:"channel_id"`
	User      SenderProfile `json:"user"`
}

// Error describes a protocol-level error response, delivered only to the
// originating connection.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
