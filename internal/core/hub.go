package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/chanhub/internal/store"
)

// Store is the slice of persistence the hub needs: channel existence checks,
// message writes, and sender profile reads.
type Store interface {
	GetChannelByID(ctx context.Context, id int64) (*store.Channel, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Hub is the process-scoped registry of live connections and channel rooms.
// It starts empty, gains entries on registration/join, and loses them on
// disconnect/leave. Each channel room has its own synchronization scope so
// unrelated channels stay independent.
type Hub struct {
	store          Store
	log            zerolog.Logger
	persistTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	clients map[*Client]struct{}
	rooms   map[int64]*Room
	joined  map[*Client]map[int64]*Room
}

// NewHub creates a hub with no clients or rooms.
func NewHub(st Store, logger zerolog.Logger, persistTimeout time.Duration) *Hub {
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &Hub{
		store:          st,
		log:            logger,
		persistTimeout: persistTimeout,
		ctx:            context.Background(),
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[int64]*Room),
		joined:         make(map[*Client]map[int64]*Room),
	}
}

// Run binds the hub to ctx and blocks until it is cancelled. Room workers
// started after Run share the same lifetime. Call before serving traffic.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	<-ctx.Done()
}

// RegisterClient adds an authenticated connection to the registry and starts
// its command intake loop.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joined[c] = make(map[int64]*Room)
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.User.ID).Msg("client registered")

	go h.serveClient(c)
}

// UnregisterClient tears a connection down: it is synchronously removed from
// every channel's subscriber set before this returns, so no later broadcast
// can target it. Safe to call once after the transport loops have stopped.
func (h *Hub) UnregisterClient(c *Client) {
	c.closed.Store(true)

	h.mu.Lock()
	rooms := h.joined[c]
	delete(h.joined, c)
	delete(h.clients, c)
	ctx := h.ctx
	h.mu.Unlock()

	for _, room := range rooms {
		if room.remove(c) {
			room.enqueue(ctx, roomTask{notify: subscriberEvent(EventUserLeft, room.channelID, c.User)})
		}
	}

	close(c.Commands)

	h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.User.ID).Msg("client unregistered")
}

// serveClient is the single per-connection intake point: every inbound event
// arrives here as a command, so the per-channel serialization discipline is
// enforced uniformly.
func (h *Hub) serveClient(c *Client) {
	for cmd := range c.Commands {
		switch cmd.Kind {
		case CommandJoinChannel:
			h.handleJoin(c, cmd.ChannelID)
		case CommandLeaveChannel:
			h.handleLeave(c, cmd.ChannelID)
		case CommandSendMessage:
			h.handleSend(c, cmd.ChannelID, cmd.Content)
		}
	}
}

// handleJoin subscribes the client to a channel. The channel must exist in
// the directory; joining an already-subscribed channel is a no-op.
func (h *Hub) handleJoin(c *Client, channelID int64) {
	ctx, cancel := h.opCtx()
	defer cancel()

	if _, err := h.store.GetChannelByID(ctx, channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.send(&Event{Kind: EventError, ChannelID: channelID, Error: coreError(ErrCodeChannelNotFound, "channel not found")})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("channel lookup failed")
		c.send(&Event{Kind: EventError, ChannelID: channelID, Error: coreError(ErrCodeInternal, "internal error")})
		return
	}

	room := h.getOrCreateRoom(channelID)
	if !room.add(c) {
		// Already subscribed.
		return
	}

	h.mu.Lock()
	m, registered := h.joined[c]
	if registered {
		m[channelID] = room
	}
	ctx2 := h.ctx
	h.mu.Unlock()

	if !registered {
		// Teardown raced this join; undo the subscription.
		room.remove(c)
		return
	}

	room.enqueue(ctx2, roomTask{notify: subscriberEvent(EventUserJoined, channelID, c.User)})

	h.log.Debug().Str("client_id", c.ID).Int64("channel_id", channelID).Msg("client joined channel")
}

// handleLeave unsubscribes the client from a channel. Leaving a channel the
// client is not subscribed to is a no-op.
func (h *Hub) handleLeave(c *Client, channelID int64) {
	h.mu.Lock()
	room := h.joined[c][channelID]
	if room != nil {
		delete(h.joined[c], channelID)
	}
	ctx := h.ctx
	h.mu.Unlock()

	if room == nil {
		return
	}

	if room.remove(c) {
		room.enqueue(ctx, roomTask{notify: subscriberEvent(EventUserLeft, channelID, c.User)})
	}

	h.log.Debug().Str("client_id", c.ID).Int64("channel_id", channelID).Msg("client left channel")
}

// handleSend validates a message and hands it to the channel's worker. The
// worker persists the message before any broadcast; subscription is not
// required to send.
func (h *Hub) handleSend(c *Client, channelID int64, content string) {
	if strings.TrimSpace(content) == "" {
		c.send(&Event{Kind: EventError, ChannelID: channelID, Error: coreError(ErrCodeBadRequest, "message content is empty")})
		return
	}

	h.mu.Lock()
	room := h.rooms[channelID]
	ctx := h.ctx
	h.mu.Unlock()

	if room == nil {
		opCtx, cancel := h.opCtx()
		_, err := h.store.GetChannelByID(opCtx, channelID)
		cancel()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.send(&Event{Kind: EventError, ChannelID: channelID, Error: coreError(ErrCodeChannelNotFound, "channel not found")})
				return
			}
			h.log.Error().Err(err).Int64("channel_id", channelID).Msg("channel lookup failed")
			c.send(&Event{Kind: EventError, ChannelID: channelID, Error: coreError(ErrCodeInternal, "internal error")})
			return
		}
		room = h.getOrCreateRoom(channelID)
	}

	room.enqueue(ctx, roomTask{sender: c, content: content})
}

// persistAndBroadcast runs inside a room worker: durably store the message,
// then fan it out. Broadcast never happens unless persistence succeeded; on
// failure only the sender is informed.
func (h *Hub) persistAndBroadcast(ctx context.Context, r *Room, t roomTask) {
	opCtx, cancel := context.WithTimeout(ctx, h.persistTimeout)
	defer cancel()

	msg := &store.Message{
		ChannelID: r.channelID,
		SenderID:  t.sender.User.ID,
		Content:   t.content,
	}
	if err := h.store.SaveMessage(opCtx, msg); err != nil {
		h.log.Error().Err(err).
			Int64("channel_id", r.channelID).
			Int64("sender_id", msg.SenderID).
			Msg("message persistence failed")
		t.sender.send(&Event{Kind: EventError, ChannelID: r.channelID, Error: coreError(ErrCodePersistence, "failed to store message")})
		return
	}

	// Attach the sender profile so subscribers get a self-contained event.
	// The cached identity is the fallback if the directory read fails.
	sender := t.sender.User
	if u, err := h.store.GetUserByID(opCtx, msg.SenderID); err == nil {
		sender = *u
	} else {
		h.log.Warn().Err(err).Int64("sender_id", msg.SenderID).Msg("sender profile read failed")
	}
	sender.PasswordHash = ""

	r.broadcast(h, &Event{
		Kind:      EventReceiveMessage,
		ChannelID: r.channelID,
		Message:   &store.MessageWithSender{Message: *msg, Sender: sender},
	})
}

// getOrCreateRoom returns the room for a channel, starting its worker on
// first use. Rooms live for the remainder of the hub's lifetime.
func (h *Hub) getOrCreateRoom(channelID int64) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[channelID]
	if !ok {
		room = newRoom(channelID)
		h.rooms[channelID] = room
		go room.run(h.ctx, h)
	}
	return room
}

// forget drops a channel from a client's joined set after a lazy prune.
func (h *Hub) forget(c *Client, channelID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.joined[c]; ok {
		delete(m, channelID)
	}
}

// Subscribers returns the current subscriber count for a channel.
func (h *Hub) Subscribers(channelID int64) int {
	h.mu.Lock()
	room := h.rooms[channelID]
	h.mu.Unlock()

	if room == nil {
		return 0
	}
	return room.size()
}

func (h *Hub) opCtx() (context.Context, context.CancelFunc) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()
	return context.WithTimeout(ctx, h.persistTimeout)
}
