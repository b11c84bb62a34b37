package core

import (
	"context"
	"sync"

	"github.com/avolkov/chanhub/internal/store"
)

// roomTask is one unit of work for a room's worker goroutine. Either a
// message send (sender set) or a ready-made notification to broadcast.
type roomTask struct {
	sender  *Client
	content string
	notify  *Event
}

// Room owns the subscriber set of one channel and a single worker goroutine
// that serializes the persist-then-broadcast sequence for that channel.
// Sends to different channels proceed in parallel; two sends on the same
// channel are never interleaved.
type Room struct {
	channelID int64

	mu    sync.Mutex
	subs  map[*Client]struct{}
	tasks chan roomTask
}

func newRoom(channelID int64) *Room {
	return &Room{
		channelID: channelID,
		subs:      make(map[*Client]struct{}),
		tasks:     make(chan roomTask, 64),
	}
}

// add inserts a client into the subscriber set. Returns false if the client
// is already subscribed (join is idempotent).
func (r *Room) add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[c]; exists {
		return false
	}
	r.subs[c] = struct{}{}
	return true
}

// remove deletes a client from the subscriber set. Returns true if removed.
func (r *Room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[c]; !exists {
		return false
	}
	delete(r.subs, c)
	return true
}

// size returns the current subscriber count.
func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// enqueue hands a task to the room worker. Returns false if the hub is
// shutting down.
func (r *Room) enqueue(ctx context.Context, t roomTask) bool {
	select {
	case r.tasks <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// run is the room worker loop. It exits when the hub context is cancelled.
func (r *Room) run(ctx context.Context, h *Hub) {
	for {
		select {
		case t := <-r.tasks:
			if t.notify != nil {
				r.broadcast(h, t.notify)
				continue
			}
			h.persistAndBroadcast(ctx, r, t)
		case <-ctx.Done():
			return
		}
	}
}

// broadcast delivers an event to a point-in-time snapshot of the subscriber
// set. Delivery to each client is independent; clients that cannot accept
// the event are pruned from the set.
func (r *Room) broadcast(h *Hub, ev *Event) {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.subs))
	for c := range r.subs {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	var failed []*Client
	for _, c := range targets {
		if !c.send(ev) {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		if r.remove(c) {
			h.forget(c, r.channelID)
			h.log.Warn().
				Str("client_id", c.ID).
				Int64("channel_id", r.channelID).
				Msg("pruned unresponsive subscriber")
		}
	}
}

// subscriberEvent builds a joined/left notification for this room.
func subscriberEvent(kind EventKind, channelID int64, user store.User) *Event {
	return &Event{Kind: kind, ChannelID: channelID, User: &user}
}
