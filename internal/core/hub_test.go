package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/chanhub/internal/store"
)

const generalID int64 = 1

func startHub(t *testing.T) (*Hub, *fakeStore) {
	t.Helper()

	fs := newFakeStore()
	fs.addChannel(generalID, "general")
	fs.addUser(store.User{ID: 1, Username: "alice", DisplayName: "Alice", AvatarColor: "#3498db", Presence: store.PresenceOnline})
	fs.addUser(store.User{ID: 2, Username: "bob", DisplayName: "Bob", AvatarColor: "#e74c3c", Presence: store.PresenceOnline})

	hub := NewHub(fs, zerolog.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub, fs
}

func alice() *Client {
	return NewClient("conn-a", store.User{ID: 1, Username: "alice", DisplayName: "Alice"})
}

func bob() *Client {
	return NewClient("conn-b", store.User{ID: 2, Username: "bob", DisplayName: "Bob"})
}

func TestHubJoinBroadcastAndSelfEcho(t *testing.T) {
	hub, _ := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)

	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}

	// Alice sees Bob's join once both are subscribed.
	joinEv := mustUserJoined(t, a.Events, "bob")
	if joinEv.ChannelID != generalID {
		t.Fatalf("unexpected join event: %+v", joinEv)
	}

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "hi"}

	for name, c := range map[string]*Client{"alice": a, "bob": b} {
		ev := mustEvent(t, c.Events, EventReceiveMessage)
		if ev.Message.Content != "hi" || ev.Message.SenderID != 1 || ev.Message.ChannelID != generalID {
			t.Fatalf("%s got unexpected message event: %+v", name, ev)
		}
		if ev.Message.ID == 0 || ev.Message.CreatedAt.IsZero() {
			t.Fatalf("%s got message without canonical id/timestamp: %+v", name, ev.Message)
		}
		if ev.Message.Sender.DisplayName != "Alice" {
			t.Fatalf("%s got message without sender profile: %+v", name, ev.Message)
		}
	}
}

func TestHubJoinUnknownChannel(t *testing.T) {
	hub, _ := startHub(t)

	a := alice()
	hub.RegisterClient(a)

	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: 999}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeChannelNotFound {
		t.Fatalf("expected channel_not_found error, got %+v", ev)
	}
	if hub.Subscribers(999) != 0 {
		t.Fatalf("subscriber set mutated by failed join")
	}
}

func TestHubIdempotentJoin(t *testing.T) {
	hub, _ := startHub(t)

	a := alice()
	hub.RegisterClient(a)

	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "once"}

	mustEvent(t, a.Events, EventReceiveMessage)

	if got := hub.Subscribers(generalID); got != 1 {
		t.Fatalf("expected 1 subscriber after double join, got %d", got)
	}
	// The message must arrive exactly once despite the double join.
	mustNoEvent(t, a.Events, EventReceiveMessage, 200*time.Millisecond)
}

func TestHubSendUnknownChannel(t *testing.T) {
	hub, _ := startHub(t)

	a := alice()
	hub.RegisterClient(a)

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: 999, Content: "hi"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeChannelNotFound {
		t.Fatalf("expected channel_not_found error, got %+v", ev)
	}
}

func TestHubRejectsEmptyContent(t *testing.T) {
	hub, fs := startHub(t)

	a := alice()
	hub.RegisterClient(a)
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "   \t\n"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}

	fs.mu.Lock()
	saved := len(fs.saved)
	fs.mu.Unlock()
	if saved != 0 {
		t.Fatalf("whitespace-only message reached the store")
	}
}

func TestHubNoBroadcastWithoutPersistence(t *testing.T) {
	hub, fs := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	mustUserJoined(t, a.Events, "bob")

	fs.mu.Lock()
	fs.failSave = true
	fs.mu.Unlock()

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "lost"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodePersistence {
		t.Fatalf("expected persistence_error, got %+v", ev)
	}

	// Nobody, sender included, may see the failed message.
	mustNoEvent(t, b.Events, EventReceiveMessage, 200*time.Millisecond)
	mustNoEvent(t, a.Events, EventReceiveMessage, 100*time.Millisecond)
}

func TestHubPerChannelOrderPreserved(t *testing.T) {
	hub, _ := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	mustUserJoined(t, a.Events, "bob")

	for _, text := range []string{"first", "second", "third"} {
		a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: text}
	}

	var lastID int64
	for _, want := range []string{"first", "second", "third"} {
		ev := mustEvent(t, b.Events, EventReceiveMessage)
		if ev.Message.Content != want {
			t.Fatalf("out of order: expected %q, got %q", want, ev.Message.Content)
		}
		if ev.Message.ID <= lastID {
			t.Fatalf("message ids not increasing: %d after %d", ev.Message.ID, lastID)
		}
		lastID = ev.Message.ID
	}
}

func TestHubSendWithoutJoin(t *testing.T) {
	hub, _ := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	mustUserJoined(t, b.Events, "bob")

	// Alice never joined; subscribers still get the message, she gets no echo.
	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "drive-by"}

	ev := mustEvent(t, b.Events, EventReceiveMessage)
	if ev.Message.Content != "drive-by" || ev.Message.SenderID != 1 {
		t.Fatalf("unexpected message event: %+v", ev)
	}
	mustNoEvent(t, a.Events, EventReceiveMessage, 200*time.Millisecond)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	hub, _ := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	mustUserJoined(t, a.Events, "bob")

	b.Commands <- &Command{Kind: CommandLeaveChannel, ChannelID: generalID}
	leftEv := mustEvent(t, a.Events, EventUserLeft)
	if leftEv.User.Username != "bob" {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "after leave"}
	mustEvent(t, a.Events, EventReceiveMessage)
	mustNoEvent(t, b.Events, EventReceiveMessage, 200*time.Millisecond)
}

func TestHubTeardownCleanup(t *testing.T) {
	hub, _ := startHub(t)

	a, b := alice(), bob()
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	a.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	b.Commands <- &Command{Kind: CommandJoinChannel, ChannelID: generalID}
	mustUserJoined(t, a.Events, "bob")

	hub.UnregisterClient(b)

	if got := hub.Subscribers(generalID); got != 1 {
		t.Fatalf("expected 1 subscriber after teardown, got %d", got)
	}

	a.Commands <- &Command{Kind: CommandSendMessage, ChannelID: generalID, Content: "to the living"}
	mustEvent(t, a.Events, EventReceiveMessage)
	mustNoEvent(t, b.Events, EventReceiveMessage, 200*time.Millisecond)
}
