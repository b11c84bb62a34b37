package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avolkov/chanhub/internal/store"
)

// fakeStore is an in-memory core.Store for hub tests.
type fakeStore struct {
	mu       sync.Mutex
	channels map[int64]*store.Channel
	users    map[int64]*store.User
	nextID   int64
	failSave bool
	saved    []store.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: make(map[int64]*store.Channel),
		users:    make(map[int64]*store.User),
	}
}

func (f *fakeStore) addChannel(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &store.Channel{ID: id, Name: name, CreatedAt: time.Now()}
}

func (f *fakeStore) addUser(u store.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &u
}

func (f *fakeStore) GetChannelByID(_ context.Context, id int64) (*store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ch, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store unavailable")
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now().UTC()
	f.saved = append(f.saved, *msg)
	return nil
}

// mustEvent waits for the next event of the given kind, discarding others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// mustUserJoined waits until the join notification for a specific user
// arrives, discarding everything else.
func mustUserJoined(t *testing.T, ch <-chan *Event, username string) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventUserJoined && ev.User != nil && ev.User.Username == username {
				return ev
			}
		case <-deadline:
			t.Fatalf("join event for %q not received", username)
			return nil
		}
	}
}

// mustNoEvent asserts that no event of the given kind arrives within the window.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, window time.Duration) {
	t.Helper()

	deadline := time.After(window)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-deadline:
			return
		}
	}
}
