package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/chanhub/internal/auth"
	"github.com/avolkov/chanhub/internal/config"
	"github.com/avolkov/chanhub/internal/core"
	"github.com/avolkov/chanhub/internal/store"
	"github.com/avolkov/chanhub/internal/store/sqlite"
)

// startTestServer spins up the full HTTP surface backed by an in-memory store.
func startTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	hub := core.NewHub(st, logger, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

// postJSON issues a POST with a JSON body and optional bearer token.
func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(w, req)
	return w
}

// getJSON issues a GET with an optional bearer token.
func getJSON(t *testing.T, ts *httptest.Server, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(w, req)
	return w
}

// registerUser registers a user through the API and returns the token and id.
func registerUser(t *testing.T, ts *httptest.Server, username string) (string, int64) {
	t.Helper()

	w := postJSON(t, ts, "/api/register", "", RegisterRequest{
		Username: username,
		Password: "secret123",
	})
	if w.Code != 201 {
		t.Fatalf("register %s: unexpected status %d: %s", username, w.Code, w.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Token, resp.User.ID
}

// createChannel creates a channel through the API and returns its id.
func createChannel(t *testing.T, ts *httptest.Server, token, name string) int64 {
	t.Helper()

	w := postJSON(t, ts, "/api/channels", token, CreateChannelRequest{Name: name})
	if w.Code != 201 {
		t.Fatalf("create channel %s: unexpected status %d: %s", name, w.Code, w.Body.String())
	}

	var resp ChannelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode channel response: %v", err)
	}
	return resp.ID
}
