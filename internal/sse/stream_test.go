package sse_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/observability"
	"github.com/palaver-board/palaver/internal/sse"
)

type staticAuth struct {
	identity *sse.Identity
	err      error
}

func (a staticAuth) Identify(r *http.Request) (*sse.Identity, error) {
	return a.identity, a.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamRejectsAnonymous(t *testing.T) {
	registry := sse.NewRegistry()
	h := sse.NewStreamHandler(sse.ChannelMailButton, registry, staticAuth{}, time.Minute, discardLogger(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/mail-button", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, registry.Len(), "no registration happens before authentication succeeds")
}

func TestStreamLifecycle(t *testing.T) {
	registry := sse.NewRegistry()
	identity := &sse.Identity{UserID: uuid.New(), Username: "ada"}
	h := sse.NewStreamHandler(sse.ChannelMailPage, registry, staticAuth{identity: identity}, 20*time.Millisecond, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events/mail-page", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, time.Millisecond,
		"stream registers itself after authenticating")

	deliver, ok := registry.Lookup(identity.UserID)
	require.True(t, ok)
	deliver(sse.EventNewMessage)

	// Leave the stream idling long enough for at least one heartbeat.
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not shut down on context cancellation")
	}

	assert.Zero(t, registry.Len(), "abort drives deregistration")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, "data: \"connected\"\n\n", "first frame announces the live connection")
	assert.Contains(t, body, "data: \"newMessageReceived\"\n\n")
	assert.Contains(t, body, ":heartbeat\n\n")
}

// The router runs every route through the metrics middleware, so its
// response recorder must keep exposing Flush or streams cannot open.
func TestStreamOpensBehindMetricsMiddleware(t *testing.T) {
	registry := sse.NewRegistry()
	identity := &sse.Identity{UserID: uuid.New(), Username: "ada"}
	stream := sse.NewStreamHandler(sse.ChannelMailButton, registry, staticAuth{identity: identity}, time.Minute, discardLogger(), nil)
	h := observability.NewMetrics().Middleware(stream)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events/mail-button", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, time.Millisecond,
		"stream opens and registers through the wrapped writer")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not shut down on context cancellation")
	}

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data: \"connected\"\n\n")
}
