package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/observability"
	"github.com/palaver-board/palaver/internal/platform/httpx"
)

// Identity is the authenticated principal behind a stream request.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Authenticator resolves the identity behind an inbound stream request.
// A nil identity with a nil error means "no valid session".
type Authenticator interface {
	Identify(r *http.Request) (*Identity, error)
}

// EventConnected is emitted once as the first frame of every stream so
// clients can tell the connection is live before any real event.
const EventConnected = "connected"

// StreamHandler serves one notification channel as a long-lived
// text/event-stream response. One instance handles all connections for
// its channel; per-connection state lives in the request goroutine.
type StreamHandler struct {
	channel   string
	registry  *Registry
	auth      Authenticator
	heartbeat time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewStreamHandler constructs a StreamHandler. The heartbeat interval
// must be shorter than any proxy idle timeout in front of the server.
func NewStreamHandler(channel string, registry *Registry, auth Authenticator, heartbeat time.Duration, logger *slog.Logger, metrics *observability.Metrics) *StreamHandler {
	return &StreamHandler{
		channel:   channel,
		registry:  registry,
		auth:      auth,
		heartbeat: heartbeat,
		logger:    logger,
		metrics:   metrics,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Identify(r)
	if err != nil {
		h.logger.Error("stream authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "a valid session is required to open a notification stream")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("stream writer does not support flushing")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The registry may invoke deliver from another request's goroutine
	// while the heartbeat loop writes, so every write is serialized.
	var mu sync.Mutex
	writeEvent := func(payload string) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	writeHeartbeat := func() error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := io.WriteString(w, ":heartbeat\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	h.registry.Register(identity.UserID, func(payload string) {
		// Delivery is best effort; a write error here means the client
		// is gone and the abort path below will clean up.
		_ = writeEvent(payload)
	})
	h.metrics.StreamOpened(h.channel)
	defer func() {
		h.registry.Deregister(identity.UserID)
		h.metrics.StreamClosed(h.channel)
		h.logger.Info("stream closed",
			slog.String("channel", h.channel),
			slog.String("user", identity.Username))
	}()

	h.logger.Info("stream opened",
		slog.String("channel", h.channel),
		slog.String("user", identity.Username))
	if err := writeEvent(EventConnected); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeHeartbeat(); err != nil {
				return
			}
		}
	}
}
