package sse

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/observability"
)

// Notification channels. Each channel gets its own stream endpoint and
// registry; the mail button indicator and the mail page listen
// separately so either can be open without the other.
const (
	ChannelMailButton = "mail-button"
	ChannelMailPage   = "mail-page"
)

// EventNewMessage is delivered to a recipient after a private message
// has been persisted for them.
const EventNewMessage = "newMessageReceived"

// Dispatcher fans an event out to every channel a recipient is
// connected on. It is called synchronously from write paths and never
// blocks, retries, or returns an error: a recipient without an open
// stream is simply skipped.
type Dispatcher struct {
	registries map[string]*Registry
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewDispatcher builds a Dispatcher with one registry per known channel.
func NewDispatcher(metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registries: map[string]*Registry{
			ChannelMailButton: NewRegistry(),
			ChannelMailPage:   NewRegistry(),
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Registry returns the registry backing a channel, or nil for an
// unknown channel name.
func (d *Dispatcher) Registry(channel string) *Registry {
	return d.registries[channel]
}

// Notify delivers the payload to the recipient on every channel where
// they hold an open stream. Best effort only: an event sent between
// stream authentication and registration is dropped, and clients
// compensate by fetching authoritative state on page load.
func (d *Dispatcher) Notify(recipientID uuid.UUID, payload string) {
	for channel, registry := range d.registries {
		deliver, ok := registry.Lookup(recipientID)
		if !ok {
			continue
		}
		deliver(payload)
		d.metrics.EventDelivered(channel)
		if d.logger != nil {
			d.logger.Debug("event delivered",
				slog.String("channel", channel),
				slog.String("recipient", recipientID.String()),
				slog.String("event", payload))
		}
	}
}
