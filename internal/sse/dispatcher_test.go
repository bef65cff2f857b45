package sse_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/sse"
)

func TestNotifyReachesEveryConnectedChannel(t *testing.T) {
	d := sse.NewDispatcher(nil, nil)
	userID := uuid.New()

	var button, page []string
	d.Registry(sse.ChannelMailButton).Register(userID, func(p string) { button = append(button, p) })
	d.Registry(sse.ChannelMailPage).Register(userID, func(p string) { page = append(page, p) })

	d.Notify(userID, sse.EventNewMessage)
	assert.Equal(t, []string{sse.EventNewMessage}, button)
	assert.Equal(t, []string{sse.EventNewMessage}, page)
}

func TestNotifyDisconnectedRecipientIsNoOp(t *testing.T) {
	d := sse.NewDispatcher(nil, nil)
	// Nobody is connected; this must neither panic nor error.
	d.Notify(uuid.New(), sse.EventNewMessage)
}

func TestUnknownChannelRegistryIsNil(t *testing.T) {
	d := sse.NewDispatcher(nil, nil)
	assert.Nil(t, d.Registry("presence"))
}

func TestMessageDeliveryScenario(t *testing.T) {
	d := sse.NewDispatcher(nil, nil)
	alice := uuid.New()
	bystander := uuid.New()

	var aliceEvents, bystanderEvents []string
	d.Registry(sse.ChannelMailPage).Register(alice, func(p string) { aliceEvents = append(aliceEvents, p) })
	d.Registry(sse.ChannelMailPage).Register(bystander, func(p string) { bystanderEvents = append(bystanderEvents, p) })

	d.Notify(alice, sse.EventNewMessage)
	require.Equal(t, []string{sse.EventNewMessage}, aliceEvents, "delivered exactly once")
	assert.Empty(t, bystanderEvents, "other connected users receive nothing")

	d.Registry(sse.ChannelMailPage).Deregister(alice)
	d.Notify(alice, sse.EventNewMessage)
	assert.Len(t, aliceEvents, 1, "no delivery after the stream is gone")
}
