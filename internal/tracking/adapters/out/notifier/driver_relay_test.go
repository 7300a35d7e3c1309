package notifier

import (
	"errors"
	"testing"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic, msgType string
	data           any
}

type topicHub struct {
	out []published
	err error
}

func (h *topicHub) Publish(topic, msgType string, data any) error {
	h.out = append(h.out, published{topic, msgType, data})
	return h.err
}

type cacheSpy struct{ seen []domain.LiveLocation }

func (c *cacheSpy) Observe(loc domain.LiveLocation) { c.seen = append(c.seen, loc) }

func TestDriverRelayObservesThenPublishes(t *testing.T) {
	hub := &topicHub{}
	cache := &cacheSpy{}
	acc := 4.0
	loc := domain.LiveLocation{UserID: "driver-1", Position: domain.Position{Latitude: 6.5, Longitude: 3.3, Accuracy: &acc, Timestamp: 7}}

	NewDriverRelay(hub, cache, logger.Nop()).Forward(loc)

	require.Len(t, cache.seen, 1)
	require.Len(t, hub.out, 1)
	assert.Equal(t, "driver:driver-1", hub.out[0].topic)
	assert.Equal(t, MsgDriverLocation, hub.out[0].msgType)

	p := hub.out[0].data.(DriverLocationPayload)
	assert.Equal(t, "driver-1", p.DriverID)
	assert.Equal(t, 6.5, p.Latitude)
	assert.Equal(t, int64(7), p.Timestamp)
	require.NotNil(t, p.Accuracy)
	assert.Equal(t, 4.0, *p.Accuracy)
}

func TestDriverRelayToleratesNilObserverAndHubErrors(t *testing.T) {
	hub := &topicHub{err: errors.New("closed")}
	assert.NotPanics(t, func() {
		NewDriverRelay(hub, nil, logger.Nop()).Forward(domain.LiveLocation{UserID: "d"})
	})
	assert.Len(t, hub.out, 1)
}
