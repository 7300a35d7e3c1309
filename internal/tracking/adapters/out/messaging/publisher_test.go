package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/mq"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	body          []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (b *fakeBroker) Publish(_ context.Context, exchange, key string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, published{exchange, key, body})
	return nil
}

func TestLocationPublisherUsesFanout(t *testing.T) {
	b := &fakeBroker{}
	p := NewLocationPublisher(b, logger.Nop())

	loc := domain.LiveLocation{UserID: "driver-1", Position: domain.Position{Latitude: 6.5, Longitude: 3.3, Timestamp: 42}.WithAccuracy(7)}
	require.NoError(t, p.PublishLocation(context.Background(), loc))

	require.Len(t, b.msgs, 1)
	assert.Equal(t, mq.LocationExchange, b.msgs[0].exchange)

	var msg LocationMessage
	require.NoError(t, json.Unmarshal(b.msgs[0].body, &msg))
	assert.Equal(t, loc, msg.LiveLocation())
}

func TestDeliveryEventPublisher(t *testing.T) {
	b := &fakeBroker{}
	n := NewDeliveryEventPublisher(b, logger.Nop())

	d := domain.ActiveDelivery{ID: "del-1", DriverID: "d", ConsumerID: "c", Phase: domain.PhaseDelivering}
	tr := domain.Transition{DeliveryID: "del-1", From: domain.PhasePickingUp, To: domain.PhaseDelivering, Changed: true}
	require.NoError(t, n.NotifyPhaseChanged(context.Background(), d, tr))

	require.Len(t, b.msgs, 1)
	assert.Equal(t, mq.DeliveryExchange, b.msgs[0].exchange)
	assert.Equal(t, mq.RoutingDeliveryPhaseChanged, b.msgs[0].key)

	var ev PhaseChangedEvent
	require.NoError(t, json.Unmarshal(b.msgs[0].body, &ev))
	assert.Equal(t, domain.PhaseDelivering, ev.To)
	assert.Equal(t, "c", ev.ConsumerID)
}

func TestPublishErrorsAreWrapped(t *testing.T) {
	boom := errors.New("channel closed")
	b := &fakeBroker{err: boom}

	err := NewAlertPublisher(b).Alert(context.Background(), "u", out.Alert{Kind: out.AlertTrackingStopped})
	require.ErrorIs(t, err, boom)
}
