package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	userID, msgType string
	data            any
}

type fakeHub struct {
	mu        sync.Mutex
	connected map[string]bool
	msgs      []sent
}

func (h *fakeHub) SendTypedMessage(userID, msgType string, data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, sent{userID, msgType, data})
	return nil
}

func (h *fakeHub) IsUserConnected(userID string) bool { return h.connected[userID] }

func TestDeliveryNotifierPushesToConnectedParties(t *testing.T) {
	hub := &fakeHub{connected: map[string]bool{"consumer-1": true}}
	n := NewDeliveryNotifier(hub, logger.Nop())

	d := domain.ActiveDelivery{
		ID:               "del-1",
		DriverID:         "driver-1",
		ConsumerID:       "consumer-1",
		Phase:            domain.PhaseDelivering,
		DriverLocation:   domain.Position{Latitude: 6.52, Longitude: 3.38},
		ConsumerLocation: domain.Position{Latitude: 6.62, Longitude: 3.38},
	}
	tr := domain.Transition{From: domain.PhasePickingUp, To: domain.PhaseDelivering, Changed: true}
	require.NoError(t, n.NotifyPhaseChanged(context.Background(), d, tr))

	require.Len(t, hub.msgs, 1)
	assert.Equal(t, "consumer-1", hub.msgs[0].userID)
	assert.Equal(t, MsgDeliveryPhaseChanged, hub.msgs[0].msgType)

	p := hub.msgs[0].data.(PhasePayload)
	assert.Equal(t, domain.PhaseDelivering, p.Phase)
	// ~11.1 km at 30 km/h
	assert.Equal(t, 22, p.ETAMinutes)
}

func TestAlerterSkipsAnonymousUsers(t *testing.T) {
	hub := &fakeHub{}
	a := NewAlerter(hub, logger.Nop())

	require.NoError(t, a.Alert(context.Background(), "", out.Alert{Kind: out.AlertPermissionDenied}))
	require.NoError(t, a.Alert(context.Background(), "u1", out.Alert{Kind: out.AlertTrackingStopped}))

	require.Len(t, hub.msgs, 1)
	assert.Equal(t, MsgTrackingAlert, hub.msgs[0].msgType)
}

type failingAlerter struct{ err error }

func (f failingAlerter) Alert(context.Context, string, out.Alert) error { return f.err }

func TestMultiAlerterTriesAll(t *testing.T) {
	boom := errors.New("boom")
	hub := &fakeHub{}
	m := MultiAlerter{failingAlerter{boom}, nil, NewAlerter(hub, logger.Nop())}

	err := m.Alert(context.Background(), "u1", out.Alert{Kind: out.AlertTrackingStopped})
	require.ErrorIs(t, err, boom)
	assert.Len(t, hub.msgs, 1)
}
