package inamqp

import (
	"sync"
	"testing"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type acker struct {
	acks, nacks int
	requeue     bool
}

func (a *acker) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *acker) Reject(uint64, bool) error { return nil }

type forwarded struct {
	mu   sync.Mutex
	locs []domain.LiveLocation
}

func (f *forwarded) Forward(loc domain.LiveLocation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locs = append(f.locs, loc)
}

func TestHandleForwardsValidPositions(t *testing.T) {
	fwd := &forwarded{}
	c := NewLocationConsumer(nil, fwd, logger.Nop())

	ack := &acker{}
	c.Handle(amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"user_id":"driver-1","latitude":6.5,"longitude":3.3,"timestamp":5}`),
	})

	assert.Equal(t, 1, ack.acks)
	require.Len(t, fwd.locs, 1)
	assert.Equal(t, "driver-1", fwd.locs[0].UserID)
	assert.Equal(t, int64(5), fwd.locs[0].Position.Timestamp)
}

func TestHandleDropsMalformed(t *testing.T) {
	fwd := &forwarded{}
	c := NewLocationConsumer(nil, fwd, logger.Nop())

	for _, body := range []string{`nope`, `{"latitude":1,"longitude":1}`, `{"user_id":"d","latitude":91,"longitude":0}`} {
		ack := &acker{}
		c.Handle(amqp.Delivery{Acknowledger: ack, Body: []byte(body)})
		assert.Equal(t, 1, ack.nacks, body)
		assert.False(t, ack.requeue)
	}
	assert.Empty(t, fwd.locs)
}
